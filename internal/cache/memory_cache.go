package cache

import (
	"context"
	"sync"
	"time"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/annel0/layoutd/internal/logging"
)

// DefaultMemoryEntries ограничивает размер кэша в памяти по умолчанию
const DefaultMemoryEntries = 1024

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// MemoryCache - локальный кэш узла. Значения хранятся сериализованными,
// поэтому вызывающий не может изменить закэшированную раскладку.
// Если задан invalidator, ключи, инвалидированные на других узлах, удаляются и здесь.
type MemoryCache struct {
	mu          sync.Mutex
	entries     map[string]memoryEntry
	ttl         time.Duration
	maxEntries  int
	invalidator CacheInvalidator
	now         func() time.Time
	stats       counters
}

// NewMemoryCache создаёт кэш в памяти.
func NewMemoryCache(ttl time.Duration, maxEntries int, invalidator CacheInvalidator) *MemoryCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMemoryEntries
	}
	return &MemoryCache{
		entries:     make(map[string]memoryEntry),
		ttl:         ttl,
		maxEntries:  maxEntries,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Listen подписывает кэш на инвалидации других узлов
func (m *MemoryCache) Listen(ctx context.Context) error {
	if m.invalidator == nil {
		return nil
	}
	return m.invalidator.SubscribeInvalidations(ctx, func(key string) error {
		m.evict(key)
		return nil
	})
}

func (m *MemoryCache) Get(ctx context.Context, key string) (*layout.Layout, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	start := time.Now()
	defer m.stats.recordLatency(start)

	m.mu.Lock()
	entry, ok := m.entries[key]
	if ok && !m.now().Before(entry.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()

	if !ok {
		m.stats.miss()
		return nil, ErrCacheMiss
	}

	l, err := decodeLayout(entry.data)
	if err != nil {
		m.evict(key)
		m.stats.miss()
		return nil, ErrCacheMiss
	}
	m.stats.hit()
	return l, nil
}

func (m *MemoryCache) Set(ctx context.Context, key string, l *layout.Layout) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeLayout(l)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictOldestLocked()
	}
	m.entries[key] = memoryEntry{data: data, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryCache) Invalidate(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.evict(key)

	if m.invalidator != nil {
		if err := m.invalidator.PublishInvalidation(ctx, key); err != nil {
			logging.Error("Failed to publish invalidation for key %s: %v", key, err)
		}
	}
	return nil
}

func (m *MemoryCache) evict(key string) {
	m.mu.Lock()
	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.stats.invalidate()
	}
	m.mu.Unlock()
}

// evictOldestLocked удаляет запись с ближайшим сроком истечения
func (m *MemoryCache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, e := range m.entries {
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}

func (m *MemoryCache) GetMetrics() *CacheMetrics {
	m.mu.Lock()
	size := int64(len(m.entries))
	m.mu.Unlock()
	return m.stats.snapshot(size)
}

func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()

	if m.invalidator != nil {
		return m.invalidator.Close()
	}
	return nil
}
