package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/annel0/layoutd/internal/layout"
	"github.com/cespare/xxhash/v2"
)

// LayoutCache хранит декодированные раскладки по ключу записи.
//
// Использование:
//
//	key := cache.KeyForRecord(record)
//	l, err := c.Get(ctx, key)
//	if cache.IsCacheMiss(err) { ... c.Set(ctx, key, l) }
type LayoutCache interface {
	// Get возвращает раскладку или ErrCacheMiss.
	Get(ctx context.Context, key string) (*layout.Layout, error)

	// Set сохраняет раскладку с TTL кэша.
	Set(ctx context.Context, key string, l *layout.Layout) error

	// Invalidate удаляет ключ и уведомляет другие узлы.
	Invalidate(ctx context.Context, key string) error

	// GetMetrics возвращает метрики кэша.
	GetMetrics() *CacheMetrics

	Close() error
}

// CacheInvalidator управляет инвалидацией кеша через Pub/Sub.
type CacheInvalidator interface {
	// PublishInvalidation отправляет уведомление об инвалидации.
	PublishInvalidation(ctx context.Context, key string) error

	// SubscribeInvalidations подписывается на уведомления об инвалидации.
	SubscribeInvalidations(ctx context.Context, handler InvalidationHandler) error

	Close() error
}

// InvalidationHandler обрабатывает уведомления об инвалидации кеша.
type InvalidationHandler func(key string) error

// CacheMetrics содержит метрики кеша.
type CacheMetrics struct {
	TotalRequests int64     `json:"total_requests"`
	CacheHits     int64     `json:"cache_hits"`
	CacheMisses   int64     `json:"cache_misses"`
	HitRatio      float64   `json:"hit_ratio"`
	Invalidations int64     `json:"invalidations"`
	TotalKeys     int64     `json:"total_keys"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	MaxLatencyMs  float64   `json:"max_latency_ms"`
	LastUpdate    time.Time `json:"last_update"`
}

// Ошибки кеша
var (
	ErrCacheMiss  = errors.New("cache miss")
	ErrInvalidKey = errors.New("invalid key")
)

// IsCacheMiss проверяет, является ли ошибка промахом кеша.
func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

const keyPrefix = "layoutd:layout:"

// KeyForRecord возвращает ключ кэша для текста записи (xxhash64 в hex).
func KeyForRecord(record string) string {
	return keyPrefix + strconv.FormatUint(xxhash.Sum64String(record), 16)
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	return nil
}

func encodeLayout(l *layout.Layout) ([]byte, error) {
	if l == nil {
		return nil, errors.New("nil layout")
	}
	return json.Marshal(l)
}

func decodeLayout(data []byte) (*layout.Layout, error) {
	var l layout.Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("corrupted cache entry: %w", err)
	}
	return &l, nil
}

// counters - общие счётчики попаданий и задержек для реализаций кэша
type counters struct {
	requests      int64
	hits          int64
	misses        int64
	invalidations int64
	latencySum    int64 // в наносекундах
	latencyCount  int64
	maxLatency    int64
}

func (c *counters) hit()        { atomic.AddInt64(&c.requests, 1); atomic.AddInt64(&c.hits, 1) }
func (c *counters) miss()       { atomic.AddInt64(&c.requests, 1); atomic.AddInt64(&c.misses, 1) }
func (c *counters) invalidate() { atomic.AddInt64(&c.invalidations, 1) }

// recordLatency записывает latency метрику.
func (c *counters) recordLatency(start time.Time) {
	latency := time.Since(start).Nanoseconds()

	atomic.AddInt64(&c.latencySum, latency)
	atomic.AddInt64(&c.latencyCount, 1)

	for {
		current := atomic.LoadInt64(&c.maxLatency)
		if latency <= current || atomic.CompareAndSwapInt64(&c.maxLatency, current, latency) {
			break
		}
	}
}

func (c *counters) snapshot(totalKeys int64) *CacheMetrics {
	m := &CacheMetrics{
		TotalRequests: atomic.LoadInt64(&c.requests),
		CacheHits:     atomic.LoadInt64(&c.hits),
		CacheMisses:   atomic.LoadInt64(&c.misses),
		Invalidations: atomic.LoadInt64(&c.invalidations),
		TotalKeys:     totalKeys,
		LastUpdate:    time.Now(),
	}
	if total := m.CacheHits + m.CacheMisses; total > 0 {
		m.HitRatio = float64(m.CacheHits) / float64(total)
	}
	if count := atomic.LoadInt64(&c.latencyCount); count > 0 {
		m.AvgLatencyMs = float64(atomic.LoadInt64(&c.latencySum)) / float64(count) / 1e6
		m.MaxLatencyMs = float64(atomic.LoadInt64(&c.maxLatency)) / 1e6
	}
	return m
}
