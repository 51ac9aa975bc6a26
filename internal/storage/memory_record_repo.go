package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRecordRepo реализует RecordRepo в памяти.
// Используется по умолчанию и в тестах; данные теряются при перезапуске.
type MemoryRecordRepo struct {
	mu   sync.RWMutex
	data map[string]*Record
}

// NewMemoryRecordRepo создает новый репозиторий записей в памяти.
func NewMemoryRecordRepo() *MemoryRecordRepo {
	return &MemoryRecordRepo{
		data: make(map[string]*Record),
	}
}

func (r *MemoryRecordRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[rec.ID] = copyRecord(rec)
	return nil
}

func (r *MemoryRecordRepo) Get(ctx context.Context, id string) (*Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.data[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return copyRecord(rec), nil
}

func (r *MemoryRecordRepo) List(ctx context.Context, owner string, limit int) ([]*Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	r.mu.RLock()
	result := make([]*Record, 0, len(r.data))
	for _, rec := range r.data {
		if owner == "" || rec.Owner == owner {
			result = append(result, copyRecord(rec))
		}
	}
	r.mu.RUnlock()

	sortNewestFirst(result)
	if limit = normalizeLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRecordRepo) Delete(ctx context.Context, id string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(r.data, id)
	return nil
}

// Count возвращает количество записей (для отладки).
func (r *MemoryRecordRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *MemoryRecordRepo) Close() error { return nil }
