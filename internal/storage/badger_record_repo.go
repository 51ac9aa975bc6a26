package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

const recordKeyPrefix = "record:"

// BadgerRecordRepo хранит записи раскладок в локальной BadgerDB.
// Значения - JSON, ключи вида "record:<id>".
type BadgerRecordRepo struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerRecordRepo открывает (или создаёт) БД в каталоге dbPath
func NewBadgerRecordRepo(dbPath string) (*BadgerRecordRepo, error) {
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerRecordRepo{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
	}, nil
}

// Close закрывает хранилище данных
func (r *BadgerRecordRepo) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if !r.isReady {
		return nil
	}

	r.isReady = false
	return r.db.Close()
}

func recordKey(id string) []byte {
	return []byte(recordKeyPrefix + id)
}

// ready возвращает ошибку, если хранилище закрыто. Вызывается под mutex.RLock.
func (r *BadgerRecordRepo) ready(ctx context.Context) error {
	if !r.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return ctx.Err()
}

func (r *BadgerRecordRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("ошибка сериализации записи: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(rec.ID), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (r *BadgerRecordRepo) Get(ctx context.Context, id string) (*Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записи %s: %w", id, err)
	}
	return &rec, nil
}

func (r *BadgerRecordRepo) List(ctx context.Context, owner string, limit int) ([]*Record, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return nil, err
	}

	var result []*Record
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				return fmt.Errorf("ошибка десериализации %s: %w", it.Item().Key(), err)
			}
			if owner == "" || rec.Owner == owner {
				result = append(result, &rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortNewestFirst(result)
	if limit = normalizeLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *BadgerRecordRepo) Delete(ctx context.Context, id string) error {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if err := r.ready(ctx); err != nil {
		return err
	}

	return r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(recordKey(id)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
			}
			return err
		}
		return txn.Delete(recordKey(id))
	})
}
