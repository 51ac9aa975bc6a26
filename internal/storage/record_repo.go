package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	ErrRecordNotFound = errors.New("layout record not found")
	ErrInvalidRecord  = errors.New("invalid layout record")
)

const (
	// DefaultListLimit применяется, если limit <= 0
	DefaultListLimit = 50
	// MaxListLimit - верхняя граница выборки List
	MaxListLimit = 500
)

// Record - сохранённая запись раскладки. Data хранит исходный текст записи v2;
// раскладка восстанавливается декодером, а не хранится.
type Record struct {
	ID        string    `json:"id" bson:"_id"`
	Owner     string    `json:"owner" bson:"owner"`
	Name      string    `json:"name,omitempty" bson:"name"`
	Data      string    `json:"record" bson:"record"`
	Height    int       `json:"height" bson:"height"`
	Width     int       `json:"width" bson:"width"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// RecordRepo определяет интерфейс хранилища записей раскладок.
type RecordRepo interface {
	// Save сохраняет запись; запись с тем же ID перезаписывается.
	Save(ctx context.Context, rec *Record) error

	// Get возвращает запись или ErrRecordNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List возвращает записи владельца (все при owner == ""), новые первыми.
	List(ctx context.Context, owner string, limit int) ([]*Record, error)

	// Delete удаляет запись или возвращает ErrRecordNotFound.
	Delete(ctx context.Context, id string) error

	Close() error
}

func validateRecord(rec *Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil", ErrInvalidRecord)
	}
	if rec.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidRecord)
	}
	if rec.Data == "" {
		return fmt.Errorf("%w: empty data", ErrInvalidRecord)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// sortNewestFirst упорядочивает записи по убыванию времени создания, затем по ID
func sortNewestFirst(recs []*Record) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}

func copyRecord(rec *Record) *Record {
	c := *rec
	return &c
}
