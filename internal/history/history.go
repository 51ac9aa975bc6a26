// Package history хранит журнал декодирований layoutctl в локальной SQLite.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Entry - одна попытка декодирования
type Entry struct {
	ID        int64
	Time      time.Time
	Source    string // "record" или "share_code"
	CacheKey  string
	Height    int
	Width     int
	ErrorKind string // "" при успехе
	Message   string
}

// OK сообщает, была ли попытка успешной
func (e Entry) OK() bool { return e.ErrorKind == "" }

// History records every decode attempt to a SQLite database.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// New opens (or creates) the SQLite database at dbPath and ensures the
// decode_history table exists.
func New(dbPath string) (*History, error) {
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS decode_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		ts         TEXT    NOT NULL,
		source     TEXT    NOT NULL,
		cache_key  TEXT    NOT NULL DEFAULT '',
		height     INTEGER NOT NULL DEFAULT 0,
		width      INTEGER NOT NULL DEFAULT 0,
		error_kind TEXT    NOT NULL DEFAULT '',
		message    TEXT    NOT NULL DEFAULT ''
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &History{db: db, now: time.Now}, nil
}

// Record inserts one row. It is safe to call concurrently.
func (h *History) Record(e Entry) error {
	ts := h.now().UTC().Format(time.RFC3339Nano)
	_, err := h.db.Exec(
		`INSERT INTO decode_history (ts, source, cache_key, height, width, error_kind, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ts, e.Source, e.CacheKey, e.Height, e.Width, e.ErrorKind, e.Message,
	)
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent возвращает последние limit записей, новые первыми
func (h *History) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := h.db.Query(
		`SELECT id, ts, source, cache_key, height, width, error_kind, message
		 FROM decode_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e  Entry
			ts string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Source, &e.CacheKey, &e.Height, &e.Width, &e.ErrorKind, &e.Message); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if e.Time, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("history: bad timestamp %q: %w", ts, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the underlying database connection.
func (h *History) Close() error {
	return h.db.Close()
}
