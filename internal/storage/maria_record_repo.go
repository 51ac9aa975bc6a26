package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
)

// MariaRecordRepo реализует RecordRepo для MariaDB/MySQL (таблица layout_records).
type MariaRecordRepo struct {
	db *sql.DB
}

// NewMariaRecordRepo подключается к БД и создаёт таблицу, если её нет.
//
// Параметры:
//
//	dsn - строка подключения (user:pass@tcp(host:port)/dbname?parseTime=true)
func NewMariaRecordRepo(dsn string) (*MariaRecordRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось проверить соединение с MariaDB: %w", err)
	}

	repo := &MariaRecordRepo{db: db}

	if err := repo.createTable(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}

	return repo, nil
}

func (r *MariaRecordRepo) createTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS layout_records (
			id         CHAR(36)     PRIMARY KEY,
			owner      VARCHAR(64)  NOT NULL,
			name       VARCHAR(128) NOT NULL DEFAULT '',
			record     MEDIUMTEXT   NOT NULL,
			height     INT          NOT NULL,
			width      INT          NOT NULL,
			created_at DATETIME(6)  NOT NULL,
			INDEX idx_owner_created (owner, created_at)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`

	if _, err := r.db.Exec(query); err != nil {
		return fmt.Errorf("ошибка создания таблицы layout_records: %w", err)
	}
	return nil
}

// Save использует INSERT ... ON DUPLICATE KEY UPDATE для перезаписи.
func (r *MariaRecordRepo) Save(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}

	query := `
		INSERT INTO layout_records (id, owner, name, record, height, width, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			owner = VALUES(owner),
			name = VALUES(name),
			record = VALUES(record),
			height = VALUES(height),
			width = VALUES(width)
	`

	_, err := r.db.ExecContext(ctx, query, rec.ID, rec.Owner, rec.Name, rec.Data, rec.Height, rec.Width, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("ошибка сохранения записи %s: %w", rec.ID, err)
	}
	return nil
}

func (r *MariaRecordRepo) Get(ctx context.Context, id string) (*Record, error) {
	query := `SELECT id, owner, name, record, height, width, created_at FROM layout_records WHERE id = ?`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки записи %s: %w", id, err)
	}
	return rec, nil
}

func (r *MariaRecordRepo) List(ctx context.Context, owner string, limit int) ([]*Record, error) {
	query := `SELECT id, owner, name, record, height, width, created_at FROM layout_records`
	args := []interface{}{}
	if owner != "" {
		query += ` WHERE owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY created_at DESC, id ASC LIMIT ?`
	args = append(args, normalizeLimit(limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки записей: %w", err)
	}
	defer rows.Close()

	var result []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (r *MariaRecordRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM layout_records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("ошибка получения количества затронутых строк: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	return nil
}

// Close закрывает соединение с базой данных.
func (r *MariaRecordRepo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.Owner, &rec.Name, &rec.Data, &rec.Height, &rec.Width, &rec.CreatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
