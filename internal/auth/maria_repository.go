package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MariaUserRepo реализует UserRepository для MariaDB
type MariaUserRepo struct {
	db *sql.DB
}

// NewMariaUserRepo открывает подключение к MariaDB по DSN и создаёт таблицу редакторов
func NewMariaUserRepo(dsn string) (*MariaUserRepo, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaUserRepo{db: db}
	if err := repo.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	return repo, nil
}

// createTables создает необходимые таблицы в БД
func (m *MariaUserRepo) createTables() error {
	createUsersTable := `
	CREATE TABLE IF NOT EXISTS layout_editors (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.Exec(createUsersTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу layout_editors: %w", err)
	}
	return nil
}

const userColumns = `id, username, password_hash, is_admin, created_at, last_login`

func (m *MariaUserRepo) queryUser(query string, arg interface{}) (*User, error) {
	var user User
	err := m.db.QueryRow(query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.LastLogin,
	)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении пользователя: %w", err)
	}
	return &user, nil
}

// GetUserByUsername получает пользователя по имени
func (m *MariaUserRepo) GetUserByUsername(username string) (*User, error) {
	return m.queryUser(`SELECT `+userColumns+` FROM layout_editors WHERE username = ?`, normalize(username))
}

// GetUserByID получает пользователя по ID
func (m *MariaUserRepo) GetUserByID(id uint64) (*User, error) {
	return m.queryUser(`SELECT `+userColumns+` FROM layout_editors WHERE id = ?`, id)
}

// CreateUser создает нового пользователя
func (m *MariaUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	lower := normalize(username)
	now := time.Now().UTC().Truncate(time.Second)

	query := `INSERT INTO layout_editors (username, password_hash, is_admin, created_at, last_login)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := m.db.Exec(query, lower, passwordHash, isAdmin, now, now)
	if err != nil {
		if isDuplicateEntry(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("ошибка при создании пользователя: %w", err)
	}

	userID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении ID пользователя: %w", err)
	}

	return &User{
		ID:           uint64(userID),
		Username:     lower,
		PasswordHash: passwordHash,
		IsAdmin:      isAdmin,
		CreatedAt:    now,
		LastLogin:    now,
	}, nil
}

// ValidateCredentials проверяет пароль
func (m *MariaUserRepo) ValidateCredentials(username, password string) (*User, error) {
	return checkCredentials(m, username, password)
}

// UpdateLastLogin обновляет время последнего входа пользователя
func (m *MariaUserRepo) UpdateLastLogin(userID uint64) error {
	res, err := m.db.Exec(`UPDATE layout_editors SET last_login = CURRENT_TIMESTAMP WHERE id = ?`, userID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Close закрывает подключение к БД
func (m *MariaUserRepo) Close() error {
	return m.db.Close()
}

// isDuplicateEntry распознаёт ER_DUP_ENTRY (1062)
func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}
