package auth

import "errors"

// UserRepository defines operations for editor persistence and retrieval.
// The in-memory implementation serves single-node deployments; MariaDB and
// MongoDB implementations share the layout storage servers.
type UserRepository interface {
	// GetUserByUsername returns a user by username (case-insensitive). If the user
	// is not found, (nil, ErrUserNotFound) should be returned.
	GetUserByUsername(username string) (*User, error)

	// CreateUser creates a new user with the supplied data and returns the stored
	// user instance. Caller is expected to pass a bcrypt-hashed password.
	// Implementations must enforce unique usernames and return ErrUserExists on
	// conflict.
	CreateUser(username string, passwordHash string, isAdmin bool) (*User, error)

	// GetUserByID returns a user by ID. If the user is not found, (nil, ErrUserNotFound) should be returned.
	GetUserByID(id uint64) (*User, error)

	// ValidateCredentials validates username and password, returns user if valid
	ValidateCredentials(username, password string) (*User, error)

	// UpdateLastLogin stores the time of a successful login
	UpdateLastLogin(id uint64) error

	Close() error
}

// Domain-level errors returned by the repository.
var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// SeedAdmin создаёт администратора, если его ещё нет. Пустой пароль — ничего не делать.
func SeedAdmin(repo UserRepository, username, password string) (*User, error) {
	if username == "" || password == "" {
		return nil, nil
	}
	if u, err := repo.GetUserByUsername(username); err == nil {
		return u, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u, err := repo.CreateUser(username, hash, true)
	if errors.Is(err, ErrUserExists) {
		// Параллельный запуск второго узла
		return repo.GetUserByUsername(username)
	}
	return u, err
}

// checkCredentials - общая часть ValidateCredentials для всех реализаций
func checkCredentials(repo UserRepository, username, password string) (*User, error) {
	u, err := repo.GetUserByUsername(username)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}
