package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryUserRepo is a threadsafe in-memory storage useful for tests & single-instance servers.
// It also handles incremental ID assignment.
// ID counter starts from 1.
type MemoryUserRepo struct {
	mu     sync.RWMutex
	users  map[string]*User // key = lowercase(username)
	byID   map[uint64]*User
	nextID uint64
}

// NewMemoryUserRepo returns an empty repository; use SeedAdmin for the first account.
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:  make(map[string]*User),
		byID:   make(map[uint64]*User),
		nextID: 1,
	}
}

// GetUserByUsername retrieves user by case-insensitive username.
func (r *MemoryUserRepo) GetUserByUsername(username string) (*User, error) {
	key := normalize(username)
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[key]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// GetUserByID retrieves user by ID.
func (r *MemoryUserRepo) GetUserByID(id uint64) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

// CreateUser inserts a new user if username not present.
func (r *MemoryUserRepo) CreateUser(username string, passwordHash string, isAdmin bool) (*User, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return nil, ErrUserExists
	}

	now := time.Now()
	user := &User{
		ID:           r.nextID,
		Username:     key,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
		IsAdmin:      isAdmin,
	}
	r.nextID++
	r.users[key] = user
	r.byID[user.ID] = user
	cp := *user
	return &cp, nil
}

// ValidateCredentials checks the bcrypt hash.
func (r *MemoryUserRepo) ValidateCredentials(username, password string) (*User, error) {
	return checkCredentials(r, username, password)
}

// UpdateLastLogin updates the login timestamp.
func (r *MemoryUserRepo) UpdateLastLogin(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastLogin = time.Now()
	return nil
}

func (r *MemoryUserRepo) Close() error { return nil }

// Helper to normalise usernames.
func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
