package auth

import (
	"context"
	"fmt"

	"github.com/annel0/layoutd/internal/config"
	"github.com/annel0/layoutd/internal/logging"
)

// OpenUserRepo выбирает хранилище редакторов и создаёт администратора из конфигурации
func OpenUserRepo(ctx context.Context, cfg config.AuthConfig, storage config.StorageConfig) (UserRepository, error) {
	var (
		repo UserRepository
		err  error
	)

	switch cfg.UserStore {
	case "", "memory":
		repo = NewMemoryUserRepo()
	case "maria":
		repo, err = NewMariaUserRepo(storage.Maria.DSN())
	case "mongo":
		repo, err = NewMongoUserRepo(ctx, MongoConfig{URI: storage.Mongo.URI, Database: storage.Mongo.Database})
	default:
		return nil, fmt.Errorf("unknown user store %q", cfg.UserStore)
	}
	if err != nil {
		return nil, err
	}

	admin, err := SeedAdmin(repo, cfg.AdminUser, cfg.AdminPassword)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("seed admin: %w", err)
	}
	if admin == nil {
		logging.GetServerLogger().Warn("⚠️ Пароль администратора не задан (LAYOUTD_ADMIN_PASSWORD), вход невозможен")
	}
	return repo, nil
}

// NewTokenManagerFromConfig разбирает секрет из конфигурации
func NewTokenManagerFromConfig(cfg config.AuthConfig) (*TokenManager, error) {
	var secret []byte
	if cfg.JWTSecret != "" {
		s, err := ParseSecret(cfg.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("auth.jwt_secret: %w", err)
		}
		secret = s
	} else {
		logging.GetServerLogger().Warn("⚠️ JWT секрет не задан, токены не переживут перезапуск")
	}
	return NewTokenManager(secret, cfg.TokenTTL())
}
