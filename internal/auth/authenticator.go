package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/annel0/layoutd/internal/logging"
)

// LoginResult - ответ на успешный вход
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *User
}

// Authenticator управляет входом редакторов и проверкой их токенов
type Authenticator struct {
	userRepo UserRepository
	tokens   *TokenManager
	log      *logging.Logger
}

// NewAuthenticator создает новый аутентификатор
func NewAuthenticator(repo UserRepository, tokens *TokenManager) *Authenticator {
	return &Authenticator{
		userRepo: repo,
		tokens:   tokens,
		log:      logging.GetServerLogger(),
	}
}

// Login аутентификация по логину/паролю
func (a *Authenticator) Login(username, password string) (*LoginResult, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := a.userRepo.ValidateCredentials(username, password)
	if err != nil {
		a.log.Warn("❌ Неудачная аутентификация для пользователя %s: %v", username, err)
		return nil, err
	}

	token, expiresAt, err := a.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	if err := a.userRepo.UpdateLastLogin(user.ID); err != nil {
		a.log.Warn("⚠️ Не удалось обновить время входа %s: %v", user.Username, err)
	}

	a.log.Info("🎫 JWT токен выдан %s (ID: %d), действителен до %s",
		user.Username, user.ID, expiresAt.Format("2006-01-02 15:04:05"))
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// Authenticate проверяет токен и возвращает его claims.
// Удалённый после выдачи токена пользователь не проходит проверку.
func (a *Authenticator) Authenticate(token string) (*Claims, error) {
	claims, err := a.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	if _, err := a.userRepo.GetUserByID(claims.UserID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return claims, nil
}
