package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *TokenManager {
	t.Helper()
	tm, err := NewTokenManager(nil, time.Hour)
	if err != nil {
		t.Fatalf("Ошибка создания TokenManager: %v", err)
	}
	return tm
}

// TestGenerateJWT тестирует создание JWT токена
func TestGenerateJWT(t *testing.T) {
	tm := newTestManager(t)
	user := &User{ID: 1, Username: "testuser"}

	token, expiresAt, err := tm.Generate(user)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	if token == "" {
		t.Fatal("Пустой токен")
	}

	// Проверяем, что токен содержит точки (разделители частей JWT)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}

	if d := time.Until(expiresAt); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("Неверный срок действия: %v", d)
	}
}

// TestValidateJWT тестирует валидацию JWT токена
func TestValidateJWT(t *testing.T) {
	tm := newTestManager(t)
	user := &User{ID: 42, Username: "validuser", IsAdmin: true}

	token, _, err := tm.Generate(user)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	claims, err := tm.Validate(token)
	if err != nil {
		t.Fatalf("Валидный токен определен как недействительный: %v", err)
	}

	if claims.UserID != user.ID {
		t.Errorf("Неверный UserID: ожидался %d, получен %d", user.ID, claims.UserID)
	}
	if claims.Username != user.Username {
		t.Errorf("Неверное имя: ожидалось %s, получено %s", user.Username, claims.Username)
	}
	if !claims.IsAdmin() {
		t.Error("Флаг администратора потерян")
	}
}

// TestValidateInvalidJWT тестирует валидацию недействительного JWT
func TestValidateInvalidJWT(t *testing.T) {
	tm := newTestManager(t)

	testCases := []string{
		"invalid.token.here",
		"",
		"not.a.jwt",
		"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature",
	}

	for _, invalidToken := range testCases {
		claims, err := tm.Validate(invalidToken)
		if err == nil {
			t.Errorf("Недействительный токен '%s' прошел валидацию", invalidToken)
		}
		if !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Ожидалась ErrInvalidToken, получено %v", err)
		}
		if claims != nil {
			t.Errorf("claims должны быть nil для недействительного токена")
		}
	}
}

// TestValidateForeignSecret проверяет, что токен другого сервера отклоняется
func TestValidateForeignSecret(t *testing.T) {
	issuer := newTestManager(t)
	verifier := newTestManager(t)

	token, _, err := issuer.Generate(&User{ID: 7, Username: "eve"})
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}
	if _, err := verifier.Validate(token); err == nil {
		t.Error("Токен с чужой подписью прошел валидацию")
	}
}

// TestValidateExpiredJWT тестирует истечение срока действия
func TestValidateExpiredJWT(t *testing.T) {
	tm := newTestManager(t)
	token, _, err := tm.Generate(&User{ID: 3, Username: "late"})
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}

	tm.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, err := tm.Validate(token); err == nil {
		t.Error("Просроченный токен прошел валидацию")
	}
}

// TestGenerateSecureSecret тестирует генерацию секретного ключа
func TestGenerateSecureSecret(t *testing.T) {
	secret1, err1 := GenerateSecureSecret()
	if err1 != nil {
		t.Fatalf("Ошибка генерации первого секрета: %v", err1)
	}

	secret2, err2 := GenerateSecureSecret()
	if err2 != nil {
		t.Fatalf("Ошибка генерации второго секрета: %v", err2)
	}

	if secret1 == secret2 {
		t.Error("Два последовательных вызова GenerateSecureSecret вернули одинаковый результат")
	}

	// Проверяем минимальную длину (base64 от 32 байт = 44 символа)
	if len(secret1) < 40 || len(secret2) < 40 {
		t.Error("Секрет слишком короткий")
	}
}

// TestParseSecret тестирует разбор секретного ключа из конфигурации
func TestParseSecret(t *testing.T) {
	validSecret, err := GenerateSecureSecret()
	if err != nil {
		t.Fatalf("Ошибка генерации валидного секрета: %v", err)
	}

	decoded, err := ParseSecret(validSecret)
	if err != nil {
		t.Errorf("Ошибка разбора валидного секрета: %v", err)
	}
	if len(decoded) != 32 {
		t.Errorf("Ожидалось 32 байта, получено %d", len(decoded))
	}

	invalidSecrets := []string{
		"too-short",
		"invalid-base64-@#$%",
		"",
		"c2hvcnQ=",
	}

	for _, invalidSecret := range invalidSecrets {
		if _, err := ParseSecret(invalidSecret); err == nil {
			t.Errorf("Недействительный секрет '%s' был принят", invalidSecret)
		}
	}
}
