package auth

import (
	"context"
	"os"
	"testing"

	"github.com/annel0/layoutd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	hashCost = bcrypt.MinCost
	os.Exit(m.Run())
}

func runUserRepoSuite(t *testing.T, repo UserRepository) {
	t.Helper()

	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	t.Run("CreateAndGet", func(t *testing.T) {
		u, err := repo.CreateUser("Alice", hash, false)
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
		assert.NotZero(t, u.ID)

		byName, err := repo.GetUserByUsername("ALICE")
		require.NoError(t, err)
		assert.Equal(t, u.ID, byName.ID)

		byID, err := repo.GetUserByID(u.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", byID.Username)
	})

	t.Run("Duplicate", func(t *testing.T) {
		_, err := repo.CreateUser("alice", hash, false)
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("Credentials", func(t *testing.T) {
		u, err := repo.ValidateCredentials("alice", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)

		_, err = repo.ValidateCredentials("alice", "wrong")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, err = repo.ValidateCredentials("nobody", "s3cret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("LastLogin", func(t *testing.T) {
		u, err := repo.GetUserByUsername("alice")
		require.NoError(t, err)
		assert.NoError(t, repo.UpdateLastLogin(u.ID))
		assert.ErrorIs(t, repo.UpdateLastLogin(u.ID+1000), ErrUserNotFound)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.GetUserByID(999999)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret"))
	assert.False(t, CheckPassword(hash, "S3cret"))
	assert.False(t, CheckPassword("not-a-hash", "s3cret"))

	_, err = HashPassword("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestMemoryUserRepo(t *testing.T) {
	runUserRepoSuite(t, NewMemoryUserRepo())
}

func TestMariaUserRepo_Live(t *testing.T) {
	dsn := os.Getenv("LAYOUTD_TEST_MARIA_DSN")
	if dsn == "" {
		t.Skip("LAYOUTD_TEST_MARIA_DSN не задан")
	}
	repo, err := NewMariaUserRepo(dsn)
	require.NoError(t, err)
	defer repo.Close()
	_, _ = repo.db.Exec("DELETE FROM layout_editors")
	runUserRepoSuite(t, repo)
}

func TestMongoUserRepo_Live(t *testing.T) {
	uri := os.Getenv("LAYOUTD_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("LAYOUTD_TEST_MONGO_URI не задан")
	}
	repo, err := NewMongoUserRepo(context.Background(), MongoConfig{URI: uri, Database: "layoutd_test"})
	require.NoError(t, err)
	defer repo.Close()
	_, _ = repo.collection.DeleteMany(context.Background(), map[string]interface{}{})
	runUserRepoSuite(t, repo)
}

func TestSeedAdmin(t *testing.T) {
	repo := NewMemoryUserRepo()

	u, err := SeedAdmin(repo, "admin", "")
	require.NoError(t, err)
	assert.Nil(t, u, "без пароля администратор не создаётся")

	u, err = SeedAdmin(repo, "admin", "pw")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.True(t, u.IsAdmin)

	again, err := SeedAdmin(repo, "admin", "other")
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID, "повторный запуск не создаёт дубль")
}

func TestAuthenticator_LoginAndAuthenticate(t *testing.T) {
	repo := NewMemoryUserRepo()
	_, err := SeedAdmin(repo, "admin", "pw")
	require.NoError(t, err)

	tm, err := NewTokenManager(nil, 0)
	require.NoError(t, err)
	a := NewAuthenticator(repo, tm)

	res, err := a.Login("admin", "pw")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "admin", res.User.Username)

	claims, err := a.Authenticate(res.Token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = a.Login("admin", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login("", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = a.Authenticate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Токен пользователя, которого нет в хранилище
	ghost, _, err := tm.Generate(&User{ID: 99, Username: "ghost"})
	require.NoError(t, err)
	_, err = a.Authenticate(ghost)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestOpenUserRepo(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.AdminPassword = "pw"

	repo, err := OpenUserRepo(context.Background(), cfg.Auth, cfg.Storage)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.ValidateCredentials("admin", "pw")
	assert.NoError(t, err)

	cfg.Auth.UserStore = "ldap"
	_, err = OpenUserRepo(context.Background(), cfg.Auth, cfg.Storage)
	assert.Error(t, err)
}

func TestNewTokenManagerFromConfig(t *testing.T) {
	secret, err := GenerateSecureSecret()
	require.NoError(t, err)

	tm, err := NewTokenManagerFromConfig(config.AuthConfig{JWTSecret: secret, TokenTTLHours: 1})
	require.NoError(t, err)
	other, err := NewTokenManagerFromConfig(config.AuthConfig{JWTSecret: secret})
	require.NoError(t, err)

	token, _, err := tm.Generate(&User{ID: 1, Username: "a"})
	require.NoError(t, err)
	_, err = other.Validate(token)
	assert.NoError(t, err, "узлы с общим секретом принимают токены друг друга")

	_, err = NewTokenManagerFromConfig(config.AuthConfig{JWTSecret: "short"})
	assert.Error(t, err)
}
