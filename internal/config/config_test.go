package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "layoutd.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Не удалось записать конфиг: %v", err)
	}
	return path
}

func TestLoad_DefaultsWithoutPath(t *testing.T) {
	t.Setenv("LAYOUTD_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 256, cfg.Decoder.MaxDimension)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL())
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := writeConfig(t, `
server:
  rest_port: 9000
decoder:
  max_dimension: 64
storage:
  backend: badger
  badger_dir: /tmp/layouts
logging:
  console_level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.GetRESTPort())
	assert.Equal(t, 64, cfg.Decoder.MaxDimension)
	assert.Equal(t, "badger", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/layouts", cfg.Storage.BadgerDir)
	assert.Equal(t, "debug", cfg.Logging.ConsoleLevel)
	assert.Equal(t, "debug", cfg.Logging.FileLevel, "незаданные поля сохраняют дефолты")
	assert.Equal(t, "LAYOUTS", cfg.EventBus.Stream)
}

func TestLoad_FromEnv(t *testing.T) {
	path := writeConfig(t, "storage:\n  backend: mongo\n")
	t.Setenv("LAYOUTD_CONFIG", path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mongo", cfg.Storage.Backend)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [unclosed"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  backend: postgres\n"))
	assert.ErrorContains(t, err, "postgres")
}

func TestPortFallback(t *testing.T) {
	var s ServerConfig

	t.Setenv("LAYOUTD_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("LAYOUTD_REST_PORT", "7070")
	assert.Equal(t, 7070, s.GetRESTPort())

	t.Setenv("LAYOUTD_REST_PORT", "abc")
	assert.Equal(t, 8088, s.GetRESTPort())

	s.RESTPort = 6060
	assert.Equal(t, 6060, s.GetRESTPort(), "значение из конфига приоритетнее env")

	t.Setenv("LAYOUTD_GRPC_PORT", "")
	t.Setenv("LAYOUTD_METRICS_PORT", "")
	assert.Equal(t, 9090, s.GetGRPCPort())
	assert.Equal(t, 2112, s.GetMetricsPort())
}

func TestMariaDSN(t *testing.T) {
	m := MariaConfig{Host: "db", Port: 3306, Database: "layoutd", Username: "u", Password: "p"}
	assert.Equal(t, "u:p@tcp(db:3306)/layoutd?parseTime=true&charset=utf8mb4", m.DSN())
}

func TestLoad_AuthSecretsFromEnv(t *testing.T) {
	t.Setenv("LAYOUTD_CONFIG", "")
	t.Setenv("LAYOUTD_JWT_SECRET", "c2VjcmV0")
	t.Setenv("LAYOUTD_ADMIN_PASSWORD", "hunter2")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "c2VjcmV0", cfg.Auth.JWTSecret)
	assert.Equal(t, "hunter2", cfg.Auth.AdminPassword)
	assert.Equal(t, "memory", cfg.Auth.UserStore)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL())
}

func TestValidate_UserStore(t *testing.T) {
	cfg := Default()
	cfg.Auth.UserStore = "ldap"
	assert.Error(t, cfg.Validate())
}
