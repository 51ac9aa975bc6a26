package observability

import (
	"context"
	"testing"

	"github.com/annel0/layoutd/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTelemetry_Disabled(t *testing.T) {
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))
}

func TestInitTelemetry_Enabled(t *testing.T) {
	// Экспортер подключается лениво, поэтому коллектор для инициализации не нужен
	shutdown, err := InitTelemetry(context.Background(), config.TelemetryConfig{
		Enabled:     true,
		Endpoint:    "127.0.0.1:4318",
		ServiceName: "layoutd-test",
	})
	require.NoError(t, err)
	_ = shutdown(context.Background())
}

func TestEndpointOrDefault(t *testing.T) {
	assert.Equal(t, "localhost:4318", endpointOrDefault(""))
	assert.Equal(t, "otel:4318", endpointOrDefault("otel:4318"))
}
