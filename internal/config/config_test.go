package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"BSKY_SERVICE", "BSKY_IDENTIFIER", "BSKY_PASSWORD", "BSKY_RATE_LIMIT", "METRICS_PORT", "SHUTDOWN_TIMEOUT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultService, cfg.Service)
	assert.Equal(t, ":9090", cfg.MetricsAddr())
	assert.Zero(t, cfg.RateLimit)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	assert.False(t, cfg.HasCredentials())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("BSKY_SERVICE", "https://pds.example.com")
	t.Setenv("BSKY_IDENTIFIER", "bot.example.com")
	t.Setenv("BSKY_PASSWORD", "app-password")
	t.Setenv("BSKY_RATE_LIMIT", "2.5")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("METRICS_PORT", "8081")
	t.Setenv("SHUTDOWN_TIMEOUT", "10s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://pds.example.com", cfg.Service)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, ":8081", cfg.MetricsAddr())
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"BSKY_RATE_LIMIT", "fast"},
		{"BSKY_RATE_LIMIT", "-1"},
		{"SHUTDOWN_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}
