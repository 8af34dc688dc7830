package main

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DATABASE_URL", "REDIS_URL", "ALLOWED_ORIGIN", "JWT_SECRET",
		"ALLOW_ANONYMOUS_ONLY", "WS_SEND_BUFFER", "SHUTDOWN_TIMEOUT", "LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "3008", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 256, cfg.SendBuffer)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.False(t, cfg.AllowAnonymousOnly)
}

func TestLoadConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("WS_SEND_BUFFER", "not-a-number")
	t.Setenv("SHUTDOWN_TIMEOUT", "3s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://x", cfg.DatabaseURL)
	assert.Equal(t, []byte("s3cret"), cfg.JWTSecret)
	assert.Equal(t, 256, cfg.SendBuffer, "bad numbers fall back to the default")
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)

	t.Setenv("LOG_LEVEL", "loud")
	_, err = loadConfigFromEnv()
	assert.Error(t, err)
}

func TestParseFlagsOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "9000")

	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)

	cfg, err = parseFlags(cfg, []string{"--port", "7000", "--ws-send-buffer=16", "--log-level", "warn"}, io.Discard)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, 16, cfg.SendBuffer)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
}

func TestParseFlagsRequiresSecret(t *testing.T) {
	clearEnv(t)

	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)

	_, err = parseFlags(cfg, nil, io.Discard)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg, err = parseFlags(cfg, []string{"--anonymous-only"}, io.Discard)
	require.NoError(t, err)
	assert.True(t, cfg.AllowAnonymousOnly)
}

func TestParseFlagsErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := loadConfigFromEnv()
	require.NoError(t, err)

	_, err = parseFlags(cfg, []string{"--help"}, io.Discard)
	assert.ErrorIs(t, err, pflag.ErrHelp)

	_, err = parseFlags(cfg, []string{"--no-such-flag"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags(cfg, []string{"--ws-send-buffer=0"}, io.Discard)
	assert.Error(t, err)
}
