package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.BusTimeout)
	assert.Equal(t, int64(256), cfg.BusMaxInFlight)
	assert.Equal(t, 5*time.Second, cfg.StorageTimeout)
	assert.Equal(t, 3, cfg.BreakerThreshold)
	assert.Equal(t, 20, cfg.DBMaxOpenConns)
	assert.Contains(t, cfg.DatabaseURL, "postgres://")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APPVIEW_PORT", "9090")
	t.Setenv("BUS_TIMEOUT", "250ms")
	t.Setenv("DB_MAX_OPEN_CONNS", "4")
	t.Setenv("RATE_LIMIT_RPS", "2.5")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.BusTimeout)
	assert.Equal(t, 4, cfg.DBMaxOpenConns)
	assert.InDelta(t, 2.5, cfg.RateLimitRPS, 0.0001)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env.test")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=from-file\nLOG_FORMAT=json\n"), 0o600))

	// godotenv never overrides variables already set, so start clean
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))
	t.Setenv("LOG_FORMAT", "")
	require.NoError(t, os.Unsetenv("LOG_FORMAT"))
	t.Cleanup(func() {
		_ = os.Unsetenv("JWT_SECRET")
		_ = os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoad_MissingEnvFileIsFine(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	require.NoError(t, os.Unsetenv("JWT_SECRET"))

	_, err := Load("")
	assert.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("BUS_TIMEOUT", "0s")
	_, err = Load("")
	assert.ErrorContains(t, err, "BUS_TIMEOUT")
}
