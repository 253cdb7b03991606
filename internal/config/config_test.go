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
	t.Setenv("AUTOTEST_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.PollInterval)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autotest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
  cors_origins: ["https://admin.example.com"]
database:
  driver: sqlite
  dsn: ":memory:"
redis:
  enabled: true
  ttl: 30s
reaper:
  stale_after: 90m
`), 0o644))

	t.Setenv("AUTOTEST_CONFIG", path)
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("REAPER_INTERVAL", "1m")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, ":memory:", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.TTL)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, time.Minute, cfg.Reaper.Interval)
	assert.Equal(t, 90*time.Minute, cfg.Reaper.StaleAfter)
	// Untouched sections keep their defaults
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("AUTOTEST_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Server.Port = 0
	cfg.Database.Driver = "mysql"
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid server port")
	assert.Contains(t, err.Error(), `unsupported database driver "mysql"`)
	assert.Contains(t, err.Error(), `unsupported log format "xml"`)
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, getEnvAsList("CORS_ORIGINS", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("UNSET_LIST_FOR_TEST", []string{"x"}))
}
