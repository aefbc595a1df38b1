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
	path := filepath.Join(t.TempDir(), "feedpipe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigPathEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Zero(t, cfg.Fetch.Timeout)
	assert.Zero(t, cfg.Schedule.Interval)
	assert.Empty(t, cfg.Classifier.Endpoint)
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: hybrid
  redisAddr: redis:6379
  badgerPath: /tmp/badger
fetch:
  timeout: 30s
schedule:
  interval: 15m
classifier:
  endpoint: https://api.example.com/v1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverHybrid, cfg.Storage.Driver)
	assert.Equal(t, "redis:6379", cfg.Storage.RedisAddr)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 15*time.Minute, cfg.Schedule.Interval)
	assert.Equal(t, "https://api.example.com/v1", cfg.Classifier.Endpoint)
	// Untouched sections keep defaults
	assert.Equal(t, "gpt-4o-mini", cfg.Classifier.Model)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  driver: sqlite\n  dsn: file.db\n")
	t.Setenv("FEEDPIPE_DB_DRIVER", "postgres")
	t.Setenv("FEEDPIPE_DB_DSN", "postgres://u:p@db/feeds")
	t.Setenv("FEEDPIPE_CLASSIFIER_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://u:p@db/feeds", cfg.Storage.DSN)
	assert.Equal(t, "sk-test", cfg.Classifier.APIKey)
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeConfig(t, "server:\n  addr: \":9999\"\n")
	t.Setenv(ConfigPathEnv, path)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "storage:\n  driver: mongo\n"))
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Storage.DSN = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Fetch.Timeout = -time.Second
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Driver = DriverHybrid
	assert.NoError(t, cfg.Validate())
}
