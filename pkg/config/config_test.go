package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Addr())
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, time.Minute, cfg.Session.SweepInterval)
	assert.Equal(t, 10000, cfg.Query.RowLimit)
	assert.Equal(t, 50, cfg.Query.ResultCapacity)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TableTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("LAKEDICT_SERVER_PORT", "9100")
	t.Setenv("LAKEDICT_SESSION_IDLE_TIMEOUT", "10m")
	t.Setenv("LAKEDICT_SNOWFLAKE_ACCOUNT", "org-acct")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, "org-acct", cfg.Snowflake.Account)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9200
query:
  row_limit: 500
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Query.RowLimit)
	// Unset values keep their defaults.
	assert.Equal(t, 50, cfg.Query.ResultCapacity)
}
