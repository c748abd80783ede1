package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 25, cfg.Engine.BatchSize)
	assert.Equal(t, 10000, cfg.Engine.PoolCapacity)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
database:
  driver: sqlite
  dsn: file:trailex.db
engine:
  batch_size: 3
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Engine.BatchSize)
	// Untouched keys keep their defaults.
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRAILEX_SERVER_ADDR", ":7070")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestValidateRejectsBadDriver(t *testing.T) {
	t.Setenv("TRAILEX_DATABASE_DRIVER", "oracle")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateRequiresDSN(t *testing.T) {
	t.Setenv("TRAILEX_DATABASE_DRIVER", "postgres")
	_, err := Load("")
	assert.Error(t, err)
}
