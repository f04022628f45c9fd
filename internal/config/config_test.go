package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 10, cfg.IdleTimeoutMinutes)
	assert.Equal(t, 30, cfg.IdlePollSeconds)
	assert.Equal(t, 300, cfg.DefaultTimeoutSeconds)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NotEmpty(t, cfg.LogPath)
	assert.NotEmpty(t, cfg.HistoryPath)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxConnections)
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"max_connections": 4, "log_level": "debug"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Untouched fields keep their defaults
	assert.Equal(t, 30, cfg.IdlePollSeconds)
}

func TestLoadRejectsInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadClampsNonPositiveValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path,
		[]byte(`{"max_connections": -1, "idle_timeout_minutes": 0}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.MaxConnections)
	assert.Equal(t, 10, cfg.IdleTimeoutMinutes)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("EXCELD_LOG_LEVEL", "error")
	t.Setenv("EXCELD_LOG_PATH", "/tmp/custom.log")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "/tmp/custom.log", cfg.LogPath)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	cfg := DefaultConfig()
	cfg.MaxConnections = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.MaxConnections)
}
