package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.SyncWaitTimeout.Std())
	assert.True(t, cfg.DevSealer)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
data_dir: /var/lib/bramble
sync_wait_timeout: 5s
seal_interval: 250ms
log_level: debug
log_format: json
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/bramble", cfg.DataDir)
	assert.Equal(t, 5*time.Second, cfg.SyncWaitTimeout.Std())
	assert.Equal(t, 250*time.Millisecond, cfg.SealInterval.Std())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	// Untouched keys keep their defaults
	assert.Equal(t, "127.0.0.1:8545", cfg.RPCListenAddr)
}

func TestLoadInvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync_wait_timeout: soon"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse duration")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.RPCListenAddr = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.SyncWaitTimeout = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.LogFormat = "pretty"
	assert.Error(t, cfg.Validate())
}
