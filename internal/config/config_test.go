package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marketplace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9000"
demo_tokens: false
storage:
  backend: bolt
  path: /tmp/market.db
`), 0o600))
	t.Setenv("MARKETPLACE_LISTEN_ADDR", ":9100")
	t.Setenv("MARKETPLACE_STORAGE_PATH", "/var/lib/market.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.ListenAddr)
	assert.False(t, cfg.DemoTokens)
	assert.Equal(t, BackendBolt, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/market.db", cfg.Storage.Path)
	assert.Equal(t, "info", cfg.LogLevel, "unset keys keep their defaults")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Deployer = "nope"
	cfg.Storage.Backend = "redis"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deployer")
	assert.Contains(t, err.Error(), "redis")

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
