package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mezonai/hashchain/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "node.yml", `
config:
  store:
    type: bolt
    directory: /var/lib/hashchain
  server:
    api_addr: ":18000"
  log:
    max_size_mb: 5
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, store.BoltStoreType, cfg.Store.Type)
	assert.Equal(t, "/var/lib/hashchain", cfg.Store.Directory)
	assert.Equal(t, ":18000", cfg.Server.APIAddr)
	// untouched keys keep defaults
	assert.Equal(t, DefaultRPCAddr, cfg.Server.RPCAddr)
	assert.Equal(t, 5, cfg.Log.MaxSizeMB)
}

func TestLoadINI(t *testing.T) {
	path := writeFile(t, "node.ini", `
[store]
type = redis
address = localhost:6379
redis_db = 4

[server]
metrics_addr = :19100
append_rate_limit = 20
trusted_proxies = 10.0.0.0/8, 127.0.0.1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, store.RedisStoreType, cfg.Store.Type)
	assert.Equal(t, "localhost:6379", cfg.Store.Address)
	assert.Equal(t, 4, cfg.Store.RedisDB)
	assert.Equal(t, ":19100", cfg.Server.MetricsAddr)
	assert.Equal(t, 20, cfg.Server.AppendRateLimit)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1"}, cfg.Server.TrustedProxies)
	assert.Equal(t, DefaultAPIAddr, cfg.Server.APIAddr)
}

func TestLoadRejectsInvalidStore(t *testing.T) {
	path := writeFile(t, "node.yaml", `
config:
  store:
    type: postgres
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "node.toml", "x = 1"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default("")
	assert.Equal(t, DefaultDataDir, cfg.Store.Directory)
	assert.Equal(t, store.LevelDBStoreType, cfg.Store.Type)
	assert.NoError(t, cfg.Validate())
}
