package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lurk.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.CacheEntries)
	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, lvl)
	assert.Len(t, cfg.ChainHashBytes(), 32)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
cache_path = "/tmp/p.db"
log_level = "debug"
cache_entries = 8

[chain]
key_file = "/tmp/op.key"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/p.db", cfg.CachePath)
	assert.Equal(t, 8, cfg.CacheEntries)
	assert.Equal(t, "/tmp/op.key", cfg.Chain.KeyFile)
	assert.Equal(t, Default().KeysDir, cfg.KeysDir)
	assert.Equal(t, Default().Drand, cfg.Drand)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	path := writeConfig(t, `
log_level = "loud"
cache_entries = 0

[drand]
chain_hash = "abcd"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
	assert.ErrorIs(t, err, ErrInvalidEntries)
	assert.ErrorIs(t, err, ErrInvalidChainHash)
}

func TestUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, `cache_pth = "typo"`))
	assert.ErrorContains(t, err, "unknown keys")
}

func TestMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
