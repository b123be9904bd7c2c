package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "google", cfg.Provider)
	assert.True(t, cfg.TTL.UseUpstream)
	assert.Equal(t, "doh.db", cfg.SQLitePath)
	assert.False(t, cfg.DiagnosticsOn)
}

func TestLoad_CloudflareAndFixedTTL(t *testing.T) {
	path := writeConfig(t, "[resolver]\nprovider = cloudflare\nttl = 120\n\n[sqlite]\nconnection = /var/lib/frost-doh/doh.db\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cloudflare", cfg.Provider)
	assert.False(t, cfg.TTL.UseUpstream)
	assert.EqualValues(t, 120, cfg.TTL.FixedSecs)
	assert.Equal(t, "/var/lib/frost-doh/doh.db", cfg.SQLitePath)
}

func TestLoad_BadTTLFallsBackTo60(t *testing.T) {
	path := writeConfig(t, "[resolver]\nttl = not-a-number\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.EqualValues(t, 60, cfg.TTL.FixedSecs)
}

func TestLoad_MissingFileIsFatal(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestPath_EnvOverride(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/tmp/custom.ini")
	assert.Equal(t, "/tmp/custom.ini", Path())
}

func TestPath_Default(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	assert.Equal(t, defaultConfigPath, Path())
}
