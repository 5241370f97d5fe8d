package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "files", cfg.Output.Backend)
	assert.Equal(t, "sha1", cfg.Output.Hash)
	assert.Equal(t, "encoded", cfg.Scanners.Carve)
	assert.Equal(t, 7, cfg.Scan.MaxDepth)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output:
  backend: duckdb
  hash: blake3
scan:
  max_depth: 3
scanners:
  carve: all
  disable: [wordlist]
  options:
    gzip.max: "1048576"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Output.Backend)
	assert.Equal(t, "blake3", cfg.Output.Hash)
	assert.Equal(t, 3, cfg.Scan.MaxDepth)
	assert.Equal(t, "all", cfg.Scanners.Carve)
	assert.Equal(t, []string{"wordlist"}, cfg.Scanners.Disable)
	assert.Equal(t, "1048576", cfg.Scanners.Options["gzip.max"])
	// Untouched values keep their defaults.
	assert.Equal(t, 16, cfg.Output.ContextWindow)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  backend: files\n"), 0o644))

	t.Setenv("SIEVE_OUTPUT_BACKEND", "duckdb")
	t.Setenv("SIEVE_SCAN_MAX_DEPTH", "5")
	t.Setenv("SIEVE_DEBUG_NO_DEDUP", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "duckdb", cfg.Output.Backend)
	assert.Equal(t, 5, cfg.Scan.MaxDepth)
	assert.True(t, cfg.Debug.NoDedup)
}

func TestLoadRejectsBadEnvValues(t *testing.T) {
	t.Setenv("SIEVE_SCAN_MAX_DEPTH", "many")
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults are valid", func(c *Config) {}, false},
		{"bad backend", func(c *Config) { c.Output.Backend = "csv" }, true},
		{"bad carve mode", func(c *Config) { c.Scanners.Carve = "some" }, true},
		{"zero page size", func(c *Config) { c.Scan.PageSize = 0 }, true},
		{"margin exceeds page", func(c *Config) { c.Scan.Margin = c.Scan.PageSize }, true},
		{"zero max depth", func(c *Config) { c.Scan.MaxDepth = 0 }, true},
		{"negative context window", func(c *Config) { c.Output.ContextWindow = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
