package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 100, cfg.Semantic.SearchWindow)
	assert.NotEmpty(t, cfg.Extraction.Categories)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"sqlite without path", func(c *Config) { c.Store.Backend = "sqlite" }, "requires a path"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, "backend must be"},
		{"negative cache", func(c *Config) { c.Extraction.CacheSize = -1 }, "cache_size"},
		{"negative window", func(c *Config) { c.Semantic.SearchWindow = -5 }, "search_window"},
		{"similarity out of range", func(c *Config) { c.Semantic.MinSimilarity = 1.5 }, "min_similarity"},
		{"bad logging format", func(c *Config) { c.Logging.Format = "xml" }, "logging"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errHas)
		})
	}
}

func TestLoadWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  path: /tmp/contextos.db
semantic:
  search_window: 250
`), 0o600))

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, "/tmp/contextos.db", cfg.Store.Path)
	assert.Equal(t, 250, cfg.Semantic.SearchWindow)

	// Unset sections come from defaults.
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.NotZero(t, cfg.Extraction.CacheSize)
}

func TestLoadWithFile_EnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
store:
  backend: sqlite
  path: /tmp/contextos.db
`), 0o600))

	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend, "environment beats the file")
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadWithFile_RejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	big := "# " + strings.Repeat("x", maxConfigFileSize)
	require.NoError(t, os.WriteFile(path, []byte(big), 0o600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestLoadWithFile_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
semantic:
  min_similarity: 3.0
`), 0o600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min_similarity")
}
