// Package config provides configuration loading for contextos.
package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/contextos/internal/logging"
	"github.com/fyrsmithlabs/contextos/pkg/extraction"
	"github.com/fyrsmithlabs/contextos/pkg/semantic"
)

// Config is the top-level contextos configuration.
type Config struct {
	Logging    logging.Config    `koanf:"logging"`
	Store      StoreConfig       `koanf:"store"`
	Extraction extraction.Config `koanf:"extraction"`
	Semantic   SemanticConfig    `koanf:"semantic"`
}

// StoreConfig selects and parameterizes the document store backend.
type StoreConfig struct {
	// Backend is "memory" or "sqlite".
	Backend string `koanf:"backend"`

	// Path is the database file for the sqlite backend.
	Path string `koanf:"path"`
}

// SemanticConfig tunes the semantic query engine.
type SemanticConfig struct {
	SearchWindow  int     `koanf:"search_window"`
	DefaultLimit  int     `koanf:"default_limit"`
	MinSimilarity float64 `koanf:"min_similarity"`
}

// NewDefaultConfig returns the hardcoded defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: *logging.NewDefaultConfig(),
		Store: StoreConfig{
			Backend: "memory",
		},
		Extraction: extraction.DefaultConfig(),
		Semantic: SemanticConfig{
			SearchWindow:  semantic.DefaultSearchWindow,
			DefaultLimit:  semantic.DefaultSearchLimit,
			MinSimilarity: semantic.DefaultMinSimilarity,
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store: sqlite backend requires a path")
		}
	default:
		return fmt.Errorf("store: backend must be 'memory' or 'sqlite', got %q", c.Store.Backend)
	}
	if c.Extraction.CacheSize < 0 {
		return fmt.Errorf("extraction: cache_size cannot be negative")
	}
	if c.Semantic.SearchWindow < 0 {
		return fmt.Errorf("semantic: search_window cannot be negative")
	}
	if c.Semantic.MinSimilarity < 0 || c.Semantic.MinSimilarity > 1 {
		return fmt.Errorf("semantic: min_similarity must be between 0.0 and 1.0")
	}
	return nil
}

// applyDefaults fills zero values with defaults after unmarshaling.
func applyDefaults(cfg *Config) {
	def := NewDefaultConfig()

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if !cfg.Logging.Output.Stdout && !cfg.Logging.Output.OTEL {
		cfg.Logging.Output = def.Logging.Output
	}
	if cfg.Logging.Level == zapcore.Level(0) && cfg.Logging.Fields == nil {
		cfg.Logging.Fields = def.Logging.Fields
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = def.Store.Backend
	}
	if cfg.Extraction.CacheSize == 0 {
		cfg.Extraction.CacheSize = def.Extraction.CacheSize
	}
	if len(cfg.Extraction.Categories) == 0 {
		cfg.Extraction.Categories = def.Extraction.Categories
	}
	if cfg.Semantic.SearchWindow == 0 {
		cfg.Semantic.SearchWindow = def.Semantic.SearchWindow
	}
	if cfg.Semantic.DefaultLimit == 0 {
		cfg.Semantic.DefaultLimit = def.Semantic.DefaultLimit
	}
	if cfg.Semantic.MinSimilarity == 0 {
		cfg.Semantic.MinSimilarity = def.Semantic.MinSimilarity
	}
}
