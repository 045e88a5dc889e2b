// Package config provides configuration loading for fixbank.
//
// Configuration precedence (highest to lowest): environment variables, the
// YAML config file, hardcoded defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the complete fixbank configuration.
type Config struct {
	Database    DatabaseConfig    `koanf:"database"`
	Embeddings  EmbeddingsConfig  `koanf:"embeddings"`
	Recommender RecommenderConfig `koanf:"recommender"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// DatabaseConfig locates the attempt store.
type DatabaseConfig struct {
	// Path is the SQLite file holding the attempt log.
	Path string `koanf:"path"`
}

// EmbeddingsConfig selects and tunes the embedding backend.
type EmbeddingsConfig struct {
	// Model is the neural model name (default BAAI/bge-small-en-v1.5).
	Model string `koanf:"model"`

	// CacheDir caches downloaded model files.
	CacheDir string `koanf:"cache_dir"`
}

// RecommenderConfig tunes recommendation retrieval and gating.
type RecommenderConfig struct {
	// K is the retrieval depth for similar attempts.
	K int `koanf:"k"`

	// MinConfidence gates recommendations below this confidence.
	MinConfidence float64 `koanf:"min_confidence"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(home, ".local", "share", "fixbank", "attempts.db")
	}
	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "BAAI/bge-small-en-v1.5"
	}
	if cfg.Embeddings.CacheDir == "" {
		cfg.Embeddings.CacheDir = filepath.Join(home, ".cache", "fixbank", "models")
	}
	if cfg.Recommender.K == 0 {
		cfg.Recommender.K = 10
	}
	if cfg.Recommender.MinConfidence == 0 {
		cfg.Recommender.MinConfidence = 0.4
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Recommender.K < 0 {
		return fmt.Errorf("recommender k cannot be negative, got %d", c.Recommender.K)
	}
	if c.Recommender.MinConfidence < 0 || c.Recommender.MinConfidence > 1 {
		return fmt.Errorf("recommender min_confidence must be in [0,1], got %g", c.Recommender.MinConfidence)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
