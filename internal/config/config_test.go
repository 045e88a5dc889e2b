package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err, "a missing config file falls back to defaults")

	assert.Contains(t, cfg.Database.Path, "fixbank")
	assert.Equal(t, "BAAI/bge-small-en-v1.5", cfg.Embeddings.Model)
	assert.Equal(t, 10, cfg.Recommender.K)
	assert.InDelta(t, 0.4, cfg.Recommender.MinConfidence, 0.0001)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  path: /tmp/test-attempts.db
recommender:
  k: 25
  min_confidence: 0.6
logging:
  level: debug
  format: console
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test-attempts.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Recommender.K)
	assert.InDelta(t, 0.6, cfg.Recommender.MinConfidence, 0.0001)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  path: /tmp/from-file.db\n"), 0o600))

	t.Setenv("FIXBANK_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("FIXBANK_LOGGING_LEVEL", "warn")
	t.Setenv("FIXBANK_RECOMMENDER_MIN_CONFIDENCE", "0.7")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database.Path)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.InDelta(t, 0.7, cfg.Recommender.MinConfidence, 0.0001)
}

func TestLoad_MalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := Config{}
	applyDefaults(&valid)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"negative k", func(c *Config) { c.Recommender.K = -1 }},
		{"min_confidence above 1", func(c *Config) { c.Recommender.MinConfidence = 1.5 }},
		{"min_confidence below 0", func(c *Config) { c.Recommender.MinConfidence = -0.1 }},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
