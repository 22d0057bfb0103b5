package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Crawler.MinConcurrency)
	assert.Equal(t, 15, cfg.Crawler.MaxConcurrency)
	assert.Equal(t, 200, cfg.Crawler.RatePerMinute)
	assert.False(t, cfg.Crawler.Recursive)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "./storage", cfg.Storage.BaseDir)
	assert.Equal(t, "memory", cfg.Dataset.Provider)
	assert.Equal(t, 5*time.Second, cfg.FallbackTimeout())
	assert.Equal(t, 45*time.Second, cfg.NavTimeout())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
crawler:
  recursive: true
  rate_per_minute: 100
storage:
  provider: gcs
  gcs:
    bucket: audit-artifacts
dataset:
  provider: postgres
  postgres:
    dsn: postgres://localhost:5432/linkaudit
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Crawler.Recursive)
	assert.Equal(t, 100, cfg.Crawler.RatePerMinute)
	assert.Equal(t, "gcs", cfg.Storage.Provider)
	assert.Equal(t, "audit-artifacts", cfg.Storage.GCS.Bucket)
	assert.Equal(t, "postgres", cfg.Dataset.Provider)
	assert.Equal(t, "page_logs", cfg.Dataset.Postgres.Table)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad min concurrency", func(c *Config) { c.Crawler.MinConcurrency = 0 }},
		{"max below min", func(c *Config) { c.Crawler.MaxConcurrency = c.Crawler.MinConcurrency - 1 }},
		{"bad rate", func(c *Config) { c.Crawler.RatePerMinute = 0 }},
		{"unknown storage", func(c *Config) { c.Storage.Provider = "s3" }},
		{"gcs without bucket", func(c *Config) { c.Storage.Provider = "gcs" }},
		{"local without base dir", func(c *Config) { c.Storage.BaseDir = "" }},
		{"unknown dataset", func(c *Config) { c.Dataset.Provider = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Dataset.Provider = "postgres" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, base().Validate())
}
