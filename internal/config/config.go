// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Render   RenderConfig   `mapstructure:"render"`
	Fallback FallbackConfig `mapstructure:"fallback"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Dataset  DatasetConfig  `mapstructure:"dataset"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs worker pool and frontier behavior.
type CrawlerConfig struct {
	MinConcurrency int    `mapstructure:"min_concurrency"`
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	RatePerMinute  int    `mapstructure:"rate_per_minute"`
	Recursive      bool   `mapstructure:"recursive"`
	UserAgent      string `mapstructure:"user_agent"`
}

// RenderConfig configures the headless rendering engine.
type RenderConfig struct {
	MaxParallel   int `mapstructure:"max_parallel"`
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
}

// FallbackConfig bounds the direct-fetch recovery path.
type FallbackConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// StorageConfig selects and configures the artifact store.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	BaseDir  string `mapstructure:"base_dir"`
	GCS      struct {
		Bucket string `mapstructure:"bucket"`
		Prefix string `mapstructure:"prefix"`
	} `mapstructure:"gcs"`
}

// DatasetConfig selects and configures the audit record store.
type DatasetConfig struct {
	Provider string `mapstructure:"provider"`
	Postgres struct {
		DSN      string `mapstructure:"dsn"`
		Table    string `mapstructure:"table"`
		MaxConns int    `mapstructure:"max_conns"`
	} `mapstructure:"postgres"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LINKAUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawler.min_concurrency", 10)
	v.SetDefault("crawler.max_concurrency", 15)
	v.SetDefault("crawler.rate_per_minute", 200)
	v.SetDefault("crawler.recursive", false)
	v.SetDefault("crawler.user_agent", "linkaudit-bot/0.1")
	v.SetDefault("render.max_parallel", 15)
	v.SetDefault("render.nav_timeout_seconds", 45)
	v.SetDefault("fallback.timeout_seconds", 5)
	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_dir", "./storage")
	v.SetDefault("dataset.provider", "memory")
	v.SetDefault("dataset.postgres.table", "page_logs")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.MinConcurrency <= 0 {
		return fmt.Errorf("crawler.min_concurrency must be > 0")
	}
	if c.Crawler.MaxConcurrency < c.Crawler.MinConcurrency {
		return fmt.Errorf("crawler.max_concurrency must be >= crawler.min_concurrency")
	}
	if c.Crawler.RatePerMinute <= 0 {
		return fmt.Errorf("crawler.rate_per_minute must be > 0")
	}
	switch c.Storage.Provider {
	case "local":
		if c.Storage.BaseDir == "" {
			return fmt.Errorf("storage.base_dir must be set for local storage")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket must be set for gcs storage")
		}
	default:
		return fmt.Errorf("unknown storage.provider %q", c.Storage.Provider)
	}
	switch c.Dataset.Provider {
	case "memory":
	case "postgres":
		if c.Dataset.Postgres.DSN == "" {
			return fmt.Errorf("dataset.postgres.dsn must be set for postgres dataset")
		}
	default:
		return fmt.Errorf("unknown dataset.provider %q", c.Dataset.Provider)
	}
	return nil
}

// NavTimeout converts the render timeout to a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutSec) * time.Second
}

// FallbackTimeout converts the fallback timeout to a duration.
func (c Config) FallbackTimeout() time.Duration {
	return time.Duration(c.Fallback.TimeoutSeconds) * time.Second
}
