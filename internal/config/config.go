// Package config loads and validates application configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/wbstats/internal/logging"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Headless HeadlessConfig `mapstructure:"headless"`
	DB       DBConfig       `mapstructure:"db"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// ScraperConfig governs the fetch/extract pipeline.
type ScraperConfig struct {
	BaseURL          string `mapstructure:"base_url"`
	UserAgent        string `mapstructure:"user_agent"`
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	DelayMinMs       int    `mapstructure:"delay_min_ms"`
	DelayMaxMs       int    `mapstructure:"delay_max_ms"`
	DefaultCountries int    `mapstructure:"default_countries"`
}

// HeadlessConfig configures the headless rendering escalation.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// DBConfig selects and configures the relational store.
type DBConfig struct {
	Driver   string         `mapstructure:"driver"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// SQLiteConfig holds the on-disk location of the SQLite store.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresConfig holds connection settings for the Postgres store.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int    `mapstructure:"max_conns"`
}

// ArchiveConfig selects where raw scrape snapshots are kept.
type ArchiveConfig struct {
	Provider string             `mapstructure:"provider"`
	Prefix   string             `mapstructure:"prefix"`
	Local    LocalArchiveConfig `mapstructure:"local"`
	GCS      GCSArchiveConfig   `mapstructure:"gcs"`
}

// LocalArchiveConfig configures the filesystem archive provider.
type LocalArchiveConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// GCSArchiveConfig configures the Google Cloud Storage archive provider.
type GCSArchiveConfig struct {
	Bucket string `mapstructure:"bucket"`
}

// NotifyConfig selects the run-completion publisher.
type NotifyConfig struct {
	Provider string       `mapstructure:"provider"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. When path is empty the standard
// locations are searched and a missing file is tolerated; defaults plus
// WBSTATS_* environment variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WBSTATS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wbstats/")
		v.AddConfigPath("$HOME/.wbstats")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
			logging.L.Warn("Config file not found; using defaults and environment variables.")
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
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("scraper.base_url", "https://data.worldbank.org")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.delay_min_ms", 1000)
	v.SetDefault("scraper.delay_max_ms", 2000)
	v.SetDefault("scraper.default_countries", 10)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.sqlite.path", "data/processed/worldbank.db")
	v.SetDefault("db.postgres.max_conns", 4)
	v.SetDefault("archive.provider", "local")
	v.SetDefault("archive.prefix", "")
	v.SetDefault("archive.local.base_dir", "data/raw")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.TimeoutSeconds <= 0 {
		return fmt.Errorf("server.timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.DelayMinMs < 0 {
		return fmt.Errorf("scraper.delay_min_ms must be >= 0")
	}
	if c.Scraper.DelayMaxMs < c.Scraper.DelayMinMs {
		return fmt.Errorf("scraper.delay_max_ms must be >= scraper.delay_min_ms")
	}
	if c.Scraper.DefaultCountries <= 0 {
		return fmt.Errorf("scraper.default_countries must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	switch c.DB.Driver {
	case "sqlite":
		if c.DB.SQLite.Path == "" {
			return fmt.Errorf("db.sqlite.path must be set when db.driver is 'sqlite'")
		}
	case "postgres":
		if c.DB.Postgres.DSN == "" {
			return fmt.Errorf("db.postgres.dsn must be set when db.driver is 'postgres'")
		}
	default:
		return fmt.Errorf("unknown db.driver: %s", c.DB.Driver)
	}
	switch c.Archive.Provider {
	case "local":
		if c.Archive.Local.BaseDir == "" {
			return fmt.Errorf("archive.local.base_dir must be set when archive.provider is 'local'")
		}
	case "gcs":
		if c.Archive.GCS.Bucket == "" {
			return fmt.Errorf("archive.gcs.bucket must be set when archive.provider is 'gcs'")
		}
	case "memory", "noop":
	default:
		return fmt.Errorf("unknown archive.provider: %s", c.Archive.Provider)
	}
	switch c.Notify.Provider {
	case "pubsub":
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic_id must be set when notify.provider is 'pubsub'")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown notify.provider: %s", c.Notify.Provider)
	}
	return nil
}

// RequestTimeout converts the scraper timeout into a duration.
func (c ScraperConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DelayMin is the lower bound of the politeness pause.
func (c ScraperConfig) DelayMin() time.Duration {
	return time.Duration(c.DelayMinMs) * time.Millisecond
}

// DelayMax is the upper bound of the politeness pause.
func (c ScraperConfig) DelayMax() time.Duration {
	return time.Duration(c.DelayMaxMs) * time.Millisecond
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c HeadlessConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// Timeout converts the server handler timeout into a duration.
func (c ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
