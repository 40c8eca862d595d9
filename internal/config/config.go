// Package config defines the top-level configuration for the market engine
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Storage  StorageConfig  `toml:"storage"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Oracle   OracleConfig   `toml:"oracle"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// EngineConfig holds the accounting engine parameters.
type EngineConfig struct {
	Owner             string   `toml:"owner"`
	Creators          []string `toml:"creators"`
	FeeRecipient      string   `toml:"fee_recipient"`
	FlatTax           uint64   `toml:"flat_tax"`
	ResolutionWindow  uint64   `toml:"resolution_window"`
	CancelTimeout     uint64   `toml:"cancel_timeout"`
	MinConfidence     float64  `toml:"min_confidence"`
	MaxObservationLag uint64   `toml:"max_observation_lag"`
}

// StorageConfig selects and configures the state store backend.
type StorageConfig struct {
	// Backend is "postgres" or "memory". Memory is single-process and
	// loses state on restart; it exists for development.
	Backend       string `toml:"backend"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the market
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// OracleConfig holds observation feed parameters.
type OracleConfig struct {
	// Source is "http" or "static". Static serves fixed values from
	// config and exists for development.
	Source         string           `toml:"source"`
	BaseURL        string           `toml:"base_url"`
	TimeoutSeconds int              `toml:"timeout_seconds"`
	CacheTTLSecs   int              `toml:"cache_ttl_seconds"`
	StaticHeight   uint64           `toml:"static_height"`
	StaticFeeds    map[string]int64 `toml:"static_feeds"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKeyHash is a bcrypt hash of the admin API key. Empty disables
	// authentication on mutating endpoints.
	APIKeyHash string `toml:"api_key_hash"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			Owner:             "owner",
			FeeRecipient:      "treasury",
			ResolutionWindow:  2,
			CancelTimeout:     100,
			MinConfidence:     0.5,
			MaxObservationLag: 10,
		},
		Storage: StorageConfig{
			Backend:       "postgres",
			Host:          "localhost",
			Port:          5432,
			Database:      "marketd",
			User:          "marketd",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketd-archive",
			ForcePathStyle: true,
		},
		Oracle: OracleConfig{
			Source:         "http",
			BaseURL:        "http://localhost:9200",
			TimeoutSeconds: 5,
			CacheTTLSecs:   5,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Notify: NotifyConfig{
			Events: []string{"market_resolved", "market_cancelled", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.Owner == "" {
		errs = append(errs, "engine: owner must not be empty")
	}
	if c.Engine.FeeRecipient == "" {
		errs = append(errs, "engine: fee_recipient must not be empty")
	}
	if c.Engine.ResolutionWindow == 0 {
		errs = append(errs, "engine: resolution_window must be >= 1")
	}
	if c.Engine.MinConfidence < 0 || c.Engine.MinConfidence > 1 {
		errs = append(errs, fmt.Sprintf("engine: min_confidence must be in [0,1], got %g", c.Engine.MinConfidence))
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case "memory":
	case "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			if c.Storage.Host == "" {
				errs = append(errs, "storage: host must not be empty (or set storage.dsn)")
			}
			if c.Storage.Port <= 0 || c.Storage.Port > 65535 {
				errs = append(errs, fmt.Sprintf("storage: port must be 1-65535, got %d", c.Storage.Port))
			}
			if c.Storage.Database == "" {
				errs = append(errs, "storage: database must not be empty")
			}
		}
		if c.Storage.PoolMaxConns < 1 {
			errs = append(errs, "storage: pool_max_conns must be >= 1")
		}
		if c.Storage.PoolMinConns < 0 {
			errs = append(errs, "storage: pool_min_conns must be >= 0")
		}
		if c.Storage.PoolMinConns > c.Storage.PoolMaxConns {
			errs = append(errs, "storage: pool_min_conns must not exceed pool_max_conns")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage: unknown backend %q (valid: postgres, memory)", c.Storage.Backend))
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}
	if c.Mode == "archive" && !c.S3.Enabled {
		errs = append(errs, "s3: must be enabled in archive mode")
	}

	// Oracle
	switch strings.ToLower(c.Oracle.Source) {
	case "static":
	case "http":
		if c.Oracle.BaseURL == "" {
			errs = append(errs, "oracle: base_url must not be empty")
		}
		if c.Oracle.TimeoutSeconds <= 0 {
			errs = append(errs, "oracle: timeout_seconds must be > 0")
		}
	default:
		errs = append(errs, fmt.Sprintf("oracle: unknown source %q (valid: http, static)", c.Oracle.Source))
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
