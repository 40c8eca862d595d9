package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration from the given TOML file, layered on top of
// Defaults, then applies MARKETD_* environment variable overrides. A .env
// file in the working directory is loaded first if present.
func Load(path string) (Config, error) {
	// Best effort; a missing .env file is not an error.
	_ = godotenv.Load()

	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		}
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from MARKETD_* environment variables.
// Only secrets and deployment-specific knobs are exposed this way.
func applyEnv(cfg *Config) {
	setStr("MARKETD_MODE", &cfg.Mode)
	setStr("MARKETD_LOG_LEVEL", &cfg.LogLevel)

	setStr("MARKETD_OWNER", &cfg.Engine.Owner)
	setStr("MARKETD_FEE_RECIPIENT", &cfg.Engine.FeeRecipient)
	setUint64("MARKETD_FLAT_TAX", &cfg.Engine.FlatTax)

	setStr("MARKETD_STORAGE_BACKEND", &cfg.Storage.Backend)
	setStr("MARKETD_POSTGRES_DSN", &cfg.Storage.DSN)
	setStr("MARKETD_POSTGRES_HOST", &cfg.Storage.Host)
	setInt("MARKETD_POSTGRES_PORT", &cfg.Storage.Port)
	setStr("MARKETD_POSTGRES_DATABASE", &cfg.Storage.Database)
	setStr("MARKETD_POSTGRES_USER", &cfg.Storage.User)
	setStr("MARKETD_POSTGRES_PASSWORD", &cfg.Storage.Password)

	setBool("MARKETD_REDIS_ENABLED", &cfg.Redis.Enabled)
	setStr("MARKETD_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("MARKETD_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("MARKETD_REDIS_DB", &cfg.Redis.DB)

	setBool("MARKETD_S3_ENABLED", &cfg.S3.Enabled)
	setStr("MARKETD_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("MARKETD_S3_BUCKET", &cfg.S3.Bucket)
	setStr("MARKETD_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("MARKETD_S3_SECRET_KEY", &cfg.S3.SecretKey)

	setStr("MARKETD_ORACLE_SOURCE", &cfg.Oracle.Source)
	setStr("MARKETD_ORACLE_BASE_URL", &cfg.Oracle.BaseURL)

	setInt("MARKETD_SERVER_PORT", &cfg.Server.Port)
	setStr("MARKETD_API_KEY_HASH", &cfg.Server.APIKeyHash)

	setStr("MARKETD_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("MARKETD_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("MARKETD_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint64(key string, dst *uint64) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			*dst = true
		case "0", "false", "no", "off":
			*dst = false
		}
	}
}
