package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Transport modes for receiving Telegram updates.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// TelegramConfig holds the bot credentials and transport binding.
type TelegramConfig struct {
	Token         string        // bot API token, required
	Mode          string        // "polling" or "webhook"
	WebhookSecret string        // shared secret for the webhook route, required in webhook mode
	PollTimeout   time.Duration // long-poll timeout for getUpdates
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr          string // listen address, default ":8080"
	PublicBaseURL string // externally reachable base URL; required in webhook mode, optional otherwise (enables QR links)
}

// DatabaseConfig selects the directory's backing store.
type DatabaseConfig struct {
	Type string // "sqlite" or "postgres"
	DSN  string // sqlite file path or postgres DSN
}

// RedisConfig is optional; when Address is empty the in-memory
// pending-state store is used instead.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// RelayConfig tunes the relay workflow.
type RelayConfig struct {
	PendingTTL    time.Duration // how long an unconsumed pending target lives
	FloodCooldown time.Duration // minimum interval between updates per chat
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string
	Development bool
	File        string // when set, logs rotate via lumberjack
}

type Config struct {
	Telegram TelegramConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Relay    RelayConfig
	Log      LogConfig
}

// Load reads configuration from the environment (prefix WHISPR_) with an
// optional .env file fallback. Missing or inconsistent required settings
// return an error; the caller treats that as fatal.
func Load() (*Config, error) {
	// .env is optional; real env vars always win.
	_ = godotenv.Load(".env")

	viper.SetEnvPrefix("whispr")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("telegram.mode", ModePolling)
	viper.SetDefault("telegram.poll_timeout", "30s")
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.public_base_url", "")
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.dsn", "whispr.db")
	viper.SetDefault("redis.address", "")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("relay.pending_ttl", "1h")
	viper.SetDefault("relay.flood_cooldown", "3s")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.development", false)
	viper.SetDefault("log.file", "")

	cfg := &Config{
		Telegram: TelegramConfig{
			Token:         viper.GetString("telegram.token"),
			Mode:          strings.ToLower(viper.GetString("telegram.mode")),
			WebhookSecret: viper.GetString("telegram.webhook_secret"),
		},
		Server: ServerConfig{
			Addr:          viper.GetString("server.addr"),
			PublicBaseURL: strings.TrimRight(viper.GetString("server.public_base_url"), "/"),
		},
		Database: DatabaseConfig{
			Type: strings.ToLower(viper.GetString("database.type")),
			DSN:  viper.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Address:  viper.GetString("redis.address"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:       viper.GetString("log.level"),
			Development: viper.GetBool("log.development"),
			File:        viper.GetString("log.file"),
		},
	}

	var err error
	if cfg.Telegram.PollTimeout, err = time.ParseDuration(viper.GetString("telegram.poll_timeout")); err != nil {
		return nil, fmt.Errorf("invalid telegram.poll_timeout: %w", err)
	}
	if cfg.Relay.PendingTTL, err = time.ParseDuration(viper.GetString("relay.pending_ttl")); err != nil {
		return nil, fmt.Errorf("invalid relay.pending_ttl: %w", err)
	}
	if cfg.Relay.FloodCooldown, err = time.ParseDuration(viper.GetString("relay.flood_cooldown")); err != nil {
		return nil, fmt.Errorf("invalid relay.flood_cooldown: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("WHISPR_TELEGRAM_TOKEN is required")
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Server.PublicBaseURL == "" {
			return fmt.Errorf("WHISPR_SERVER_PUBLIC_BASE_URL is required in webhook mode")
		}
		if c.Telegram.WebhookSecret == "" {
			return fmt.Errorf("WHISPR_TELEGRAM_WEBHOOK_SECRET is required in webhook mode")
		}
	default:
		return fmt.Errorf("invalid telegram.mode %q (want %q or %q)", c.Telegram.Mode, ModePolling, ModeWebhook)
	}
	switch c.Database.Type {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid database.type %q (want sqlite or postgres)", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must not be empty")
	}
	return nil
}
