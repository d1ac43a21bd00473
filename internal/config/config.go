// Package config loads and exposes application configuration (TOML).
package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Default configuration values used when a field is missing in TOML.
const (
	DefaultConfigPath       = "config.toml"
	DefaultHTTPAddr         = ":8080"
	DefaultPollTimeout      = 30
	DefaultPGHost           = "127.0.0.1"
	DefaultPGPort           = 5432
	DefaultPGUser           = "postgres"
	DefaultPGDatabase       = "reportbot"
	DefaultPGSSLMode        = "disable"
	DefaultReminderPattern  = "0 18 * * *"
	DefaultInviteTTL        = "72h"
	DefaultSessionIdleTTL   = "2h"
	DefaultSendRatePerSec   = 25
)

// Config is the root application configuration loaded from TOML.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Telegram TelegramConfig `toml:"telegram"`
	Postgres PostgresConfig `toml:"postgres"`
	Reminder ReminderConfig `toml:"reminder"`
	Auth     AuthConfig     `toml:"auth"`
	Session  SessionConfig  `toml:"session"`
}

// LogConfig holds logging level and format (e.g. level=info, format=text).
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig holds the ops HTTP server listen address.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// TelegramConfig holds the bot token, long-poll timeout, and the outbound
// send rate cap shared by all fan-out sends.
type TelegramConfig struct {
	BotToken       string `toml:"bot_token"`
	PollTimeout    int    `toml:"poll_timeout"`
	SendRatePerSec int    `toml:"send_rate_per_sec"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// ReminderConfig holds the cron pattern for the daily missing-report reminder.
type ReminderConfig struct {
	Pattern string `toml:"pattern"`
	Enabled bool   `toml:"enabled"`
}

// AuthConfig holds the invite-code signing secret and code lifetime (e.g. 72h).
type AuthConfig struct {
	InviteSecret string `toml:"invite_secret"`
	InviteTTL    string `toml:"invite_ttl"`
}

// SessionConfig holds the idle eviction lifetime for conversational sessions.
type SessionConfig struct {
	IdleTTL string `toml:"idle_ttl"`
}

// Load reads and parses the TOML config file at path and applies default values for missing fields.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Telegram: TelegramConfig{
			PollTimeout:    DefaultPollTimeout,
			SendRatePerSec: DefaultSendRatePerSec,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Reminder: ReminderConfig{
			Pattern: DefaultReminderPattern,
			Enabled: true,
		},
		Auth: AuthConfig{
			InviteTTL: DefaultInviteTTL,
		},
		Session: SessionConfig{
			IdleTTL: DefaultSessionIdleTTL,
		},
	}
	if path == "" {
		path = DefaultConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Telegram.PollTimeout <= 0 {
		cfg.Telegram.PollTimeout = DefaultPollTimeout
	}
	if cfg.Telegram.SendRatePerSec <= 0 {
		cfg.Telegram.SendRatePerSec = DefaultSendRatePerSec
	}
	return cfg, nil
}
