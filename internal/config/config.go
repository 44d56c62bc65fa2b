package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	Version  string         `yaml:"version"`
	Server   ServerConfig   `yaml:"server"`
	Telegram TelegramConfig `yaml:"telegram"`
	API      APIConfig      `yaml:"api"`
	Session  SessionConfig  `yaml:"session"`
	Dialog   DialogConfig   `yaml:"dialog"`
	Database DatabaseConfig `yaml:"database"`
	Catalog  CatalogConfig  `yaml:"catalog"`
}

// ServerConfig contains the admin HTTP server configuration.
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
}

// TelegramConfig contains bot transport configuration.
type TelegramConfig struct {
	BotToken          string  `yaml:"bot_token"`
	Enabled           bool    `yaml:"enabled"`
	AdminIDs          []int64 `yaml:"admin_ids"`
	MessagesPerMinute int     `yaml:"messages_per_minute"`
	PollTimeout       int     `yaml:"poll_timeout"`
}

// APIConfig contains remote subscriber API configuration.
type APIConfig struct {
	BaseURL        string        `yaml:"base_url"`
	AuthBaseURL    string        `yaml:"auth_base_url"`
	APIKey         string        `yaml:"api_key"`
	OTPChannel     string        `yaml:"otp_channel"`
	Timeout        time.Duration `yaml:"timeout"`
	FingerprintTLS bool          `yaml:"fingerprint_tls"`
}

// SessionConfig controls the session cache.
type SessionConfig struct {
	FreshnessWindow time.Duration `yaml:"freshness_window"`
}

// DialogConfig controls multi-step dialogs.
type DialogConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	PruneAfter  time.Duration `yaml:"prune_after"`
}

// DatabaseConfig contains persistent storage configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CatalogConfig contains curated-offer catalog configuration.
type CatalogConfig struct {
	HotPath  string `yaml:"hot_path"`
	Hot2Path string `yaml:"hot2_path"`
	Watch    bool   `yaml:"watch"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.HTTPPort < 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 0 and 65535, got %d", c.Server.HTTPPort)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout cannot be negative")
	}
	switch c.Server.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level must be one of debug, info, warn, error; got %q", c.Server.LogLevel)
	}
	if c.Telegram.MessagesPerMinute < 0 {
		return fmt.Errorf("telegram.messages_per_minute cannot be negative")
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("telegram.poll_timeout cannot be negative")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("api.timeout cannot be negative")
	}
	if c.Session.FreshnessWindow <= 0 {
		return fmt.Errorf("session.freshness_window must be positive, got %v", c.Session.FreshnessWindow)
	}
	if c.Dialog.MaxAttempts < 1 {
		return fmt.Errorf("dialog.max_attempts must be at least 1, got %d", c.Dialog.MaxAttempts)
	}
	if c.Dialog.PruneAfter < 0 {
		return fmt.Errorf("dialog.prune_after cannot be negative")
	}
	return nil
}

// IsAdmin reports whether the given chat user is a configured administrator.
func (c *TelegramConfig) IsAdmin(chatUserID int64) bool {
	for _, id := range c.AdminIDs {
		if id == chatUserID {
			return true
		}
	}
	return false
}
