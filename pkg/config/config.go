package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Gateway  GatewayConfig  `json:"gateway"`
	Session  SessionConfig  `json:"session"`
	Extract  ExtractConfig  `json:"extract"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token     string   `json:"token" env:"ELIXIR_TELEGRAM_TOKEN"`
	Webhook   bool     `json:"webhook" env:"ELIXIR_TELEGRAM_WEBHOOK"`
	AllowFrom []string `json:"allow_from" env:"ELIXIR_TELEGRAM_ALLOW_FROM"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"ELIXIR_GATEWAY_HOST"`
	Port int    `json:"port" env:"ELIXIR_GATEWAY_PORT"`
}

type SessionConfig struct {
	TTLSec int `json:"ttl_sec" env:"ELIXIR_SESSION_TTL_SEC"`
	// Cron spec driving the periodic sweep, e.g. "@every 1m".
	SweepSpec string `json:"sweep_spec" env:"ELIXIR_SESSION_SWEEP_SPEC"`
}

type ExtractConfig struct {
	// Ordered list of media types the extractor probes; the first match wins.
	MediaOrder          []string `json:"media_order" env:"ELIXIR_EXTRACT_MEDIA_ORDER"`
	CacheTTLSec         int      `json:"cache_ttl_sec" env:"ELIXIR_EXTRACT_CACHE_TTL_SEC"`
	NotifyUnknownAction bool     `json:"notify_unknown_action" env:"ELIXIR_EXTRACT_NOTIFY_UNKNOWN_ACTION"`
}

type LoggingConfig struct {
	Enabled       bool   `json:"enabled" env:"ELIXIR_LOGGING_ENABLED"`
	Dir           string `json:"dir" env:"ELIXIR_LOGGING_DIR"`
	Filename      string `json:"filename" env:"ELIXIR_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"ELIXIR_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"ELIXIR_LOGGING_RETENTION_DAYS"`
}

func DefaultConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:     "",
			Webhook:   false,
			AllowFrom: []string{},
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18791,
		},
		Session: SessionConfig{
			TTLSec:    300,
			SweepSpec: "@every 1m",
		},
		Extract: ExtractConfig{
			MediaOrder:          []string{"photo", "video", "document", "audio", "voice", "sticker"},
			CacheTTLSec:         300,
			NotifyUnknownAction: true,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           "logs",
			Filename:      "elixir.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, cfg.validate()
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, cfg.validate()
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.Session.TTLSec <= 0 {
		return fmt.Errorf("invalid config: session.ttl_sec must be positive, got %d", c.Session.TTLSec)
	}
	if c.Extract.CacheTTLSec <= 0 {
		return fmt.Errorf("invalid config: extract.cache_ttl_sec must be positive, got %d", c.Extract.CacheTTLSec)
	}
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid config: gateway.port out of range: %d", c.Gateway.Port)
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Extract.CacheTTLSec) * time.Second
}

func (c *Config) LogFilePath() string {
	filename := c.Logging.Filename
	if filename == "" {
		filename = "elixir.log"
	}
	return filepath.Join(c.Logging.Dir, filename)
}
