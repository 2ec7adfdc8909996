package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	DefaultBufSize       = 100
	DefaultLogLevel      = "info"
	DefaultTopLimit      = 50
	DefaultBroadcastSpec = "@every 5m"
	DefaultSweepSpec     = "@every 1m"
)

type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Store     StoreConfig     `json:"store"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Log       LogConfig       `json:"log"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	Proxy string `json:"proxy,omitempty"`
}

type StoreConfig struct {
	// RedisURL selects the redis-backed counter store; empty falls back to
	// the in-process store (counters lost on restart).
	RedisURL string `json:"redisUrl,omitempty"`
}

type BroadcastConfig struct {
	Enabled bool  `json:"enabled"`
	ChatID  int64 `json:"chatId,omitempty"`
}

type LogConfig struct {
	Level       string `json:"level"`
	Environment string `json:"environment,omitempty"` // "development" enables console output
}

func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

func ConfigDir() string {
	home := os.Getenv("HOME")
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return filepath.Join(home, ".chatpulse")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

func LoadConfig() (*Config, error) {
	return loadConfig(ConfigPath())
}

func loadConfig(path string) (*Config, error) {
	// A local .env is a convenience for development; absence is fine.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if token := os.Getenv("CHATPULSE_TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if proxy := os.Getenv("CHATPULSE_TELEGRAM_PROXY"); proxy != "" {
		cfg.Telegram.Proxy = proxy
	}
	if url := os.Getenv("CHATPULSE_REDIS_URL"); url != "" {
		cfg.Store.RedisURL = url
	}
	if chat := os.Getenv("CHATPULSE_BROADCAST_CHAT_ID"); chat != "" {
		if parsed, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Broadcast.ChatID = parsed
			cfg.Broadcast.Enabled = true
		}
	}
	if level := os.Getenv("CHATPULSE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}

	return cfg, nil
}

func SaveConfig(cfg *Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(ConfigPath(), data, 0644)
}
