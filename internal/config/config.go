// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type APIConfig struct {
	Port int    `yaml:"port"`
	Key  string `yaml:"key"`
	// RateLimit is the per-user send budget per minute. 0 disables limiting.
	RateLimit int `yaml:"rate_limit"`
}

type NotifyConfig struct {
	Telegram struct {
		Token  string `yaml:"token"`
		ChatID int64  `yaml:"chat_id"`
	} `yaml:"telegram"`
}

type WebhookConfig struct {
	URL     string        `yaml:"url"`
	Secret  string        `yaml:"secret"`
	Timeout time.Duration `yaml:"timeout"`
}

type SchedulerConfig struct {
	WarmupCron     string `yaml:"warmup_cron"`
	DailyResetCron string `yaml:"daily_reset_cron"`
	RiskDecayCron  string `yaml:"risk_decay_cron"`
}

type SessionConfig struct {
	InitTimeout time.Duration `yaml:"init_timeout"` // per-chip initialization budget
	QueueDelay  time.Duration `yaml:"queue_delay"`  // pacing between initializations
}

type Config struct {
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	API       APIConfig       `yaml:"api"`
	Notify    NotifyConfig    `yaml:"notify"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Session   SessionConfig   `yaml:"session"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(configPath string, dev bool) (*Config, error) {
	b, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.Port <= 0 {
		cfg.API.Port = 8080
	}
	if cfg.Scheduler.WarmupCron == "" {
		cfg.Scheduler.WarmupCron = "0 */3 * * *"
	}
	if cfg.Scheduler.DailyResetCron == "" {
		cfg.Scheduler.DailyResetCron = "0 0 * * *"
	}
	if cfg.Scheduler.RiskDecayCron == "" {
		cfg.Scheduler.RiskDecayCron = "0 * * * *"
	}
	if cfg.Session.InitTimeout <= 0 {
		cfg.Session.InitTimeout = 90 * time.Second
	}
	if cfg.Session.QueueDelay <= 0 {
		cfg.Session.QueueDelay = 2 * time.Second
	}
	if cfg.Webhook.Timeout <= 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.API.Key == "" {
		return nil, errors.New("api.key is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
