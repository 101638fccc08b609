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

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	PoolSize int    `yaml:"pool_size"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// GatewayConfig carries the Vita credentials. The signing secret and login
// are injected into the client constructor, never read from globals, so
// tests can substitute fixtures.
type GatewayConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Login       string        `yaml:"login"`       // X-Login
	TransKey    string        `yaml:"trans_key"`   // X-Trans-Key
	Secret      string        `yaml:"secret"`      // HMAC secret, used as a UTF-8 string
	FrontendURL string        `yaml:"frontend_url"`
	Timeout     time.Duration `yaml:"timeout"`
	Environment string        `yaml:"environment"` // sandbox | production
}

type AdminConfig struct {
	SessionSecret string        `yaml:"session_secret"`
	SessionTTL    time.Duration `yaml:"session_ttl"`
	SecureCookie  bool          `yaml:"secure_cookie"`
	CookieDomain  string        `yaml:"cookie_domain"`
}

type AlertConfig struct {
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID int64  `yaml:"telegram_chat_id"`
}

type StorageConfig struct {
	EvidenceDir string `yaml:"evidence_dir"`
}

type SchedulerConfig struct {
	TierRecalcInterval time.Duration `yaml:"tier_recalc_interval"`
}

type PaymentConfig struct {
	DocumentPriceCOP int64 `yaml:"document_price_cop"`
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Admin     AdminConfig     `yaml:"admin"`
	Alert     AlertConfig     `yaml:"alert"`
	Storage   StorageConfig   `yaml:"storage"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Payment   PaymentConfig   `yaml:"payment"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// defaults
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout <= 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout <= 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.PoolSize <= 0 {
		cfg.Database.PoolSize = 10
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}
	if cfg.Gateway.Timeout <= 0 {
		cfg.Gateway.Timeout = 30 * time.Second
	}
	if cfg.Gateway.Environment == "" {
		cfg.Gateway.Environment = "sandbox"
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
	if cfg.Storage.EvidenceDir == "" {
		cfg.Storage.EvidenceDir = "./evidence"
	}
	if cfg.Scheduler.TierRecalcInterval <= 0 {
		cfg.Scheduler.TierRecalcInterval = time.Hour
	}
	if cfg.Payment.DocumentPriceCOP <= 0 {
		cfg.Payment.DocumentPriceCOP = 39000
	}

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if !dev {
		if cfg.Gateway.Login == "" || cfg.Gateway.Secret == "" {
			return nil, errors.New("gateway.login and gateway.secret are required outside dev mode")
		}
		if cfg.Admin.SessionSecret == "" {
			return nil, errors.New("admin.session_secret is required outside dev mode")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
