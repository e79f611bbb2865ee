package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Env            string               `yaml:"environment" env:"ENVIRONMENT"`
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Cache          CacheConfig          `yaml:"cache"`
	Identity       IdentityConfig       `yaml:"identity"`
	AccountService AccountServiceConfig `yaml:"account_service"`
	Push           PushConfig           `yaml:"push"`
}

// PushConfig holds the VAPID keys browsers use to create push channels.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" env:"VAPID_SUBJECT"`
	TTL        int    `yaml:"ttl"`
	// GenerateKeys creates an ephemeral key pair at startup when none is configured.
	GenerateKeys bool `yaml:"generate_keys" env:"VAPID_GENERATE_KEYS"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                  int     `yaml:"port" env:"PORT"`
	RequestIPHeader       string  `yaml:"request_ip_header"`
	RateLimitPerSec       float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst        int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds       int     `yaml:"cache_ttl_seconds"`
	RequestTimeoutSeconds int     `yaml:"request_timeout_seconds"`
}

// DatabaseConfig holds the entity store configuration.
type DatabaseConfig struct {
	// Driver is one of "postgres", "sqlite" or "firestore".
	Driver                 string `yaml:"driver" env:"DB_DRIVER"`
	DSN                    string `yaml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	FirestoreProject       string `yaml:"firestore_project" env:"FIRESTORE_PROJECT"`
	FirestoreCollection    string `yaml:"firestore_collection"`
}

// CacheConfig configures the subscription read cache.
type CacheConfig struct {
	// Backend is one of "none", "memory" or "redis".
	Backend       string `yaml:"backend" env:"CACHE_BACKEND"`
	TTLSeconds    int    `yaml:"ttl_seconds"`
	RedisAddr     string `yaml:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db"`
}

// IdentityConfig configures the device identity cookies.
type IdentityConfig struct {
	Salt       string `yaml:"salt" env:"IDENTITY_SALT"`
	IDCookie   string `yaml:"id_cookie"`
	FlagCookie string `yaml:"flag_cookie"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Domain     string `yaml:"domain"`
	Secure     bool   `yaml:"secure"`
}

// AccountServiceConfig configures the DocuSign client.
type AccountServiceConfig struct {
	IntegratorKey  string `yaml:"integrator_key" env:"DOCUSIGN_INTEGRATOR_KEY"`
	Version        string `yaml:"version"`
	Environment    string `yaml:"environment" env:"DOCUSIGN_ENVIRONMENT"`
	BaseURL        string `yaml:"base_url"`
	HTTPProxy      string `yaml:"http_proxy" env:"HTTP_PROXY"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// MaxAge returns the identity cookie lifetime.
func (c IdentityConfig) MaxAge() time.Duration {
	return time.Duration(c.MaxAgeDays) * 24 * time.Hour
}

// RequestTimeout returns the per-request deadline.
func (c ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// TTL returns the subscription cache entry lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// Load reads the configuration from the given path, then applies environment
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.RequestTimeoutSeconds <= 0 {
		cfg.Server.RequestTimeoutSeconds = 30
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == "" {
		cfg.Database.DSN = "push-notify.sqlite"
	}
	if cfg.Database.FirestoreCollection == "" {
		cfg.Database.FirestoreCollection = "notifications"
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 300
	}

	if cfg.Identity.MaxAgeDays <= 0 {
		cfg.Identity.MaxAgeDays = 365
	}

	if cfg.AccountService.TimeoutSeconds <= 0 {
		cfg.AccountService.TimeoutSeconds = 30
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %q", c.Database.Driver)
		}
	case "firestore":
		if c.Database.FirestoreProject == "" {
			return errors.New("database.firestore_project is required for driver \"firestore\"")
		}
	default:
		return fmt.Errorf("unknown database.driver %q", c.Database.Driver)
	}

	switch c.Cache.Backend {
	case "none", "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr is required for backend \"redis\"")
		}
	default:
		return fmt.Errorf("unknown cache.backend %q", c.Cache.Backend)
	}
	return nil
}
