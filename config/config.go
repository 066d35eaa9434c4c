package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Decision   DecisionConfig   `yaml:"decision"`
	GateCache  GateCacheConfig  `yaml:"gate_cache"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	// Timezone decides calendar days in session history.
	Timezone string `yaml:"timezone" env:"PARKD_TIMEZONE"`

	Location *time.Location `yaml:"-"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port" env:"PARKD_PORT"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec" env:"PARKD_RATE_LIMIT_PER_SEC"`
	RateLimitBurst  int     `yaml:"rate_limit_burst" env:"PARKD_RATE_LIMIT_BURST"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds" env:"PARKD_CACHE_TTL_SECONDS"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	// Driver is one of postgres, sqlite or memory.
	Driver                 string `yaml:"driver" env:"PARKD_DB_DRIVER"`
	DSN                    string `yaml:"dsn" env:"PARKD_DB_DSN"`
	MaxOpenConns           int    `yaml:"max_open_conns" env:"PARKD_DB_MAX_OPEN_CONNS"`
	MaxIdleConns           int    `yaml:"max_idle_conns" env:"PARKD_DB_MAX_IDLE_CONNS"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes" env:"PARKD_DB_CONN_MAX_LIFETIME_MINUTES"`
	// AutoMigrate runs migrations when the server starts.
	AutoMigrate bool `yaml:"auto_migrate" env:"PARKD_DB_AUTO_MIGRATE"`
}

// DecisionConfig tunes the decision engine.
type DecisionConfig struct {
	DuplicateWindowSeconds int `yaml:"duplicate_window_seconds" env:"PARKD_DUPLICATE_WINDOW_SECONDS"`
	EventTimeoutMillis     int `yaml:"event_timeout_ms" env:"PARKD_EVENT_TIMEOUT_MS"`

	DuplicateWindow time.Duration `yaml:"-"`
	EventTimeout    time.Duration `yaml:"-"`
}

// GateCacheConfig holds the TTL of resolved gates.
type GateCacheConfig struct {
	TTLSeconds int           `yaml:"ttl_seconds" env:"PARKD_GATE_CACHE_TTL_SECONDS"`
	TTL        time.Duration `yaml:"-"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key" env:"PARKD_VAPID_PUBLIC_KEY"`
	PrivateKey string `yaml:"vapid_private_key" env:"PARKD_VAPID_PRIVATE_KEY"`
	Subject    string `yaml:"subject" env:"PARKD_VAPID_SUBJECT"`
	TTL        int    `yaml:"ttl" env:"PARKD_PUSH_TTL"`
}

// Enabled reports whether both VAPID keys are set.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size  int `yaml:"size" env:"PARKD_WORKER_POOL_SIZE"`
	Queue int `yaml:"queue" env:"PARKD_WORKER_POOL_QUEUE"`
}

// Load reads the configuration from the given path, then applies PARKD_*
// environment overrides and fills in defaults. An empty path skips the file.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		decoder := yaml.NewDecoder(f)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) applyDefaults() error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec < 0 {
		cfg.Server.RateLimitPerSec = 0
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds < 0 {
		cfg.Server.CacheTTLSeconds = 0
	}

	switch cfg.Database.Driver {
	case "":
		cfg.Database.Driver = "postgres"
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver != "memory" && cfg.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required for driver %s", cfg.Database.Driver)
	}

	if cfg.Decision.DuplicateWindowSeconds < 0 {
		cfg.Decision.DuplicateWindowSeconds = 0
	}
	cfg.Decision.DuplicateWindow = time.Duration(cfg.Decision.DuplicateWindowSeconds) * time.Second
	if cfg.Decision.EventTimeoutMillis <= 0 {
		cfg.Decision.EventTimeoutMillis = 2000
	}
	cfg.Decision.EventTimeout = time.Duration(cfg.Decision.EventTimeoutMillis) * time.Millisecond

	if cfg.GateCache.TTLSeconds <= 0 {
		cfg.GateCache.TTLSeconds = 30
	}
	cfg.GateCache.TTL = time.Duration(cfg.GateCache.TTLSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
	if cfg.WorkerPool.Queue < cfg.WorkerPool.Size {
		cfg.WorkerPool.Queue = 64
	}

	if cfg.Timezone == "" {
		cfg.Timezone = "Asia/Seoul"
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	cfg.Location = loc
	return nil
}
