// Package appconfig loads the redlock-leader daemon configuration file.
package appconfig

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	redlockleader "github.com/torghul/redlock-leader"
	"github.com/torghul/redlock-leader/redlock"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNATS   = "nats"
	BackendSQLite = "sqlite"
)

// Config is the root configuration structure.
type Config struct {
	Election redlockleader.Config `yaml:"election"`
	Redlock  redlock.Config       `yaml:"redlock"`
	Stores   StoresConfig         `yaml:"stores"`
	Metrics  MetricsConfig        `yaml:"metrics"`
	Log      LogConfig            `yaml:"log"`
}

// StoresConfig selects the lock store backend and its nodes.
//
// Every entry of the backend's node list becomes one independent Redlock
// store; use an odd count so a quorum survives a single failure.
type StoresConfig struct {
	Backend string        `yaml:"backend"` // "memory", "redis", "nats", "sqlite"
	Memory  MemoryConfig  `yaml:"memory"`
	Redis   RedisConfig   `yaml:"redis"`
	NATS    NATSConfig    `yaml:"nats"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
	Timeout time.Duration `yaml:"timeout"` // connect/open timeout per store
}

// MemoryConfig configures in-process stores (single-process demos only).
type MemoryConfig struct {
	Count int `yaml:"count"`
}

// RedisConfig configures independent Redis masters.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"` // "localhost:6379"
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"keyPrefix"`
}

// NATSConfig configures independent NATS servers with JetStream enabled.
type NATSConfig struct {
	URLs     []string `yaml:"urls"` // "nats://localhost:4222"
	Bucket   string   `yaml:"bucket"`
	Storage  string   `yaml:"storage"` // "file", "memory"
	Replicas int      `yaml:"replicas"`
}

// SQLiteConfig configures one database file per store.
type SQLiteConfig struct {
	Paths       []string      `yaml:"paths"`
	BusyTimeout time.Duration `yaml:"busyTimeout"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Addr      string `yaml:"addr"` // ":9090"; empty disables the endpoint
	Namespace string `yaml:"namespace"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
}

// Default returns a configuration for a single-process demo on three
// in-memory stores.
func Default() Config {
	cfg := base()
	applyDefaults(&cfg)

	return cfg
}

// base is the starting point for decoding.
func base() Config {
	return Config{
		Election: redlockleader.DefaultConfig(),
		Redlock:  redlock.DefaultConfig(),
		Stores: StoresConfig{
			Backend: BackendMemory,
			Memory:  MemoryConfig{Count: 3},
			Timeout: 5 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load loads configuration from a YAML file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded configuration with defaults applied
//   - error: Error if file cannot be read, parsed or validated
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML configuration; fields left out keep their defaults.
func Parse(data []byte) (*Config, error) {
	cfg := base()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	redlockleader.SetDefaults(&cfg.Election)

	cfg.Stores.Backend = strings.ToLower(cfg.Stores.Backend)
	if cfg.Stores.Backend == "" {
		cfg.Stores.Backend = BackendMemory
	}
	if cfg.Stores.Timeout <= 0 {
		cfg.Stores.Timeout = 5 * time.Second
	}
	if cfg.Stores.NATS.Bucket == "" {
		cfg.Stores.NATS.Bucket = "redlock-leader"
	}
	if cfg.Stores.NATS.Storage == "" {
		cfg.Stores.NATS.Storage = "file"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := c.Election.Validate(); err != nil {
		return fmt.Errorf("election: %w", err)
	}
	if err := c.Redlock.Validate(); err != nil {
		return err
	}
	if err := c.Stores.validate(); err != nil {
		return fmt.Errorf("stores: %w", err)
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}

	return nil
}

func (s *StoresConfig) validate() error {
	switch s.Backend {
	case BackendMemory:
		if s.Memory.Count < 1 {
			return fmt.Errorf("memory.count must be >= 1, got %d", s.Memory.Count)
		}
	case BackendRedis:
		if len(s.Redis.Addrs) == 0 {
			return errors.New("redis.addrs is required")
		}
	case BackendNATS:
		if len(s.NATS.URLs) == 0 {
			return errors.New("nats.urls is required")
		}
		if s.NATS.Storage != "file" && s.NATS.Storage != "memory" {
			return fmt.Errorf("nats.storage must be file or memory, got %q", s.NATS.Storage)
		}
	case BackendSQLite:
		if len(s.SQLite.Paths) == 0 {
			return errors.New("sqlite.paths is required")
		}
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	return nil
}

// Count returns the number of stores the selected backend will build.
func (s *StoresConfig) Count() int {
	switch s.Backend {
	case BackendRedis:
		return len(s.Redis.Addrs)
	case BackendNATS:
		return len(s.NATS.URLs)
	case BackendSQLite:
		return len(s.SQLite.Paths)
	default:
		return s.Memory.Count
	}
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown level %q", l.Level)
	}

	return level, nil
}
