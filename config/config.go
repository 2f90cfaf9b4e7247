package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	log "github.com/sirupsen/logrus"
)

// Storage drivers
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Default document locations when DATABASE_PATH is unset
const (
	DefaultFilePath   = "data/gameDatabase.json"
	DefaultSQLitePath = "data/gameDatabase.db"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"` // "development", "production" or "test"
	LogLevel    string `env:"LOG_LEVEL"   envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"  envDefault:"text"` // "text" or "json"

	// Storage configuration
	StorageDriver string        `env:"STORAGE_DRIVER" envDefault:"file"`
	DatabasePath  string        `env:"DATABASE_PATH"` // defaults per driver
	DatabaseURL   string        `env:"DATABASE_URL"`
	DocumentName  string        `env:"DOCUMENT_NAME"  envDefault:"default"`
	SaveTimeout   time.Duration `env:"SAVE_TIMEOUT"   envDefault:"5s"`

	// Cleanup worker
	CleanupHours    int           `env:"CLEANUP_HOURS"    envDefault:"24"`
	CleanupInterval time.Duration `env:"CLEANUP_INTERVAL" envDefault:"1h"`

	// Outer surfaces, disabled when empty
	MetricsAddr string `env:"METRICS_ADDR"`
	NATSURL     string `env:"NATS_URL"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks that the selected driver has what it needs and fills in its default path
func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))

	switch c.StorageDriver {
	case DriverFile:
		if c.DatabasePath == "" {
			c.DatabasePath = DefaultFilePath
		}
	case DriverSQLite:
		if c.DatabasePath == "" {
			c.DatabasePath = DefaultSQLitePath
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	if c.SaveTimeout <= 0 {
		return fmt.Errorf("SAVE_TIMEOUT must be positive")
	}
	if c.CleanupHours < 0 {
		return fmt.Errorf("CLEANUP_HOURS must not be negative")
	}
	if c.CleanupHours > 0 && c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive when cleanup is enabled")
	}
	return nil
}

// ConfigureLogging applies the level and formatter to the standard logrus logger
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(c.LogFormat) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// NewTestConfig creates a config instance for testing
func NewTestConfig() *Config {
	return &Config{
		Environment:     "test",
		LogLevel:        "warn",
		LogFormat:       "text",
		StorageDriver:   DriverMemory,
		DocumentName:    "default",
		SaveTimeout:     5 * time.Second,
		CleanupHours:    24,
		CleanupInterval: time.Hour,
	}
}
