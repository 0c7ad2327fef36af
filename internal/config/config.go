package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the meeting service.
// Environment variables are parsed from the MEETSCRIBE_ prefix.
type Config struct {
	// Build target selects the high-level environment: local, cloud
	BuildTarget string `envconfig:"BUILD_TARGET" default:"local"`

	// Derived or override store driver: memory, sqlite, postgres
	StoreDriver string `envconfig:"STORE_DRIVER" default:"auto"`

	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Postgres Configuration
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// SQLite Configuration
	SQLitePath string `envconfig:"SQLITE_PATH" default:"meetscribe.db"`

	// Summarizer Configuration
	SummarizerURL            string `envconfig:"SUMMARIZER_URL" default:""`
	SummarizerModel          string `envconfig:"SUMMARIZER_MODEL" default:"gpt-4o-mini"`
	SummarizerTimeoutSeconds int    `envconfig:"SUMMARIZER_TIMEOUT_SECONDS" default:"60"`

	// Dev API keys: comma-separated token=userId:displayName[:admin] tuples
	// consumed by the static authorizer. Empty enables the single local dev key.
	APIKeys string `envconfig:"API_KEYS" default:""`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`

	// Live feed buffering per subscriber
	LiveFeedBuffer int `envconfig:"LIVE_FEED_BUFFER" default:"64"`
}

// ResolveDefaults validates BuildTarget and derives StoreDriver when set to
// "auto" or empty.
func (c *Config) ResolveDefaults() error {
	var defaultDriver string

	switch c.BuildTarget {
	case "local":
		defaultDriver = "sqlite"
	case "cloud":
		defaultDriver = "postgres"
	default:
		return fmt.Errorf("unsupported BUILD_TARGET: %s", c.BuildTarget)
	}

	if c.StoreDriver == "" || c.StoreDriver == "auto" {
		c.StoreDriver = defaultDriver
	}

	allowed := map[string]bool{"memory": true, "sqlite": true, "postgres": true}
	if !allowed[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("MEETSCRIBE_POSTGRES_DSN is required for the postgres driver")
	}
	if c.SummarizerTimeoutSeconds <= 0 {
		return fmt.Errorf("SUMMARIZER_TIMEOUT_SECONDS must be positive, got %d", c.SummarizerTimeoutSeconds)
	}
	return nil
}

// New creates a new Config by parsing environment variables prefixed with
// MEETSCRIBE_, e.g. MEETSCRIBE_HTTP_PORT, MEETSCRIBE_STORE_DRIVER.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MEETSCRIBE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewForTesting creates a config specifically for testing.
func NewForTesting() *Config {
	return &Config{
		BuildTarget:               "local",
		StoreDriver:               "memory",
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		SummarizerModel:           "gpt-4o-mini",
		SummarizerTimeoutSeconds:  5,
		HealthIntervalSeconds:     1,
		HealthProbeTimeoutSeconds: 1,
		LiveFeedBuffer:            16,
	}
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
