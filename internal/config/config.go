package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the service configuration, read from the environment
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	LogLevel        string `env:"LOG_LEVEL" envDefault:"INFO"`
	ErrorSampleRate int    `env:"ERROR_SAMPLE_RATE" envDefault:"1"`

	// DefaultRuleVersion is used when a request names no rule version.
	// Empty selects the built-in current rule version.
	DefaultRuleVersion string `env:"DEFAULT_RULE_VERSION"`

	RecordDecisions   bool          `env:"RECORD_DECISIONS" envDefault:"true"`
	DecisionCacheTTL  time.Duration `env:"DECISION_CACHE_TTL" envDefault:"5m"`
	MigrationsOnStart bool          `env:"MIGRATIONS_ON_START" envDefault:"false"`

	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// Load parses the process environment into a Config
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFrom parses configuration from an explicit variable map instead of the
// process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values env tags cannot express
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.ErrorSampleRate < 1 {
		return fmt.Errorf("ERROR_SAMPLE_RATE must be at least 1, got %d", c.ErrorSampleRate)
	}
	if c.DecisionCacheTTL < 0 {
		return fmt.Errorf("DECISION_CACHE_TTL cannot be negative")
	}
	if c.MigrationsOnStart && c.DatabaseURL == "" {
		return fmt.Errorf("MIGRATIONS_ON_START requires DATABASE_URL")
	}
	return nil
}

// Addr is the listen address for the HTTP server
func (c *Config) Addr() string {
	return ":" + c.Port
}
