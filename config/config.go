// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at startup.
type Config struct {
	Port        string        `env:"PORT" envDefault:"3000"`
	AppEnv      string        `env:"APP_ENV" envDefault:"development"`
	CORSOrigins string        `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	JWTSecret   string        `env:"JWT_SECRET"`
	TokenTTL    time.Duration `env:"JWT_TTL" envDefault:"168h"`

	Database DatabaseConfig
	Log      LogConfig
	OTel     OTelConfig
	Retry    RetryConfig
	Limits   RateLimitConfig
}

// DatabaseConfig selects the PostgreSQL instance. DATABASE_URL wins over the
// individual DB_* parameters.
type DatabaseConfig struct {
	URL         string        `env:"DATABASE_URL"`
	Host        string        `env:"DB_HOST" envDefault:"localhost"`
	Port        string        `env:"DB_PORT" envDefault:"5432"`
	User        string        `env:"DB_USER" envDefault:"postgres"`
	Password    string        `env:"DB_PASSWORD"`
	Name        string        `env:"DB_NAME" envDefault:"tightlines"`
	SSLMode     string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxIdle     int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpen     int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	MaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
	LogSQL      bool          `env:"DB_LOG_SQL" envDefault:"false"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type OTelConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"true"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"tightlines"`
}

// RetryConfig controls the reward retry worker.
type RetryConfig struct {
	Enabled     bool          `env:"REWARD_RETRY_ENABLED" envDefault:"true"`
	Interval    time.Duration `env:"REWARD_RETRY_INTERVAL" envDefault:"30s"`
	BatchSize   int           `env:"REWARD_RETRY_BATCH" envDefault:"50"`
	MaxAttempts int           `env:"REWARD_RETRY_MAX_ATTEMPTS" envDefault:"8"`
	BaseDelay   time.Duration `env:"REWARD_RETRY_BASE_DELAY" envDefault:"15s"`
	MaxDelay    time.Duration `env:"REWARD_RETRY_MAX_DELAY" envDefault:"30m"`
}

type RateLimitConfig struct {
	Enabled     bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	MaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`
	Window      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	AuthMax     int           `env:"AUTH_RATE_LIMIT_MAX" envDefault:"5"`
	AuthWindow  time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"5m"`
}

// Load reads an optional .env file and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	return Parse()
}

// Parse reads the process environment into a Config and validates it.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no safe default.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters long")
	}
	return c.Retry.Validate()
}

// Validate rejects worker settings that would stall or crash the loop.
func (r RetryConfig) Validate() error {
	if r.MaxAttempts <= 0 {
		return fmt.Errorf("REWARD_RETRY_MAX_ATTEMPTS must be positive, got %d", r.MaxAttempts)
	}
	if r.BatchSize <= 0 {
		return fmt.Errorf("REWARD_RETRY_BATCH must be positive, got %d", r.BatchSize)
	}
	if r.Interval <= 0 {
		return fmt.Errorf("REWARD_RETRY_INTERVAL must be positive, got %s", r.Interval)
	}
	if r.BaseDelay <= 0 {
		return fmt.Errorf("REWARD_RETRY_BASE_DELAY must be positive, got %s", r.BaseDelay)
	}
	if r.MaxDelay < r.BaseDelay {
		return fmt.Errorf("REWARD_RETRY_MAX_DELAY (%s) must not be below REWARD_RETRY_BASE_DELAY (%s)", r.MaxDelay, r.BaseDelay)
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
