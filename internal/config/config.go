// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config is the full service configuration.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	Storage    string `env:"STORAGE" envDefault:"postgres"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:3000"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	Database  Database
	Auth      Auth
	RateLimit RateLimit
	Broker    Broker
	Telemetry Telemetry
}

// Database holds PostgreSQL connection settings.
type Database struct {
	URL        string        `env:"DATABASE_URL"`
	Host       string        `env:"DB_HOST" envDefault:"localhost"`
	Port       string        `env:"DB_PORT" envDefault:"5432"`
	User       string        `env:"DB_USER" envDefault:"postgres"`
	Password   string        `env:"DB_PASSWORD" envDefault:"postgres"`
	Name       string        `env:"DB_NAME" envDefault:"eventhub"`
	SSLMode    string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConns   int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	RetryDelay time.Duration `env:"DB_RETRY_DELAY" envDefault:"2s"`
}

// Auth holds bearer token settings.
type Auth struct {
	JWTSecret string        `env:"JWT_SECRET"`
	TokenTTL  time.Duration `env:"JWT_TTL" envDefault:"24h"`
	Issuer    string        `env:"JWT_ISSUER" envDefault:"eventhub"`
}

// RateLimit configures the Redis-backed limiter on write endpoints.
// An empty RedisURL disables limiting.
type RateLimit struct {
	RedisURL string        `env:"REDIS_URL"`
	Requests int64         `env:"RATE_LIMIT_REQUESTS" envDefault:"30"`
	Window   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Broker configures lifecycle message publishing. An empty URL disables it.
type Broker struct {
	URL      string `env:"AMQP_URL"`
	Exchange string `env:"AMQP_EXCHANGE" envDefault:"eventhub"`
}

// Telemetry configures OpenTelemetry tracing. An empty endpoint disables it.
type Telemetry struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"eventhub"`
}

// Load parses the environment into a Config and validates it.
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

// Validate checks cross-field constraints env tags cannot express.
func (c *Config) Validate() error {
	switch c.Storage {
	case StoragePostgres, StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.RateLimit.RedisURL != "" && (c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

// SlogLevel converts LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
