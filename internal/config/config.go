// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/iliyamo/user-auth-service/internal/utils"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port string `env:"APP_PORT" envDefault:"8000"`

	DB        DBConfig
	JWT       JWTConfig
	Password  PasswordConfig
	Log       LogConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Events    EventsConfig
	Tracing   TracingConfig
}

// DBConfig describes the relational store.
type DBConfig struct {
	URL             string        `env:"DATABASE_URL,required,notEmpty"`
	Driver          string        `env:"DB_DRIVER"` // "mysql" or "pgx"; derived from URL when empty
	Migrate         bool          `env:"DB_MIGRATE" envDefault:"true"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`
}

// JWTConfig holds the token signing settings.
type JWTConfig struct {
	Secret    string `env:"JWT_SECRET,required,notEmpty"`
	ExpiresIn string `env:"JWT_EXPIRES_IN" envDefault:"60m"`
	MaxAge    int    `env:"JWT_MAXAGE" envDefault:"60"` // minutes
}

// PasswordConfig holds argon2id cost parameters and the boundary length rule.
type PasswordConfig struct {
	Time      uint32 `env:"ARGON2_TIME" envDefault:"1"`
	MemoryKiB uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Threads   uint8  `env:"ARGON2_THREADS" envDefault:"4"`
	MinLength int    `env:"PASSWORD_MIN_LENGTH" envDefault:"6"`
}

// LogConfig selects the zap level and encoder.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

// EventsConfig configures lifecycle event publishing and the audit consumer.
// An empty broker URL disables publishing.
type EventsConfig struct {
	RabbitMQURL  string `env:"RABBITMQ_URL"`
	AMQPURL      string `env:"AMQP_URL"`
	Queue        string `env:"EVENTS_QUEUE" envDefault:"auth.user_events"`
	AuditLogPath string `env:"AUDIT_LOG_PATH" envDefault:"logs/auth_audit.log"`
}

// TracingConfig configures the OTLP/HTTP trace exporter. An empty endpoint
// keeps tracing on the no-op provider.
type TracingConfig struct {
	Endpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"` // host:port
	Insecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	ServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"user-auth-service"`
	SampleRate  float64 `env:"OTEL_TRACES_SAMPLE_RATE" envDefault:"1"`
}

// BrokerURL returns RABBITMQ_URL, falling back to AMQP_URL.
func (e EventsConfig) BrokerURL() string {
	if e.RabbitMQURL != "" {
		return e.RabbitMQURL
	}
	return e.AMQPURL
}

// Argon2 converts the password settings to codec parameters.
func (p PasswordConfig) Argon2() utils.Argon2Params {
	return utils.Argon2Params{Time: p.Time, MemoryKiB: p.MemoryKiB, Threads: p.Threads}
}

// TokenMaxAge is JWT_MAXAGE as a duration.
func (j JWTConfig) TokenMaxAge() time.Duration { return time.Duration(j.MaxAge) * time.Minute }

// Load reads an optional .env file (ENV_FILE, default ".env"), parses the
// environment and validates the result.
func Load() (Config, error) {
	if err := loadDotEnv(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.RateLimit.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConsumerConfig is the subset of settings the audit consumer needs. It
// does not require database or JWT settings.
type ConsumerConfig struct {
	Log    LogConfig
	Events EventsConfig
}

// LoadConsumer reads the optional .env file and parses only the logging
// and events settings.
func LoadConsumer() (ConsumerConfig, error) {
	if err := loadDotEnv(); err != nil {
		return ConsumerConfig{}, err
	}

	var cfg ConsumerConfig
	if err := env.Parse(&cfg); err != nil {
		return ConsumerConfig{}, fmt.Errorf("parse env: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return ConsumerConfig{}, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.Log.Format)
	}
	return cfg, nil
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate fails fast on settings that would otherwise only surface on the
// first login.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.JWT.Secret) == "" {
		errs = append(errs, errors.New("JWT_SECRET must not be empty"))
	}
	if d, err := utils.ParseTTL(c.JWT.ExpiresIn); err != nil {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN: %w", err))
	} else if d <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRES_IN must be positive, got %q", c.JWT.ExpiresIn))
	}
	if c.JWT.MaxAge < 0 {
		errs = append(errs, errors.New("JWT_MAXAGE must not be negative"))
	}
	if c.Password.MinLength < 1 {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be positive"))
	}
	if _, err := c.DB.DriverName(); err != nil {
		errs = append(errs, err)
	}
	if err := c.RateLimit.validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// DriverName resolves the database/sql driver: an explicit DB_DRIVER wins,
// otherwise postgres:// and postgresql:// URLs select pgx and anything else
// is treated as a MySQL DSN.
func (d DBConfig) DriverName() (string, error) {
	switch strings.ToLower(d.Driver) {
	case "mysql":
		return "mysql", nil
	case "pgx", "postgres", "postgresql":
		return "pgx", nil
	case "":
	default:
		return "", fmt.Errorf("DB_DRIVER %q is not supported", d.Driver)
	}
	u := strings.ToLower(d.URL)
	if strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://") {
		return "pgx", nil
	}
	return "mysql", nil
}
