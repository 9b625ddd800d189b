package config

import (
	"fmt"

	pkgconfig "github.com/andrewbyteforge/pricecomparison/pkg/config"
)

// Storage backends for the basket repository.
const (
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds all configuration for the basket service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"BASKET_HTTP_PORT" envDefault:"8010"`

	// Storage backend: redis or postgres.
	Store    string `env:"BASKET_STORE" envDefault:"redis"`
	MaxItems int    `env:"BASKET_MAX_ITEMS" envDefault:"100"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Basket TTL in hours (default: 7 days). Redis only.
	BasketTTL int `env:"BASKET_TTL_HOURS" envDefault:"168"`

	// PostgreSQL
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"basket"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"basket_secret"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"basket"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	SlowQueryMillis  int    `env:"SLOW_QUERY_MS" envDefault:"200"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Anti-forgery cookie
	CSRFCookieName   string `env:"CSRF_COOKIE_NAME" envDefault:"csrftoken"`
	CSRFCookieSecure bool   `env:"CSRF_COOKIE_SECURE" envDefault:"false"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	// Per-user token bucket. 0 disables it.
	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load basket config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Store != StoreRedis && c.Store != StorePostgres {
		return fmt.Errorf("invalid BASKET_STORE %q: want %s or %s", c.Store, StoreRedis, StorePostgres)
	}
	if c.MaxItems < 1 {
		return fmt.Errorf("BASKET_MAX_ITEMS must be positive, got %d", c.MaxItems)
	}
	if c.BasketTTL < 1 {
		return fmt.Errorf("BASKET_TTL_HOURS must be positive, got %d", c.BasketTTL)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}
