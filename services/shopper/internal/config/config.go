package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	pkgconfig "github.com/andrewbyteforge/pricecomparison/pkg/config"
	"github.com/andrewbyteforge/pricecomparison/pkg/database"
	"github.com/andrewbyteforge/pricecomparison/pkg/httpclient"
)

// Cache drivers.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
)

// Config holds all configuration for the shopper client.
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`

	// Basket server
	ServerURL          string `env:"BASKET_SERVER_URL" envDefault:"http://localhost:8010"`
	UserID             string `env:"BASKET_USER_ID"`
	HTTPTimeoutSeconds int    `env:"SHOPPER_HTTP_TIMEOUT_SECONDS" envDefault:"10"`

	// Profile and cache. An empty ProfileDir resolves under the user config dir.
	Profile    string `env:"SHOPPER_PROFILE" envDefault:"default"`
	ProfileDir string `env:"SHOPPER_PROFILE_DIR"`
	Cache      string `env:"SHOPPER_CACHE" envDefault:"file"`

	// Redis, for the redis cache driver
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Circuit breaker around the basket server
	CBMaxRequests    uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBTimeoutSeconds int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio   float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests    uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`
}

// Load reads configuration from environment variables. The user ID is
// checked by Validate, after flags have had a chance to set it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load shopper config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("BASKET_SERVER_URL is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("BASKET_USER_ID is required")
	}
	if c.HTTPTimeoutSeconds < 1 {
		return fmt.Errorf("SHOPPER_HTTP_TIMEOUT_SECONDS must be positive, got %d", c.HTTPTimeoutSeconds)
	}
	if c.Profile == "" || filepath.Base(c.Profile) != c.Profile {
		return fmt.Errorf("invalid SHOPPER_PROFILE %q", c.Profile)
	}
	if c.Cache != CacheFile && c.Cache != CacheRedis {
		return fmt.Errorf("invalid SHOPPER_CACHE %q: want %s or %s", c.Cache, CacheFile, CacheRedis)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %v", c.CBFailureRatio)
	}
	return nil
}

// HTTPTimeout is the per-request timeout for basket server calls.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// CircuitBreaker builds the breaker settings for the basket server client.
func (c *Config) CircuitBreaker() httpclient.CircuitBreakerConfig {
	cb := httpclient.DefaultCircuitBreakerConfig("basket-server")
	cb.MaxRequests = c.CBMaxRequests
	cb.Timeout = time.Duration(c.CBTimeoutSeconds) * time.Second
	cb.FailureRatio = c.CBFailureRatio
	cb.MinRequests = c.CBMinRequests
	return cb
}

// Redis returns the connection settings for the redis cache driver.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}

// CacheDir is the directory holding the profile's file cache.
func (c *Config) CacheDir() (string, error) {
	if c.ProfileDir != "" {
		return c.ProfileDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve profile dir: %w", err)
	}
	return filepath.Join(base, "pricecomparison", "profiles", c.Profile), nil
}
