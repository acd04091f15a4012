// Package config loads the storefront client settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const envPrefix = "STOREFRONT_"

type Config struct {
	API      APIConfig
	Storage  StorageConfig
	Query    QueryConfig
	Payment  PaymentConfig
	Kafka    KafkaConfig
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// text or json
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`
	MetricsAddr string `env:"METRICS_ADDR"`
}

type APIConfig struct {
	BaseURL            string        `env:"API_URL" envDefault:"http://localhost:5000/api"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	RateLimit          float64       `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst          int           `env:"RATE_BURST" envDefault:"5"`
	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerTimeout     time.Duration `env:"BREAKER_TIMEOUT" envDefault:"30s"`
}

type StorageConfig struct {
	Driver        string `env:"STORAGE_DRIVER" envDefault:"file"`
	Dir           string `env:"STORAGE_PATH" envDefault:".storefront"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:".storefront/storefront.db"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"storefront:"`
}

type QueryConfig struct {
	StaleTime time.Duration `env:"QUERY_STALE_TIME" envDefault:"5m"`
	CacheTime time.Duration `env:"QUERY_CACHE_TIME" envDefault:"10m"`
}

type PaymentConfig struct {
	MerchantName string        `env:"MERCHANT_NAME" envDefault:"E-Store"`
	Description  string        `env:"PAYMENT_DESCRIPTION" envDefault:"Order Payment"`
	ThemeColor   string        `env:"THEME_COLOR" envDefault:"#3B82F6"`
	Timeout      time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"15m"`
	CallbackAddr string        `env:"CALLBACK_ADDR" envDefault:"127.0.0.1:0"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"storefront-checkout-events"`
}

// Load reads the optional .env files, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: envPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("config: API_URL must not be empty")
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("config: REQUEST_TIMEOUT must be positive")
	}
	if c.API.RateLimit < 0 {
		return errors.New("config: RATE_LIMIT must not be negative")
	}
	if c.Payment.Timeout <= 0 {
		return errors.New("config: PAYMENT_TIMEOUT must be positive")
	}
	if c.Query.CacheTime < c.Query.StaleTime {
		return errors.New("config: QUERY_CACHE_TIME must not be shorter than QUERY_STALE_TIME")
	}
	switch c.Storage.Driver {
	case "memory", "file", "sqlite", "redis":
	default:
		return fmt.Errorf("config: unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}
