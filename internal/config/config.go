// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	HTTPAddr          string        `mapstructure:"HTTP_ADDR"`
	DBURL             string        `mapstructure:"DB_URL"`
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	WorkerConcurrency int           `mapstructure:"WORKER_CONCURRENCY"`
	UserConcurrency   int           `mapstructure:"USER_CONCURRENCY"`
	CommitSyncWindow  time.Duration `mapstructure:"COMMIT_SYNC_WINDOW"`
	RetentionInterval time.Duration `mapstructure:"RETENTION_INTERVAL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("WORKER_CONCURRENCY", 4)
	viper.SetDefault("USER_CONCURRENCY", 5)
	viper.SetDefault("COMMIT_SYNC_WINDOW", "720h")
	viper.SetDefault("RETENTION_INTERVAL", "24h")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("REDIS_ADDR is a required configuration field")
	}
	if cfg.WorkerConcurrency <= 0 {
		return nil, errors.New("WORKER_CONCURRENCY must be a positive integer")
	}

	return &cfg, nil
}
