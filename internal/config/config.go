package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port               int    `env:"PORT" envDefault:"8080"`
	DatabaseURL        string `env:"DATABASE_URL,required"`
	RedisURL           string `env:"REDIS_URL,required"`
	LogLevel           string `env:"LOG_LEVEL" envDefault:"info"`
	RateLimitPerMin    int    `env:"RATE_LIMIT_PER_MIN" envDefault:"60"`
	SessionRetentionH  int    `env:"SESSION_RETENTION_HOURS" envDefault:"720"`
	CleanupIntervalMin int    `env:"CLEANUP_INTERVAL_MINUTES" envDefault:"60"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// SessionRetention is how long completed/cancelled sessions are kept before
// the cleanup job purges them.
func (c *Config) SessionRetention() time.Duration {
	return time.Duration(c.SessionRetentionH) * time.Hour
}

func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMin) * time.Minute
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
