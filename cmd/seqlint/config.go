package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the seqlint defaults read from the environment. Flags override
// the matching fields.
type Config struct {
	Environment string        `env:"ENVIRONMENT"        envDefault:"development"`
	LogLevel    slog.Level    `env:"SEQLINT_LOG_LEVEL"  envDefault:"info"`
	Direction   string        `env:"SEQLINT_DIRECTION"  envDefault:"TB"`
	Ticks       int           `env:"SEQLINT_TICKS"      envDefault:"10"`
	Interval    time.Duration `env:"SEQLINT_INTERVAL"   envDefault:"100ms"`
	// RedisURL makes simulations keep rate-limit windows in Redis.
	RedisURL string `env:"SEQLINT_REDIS_URL"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse seqlint config: %w", err)
	}

	return cfg, nil
}
