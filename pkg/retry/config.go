package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Config holds the backoff budget for a collaborator.
type Config struct {
	MaxRetries      int    `toml:"max_retries"`
	InitialInterval string `toml:"initial_interval"`
	MaxInterval     string `toml:"max_interval"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxRetries      string
	InitialInterval string
	MaxInterval     string
}

// InitialIntervalDuration returns InitialInterval as a time.Duration.
func (c *Config) InitialIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.InitialInterval)
	return d
}

// MaxIntervalDuration returns MaxInterval as a time.Duration.
func (c *Config) MaxIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
	if overlay.InitialInterval != "" {
		c.InitialInterval = overlay.InitialInterval
	}
	if overlay.MaxInterval != "" {
		c.MaxInterval = overlay.MaxInterval
	}
}

func (c Config) backOff() backoff.BackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(c.InitialIntervalDuration()),
		backoff.WithMaxInterval(c.MaxIntervalDuration()),
		backoff.WithMaxElapsedTime(0),
	)
}

func (c *Config) loadDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 5
	}
	if c.InitialInterval == "" {
		c.InitialInterval = "1s"
	}
	if c.MaxInterval == "" {
		c.MaxInterval = "60s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxRetries != "" {
		if v := os.Getenv(env.MaxRetries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxRetries = n
			}
		}
	}
	if env.InitialInterval != "" {
		if v := os.Getenv(env.InitialInterval); v != "" {
			c.InitialInterval = v
		}
	}
	if env.MaxInterval != "" {
		if v := os.Getenv(env.MaxInterval); v != "" {
			c.MaxInterval = v
		}
	}
}

func (c *Config) validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	initial, err := time.ParseDuration(c.InitialInterval)
	if err != nil {
		return fmt.Errorf("invalid initial_interval: %w", err)
	}
	maxInterval, err := time.ParseDuration(c.MaxInterval)
	if err != nil {
		return fmt.Errorf("invalid max_interval: %w", err)
	}
	if initial > maxInterval {
		return fmt.Errorf("initial_interval cannot exceed max_interval")
	}
	return nil
}
