package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvClassifierEnabled   = "TALLY_CLASSIFIER_ENABLED"
	EnvClassifierThreshold = "TALLY_CLASSIFIER_THRESHOLD"
	EnvClassifierTimeout   = "TALLY_CLASSIFIER_TIMEOUT"
)

// ClassifierConfig controls the model fallback used when matching rules are
// inconclusive.
type ClassifierConfig struct {
	Enabled   bool    `toml:"enabled"`
	Threshold float64 `toml:"threshold"`
	Timeout   string  `toml:"timeout"`
	MaxText   int     `toml:"max_text"`
	MaxPages  int     `toml:"max_pages"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *ClassifierConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ClassifierConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Enabled is only ever
// switched on by an overlay.
func (c *ClassifierConfig) Merge(overlay *ClassifierConfig) {
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Threshold != 0 {
		c.Threshold = overlay.Threshold
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxText != 0 {
		c.MaxText = overlay.MaxText
	}
	if overlay.MaxPages != 0 {
		c.MaxPages = overlay.MaxPages
	}
}

func (c *ClassifierConfig) loadDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 0.7
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.MaxText == 0 {
		c.MaxText = 4000
	}
	if c.MaxPages == 0 {
		c.MaxPages = 2
	}
}

func (c *ClassifierConfig) loadEnv() {
	if v := os.Getenv(EnvClassifierEnabled); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Enabled = b
		}
	}
	if v := os.Getenv(EnvClassifierThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Threshold = f
		}
	}
	if v := os.Getenv(EnvClassifierTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *ClassifierConfig) validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1]")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.MaxText < 1 || c.MaxPages < 1 {
		return fmt.Errorf("max_text and max_pages must be positive")
	}
	return nil
}
