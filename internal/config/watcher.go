package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	EnvWatcherDir      = "TALLY_WATCHER_DIR"
	EnvWatcherDebounce = "TALLY_WATCHER_DEBOUNCE"
)

// WatcherConfig holds the source document directory settings.
type WatcherConfig struct {
	Dir        string   `toml:"dir"`
	Debounce   string   `toml:"debounce"`
	Extensions []string `toml:"extensions"`
}

// DebounceDuration returns Debounce as a time.Duration.
func (c *WatcherConfig) DebounceDuration() time.Duration {
	d, _ := time.ParseDuration(c.Debounce)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WatcherConfig) Finalize() error {
	if c.Dir == "" {
		c.Dir = "data/inbox"
	}
	if c.Debounce == "" {
		c.Debounce = "2s"
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".pdf"}
	}

	if v := os.Getenv(EnvWatcherDir); v != "" {
		c.Dir = v
	}
	if v := os.Getenv(EnvWatcherDebounce); v != "" {
		c.Debounce = v
	}

	if _, err := time.ParseDuration(c.Debounce); err != nil {
		return fmt.Errorf("invalid debounce: %w", err)
	}
	for _, ext := range c.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *WatcherConfig) Merge(overlay *WatcherConfig) {
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Debounce != "" {
		c.Debounce = overlay.Debounce
	}
	if len(overlay.Extensions) > 0 {
		c.Extensions = overlay.Extensions
	}
}
