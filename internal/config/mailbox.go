package config

import (
	"fmt"
	"os"
	"time"

	"github.com/JaimeStill/tally/pkg/retry"
)

const EnvMailboxPollInterval = "TALLY_MAILBOX_POLL_INTERVAL"

var retryEnv = &retry.Env{
	MaxRetries:      "TALLY_MAILBOX_MAX_RETRIES",
	InitialInterval: "TALLY_MAILBOX_INITIAL_INTERVAL",
	MaxInterval:     "TALLY_MAILBOX_MAX_INTERVAL",
}

// MailboxConfig holds inbox polling and send retry settings.
type MailboxConfig struct {
	PollInterval string       `toml:"poll_interval"`
	Retry        retry.Config `toml:"retry"`
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *MailboxConfig) PollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *MailboxConfig) Finalize() error {
	if c.PollInterval == "" {
		c.PollInterval = "30s"
	}
	if v := os.Getenv(EnvMailboxPollInterval); v != "" {
		c.PollInterval = v
	}
	if d, err := time.ParseDuration(c.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid poll_interval %q", c.PollInterval)
	}
	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *MailboxConfig) Merge(overlay *MailboxConfig) {
	if overlay.PollInterval != "" {
		c.PollInterval = overlay.PollInterval
	}
	c.Retry.Merge(&overlay.Retry)
}
