package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "TALLY_SERVER_HOST"
	EnvServerPort              = "TALLY_SERVER_PORT"
	EnvServerReadHeaderTimeout = "TALLY_SERVER_READ_HEADER_TIMEOUT"
	EnvServerReadTimeout       = "TALLY_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout      = "TALLY_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout       = "TALLY_SERVER_IDLE_TIMEOUT"
	EnvServerDrainTimeout      = "TALLY_SERVER_DRAIN_TIMEOUT"
)

// ServerConfig holds the listener for the operator API and the relay
// endpoints. Relays upload whole messages with attachments, so the read
// timeout covers the largest allowed upload.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	ReadTimeout       string `toml:"read_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	IdleTimeout       string `toml:"idle_timeout"`
	DrainTimeout      string `toml:"drain_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeouts returns the parsed read header, read, write and idle timeouts.
func (c *ServerConfig) Timeouts() (readHeader, read, write, idle time.Duration) {
	return duration(c.ReadHeaderTimeout), duration(c.ReadTimeout),
		duration(c.WriteTimeout), duration(c.IdleTimeout)
}

// DrainTimeoutDuration bounds how long in-flight requests may finish once
// shutdown begins.
func (c *ServerConfig) DrainTimeoutDuration() time.Duration {
	return duration(c.DrainTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	mergeString(&c.Host, overlay.Host)
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	mergeString(&c.ReadHeaderTimeout, overlay.ReadHeaderTimeout)
	mergeString(&c.ReadTimeout, overlay.ReadTimeout)
	mergeString(&c.WriteTimeout, overlay.WriteTimeout)
	mergeString(&c.IdleTimeout, overlay.IdleTimeout)
	mergeString(&c.DrainTimeout, overlay.DrainTimeout)
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	c.ReadHeaderTimeout = defaultIfEmpty(c.ReadHeaderTimeout, "10s")
	c.ReadTimeout = defaultIfEmpty(c.ReadTimeout, "2m")
	c.WriteTimeout = defaultIfEmpty(c.WriteTimeout, "2m")
	c.IdleTimeout = defaultIfEmpty(c.IdleTimeout, "2m")
	c.DrainTimeout = defaultIfEmpty(c.DrainTimeout, "20s")
}

func (c *ServerConfig) loadEnv() {
	mergeString(&c.Host, os.Getenv(EnvServerHost))
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	mergeString(&c.ReadHeaderTimeout, os.Getenv(EnvServerReadHeaderTimeout))
	mergeString(&c.ReadTimeout, os.Getenv(EnvServerReadTimeout))
	mergeString(&c.WriteTimeout, os.Getenv(EnvServerWriteTimeout))
	mergeString(&c.IdleTimeout, os.Getenv(EnvServerIdleTimeout))
	mergeString(&c.DrainTimeout, os.Getenv(EnvServerDrainTimeout))
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for name, v := range map[string]string{
		"read_header_timeout": c.ReadHeaderTimeout,
		"read_timeout":        c.ReadTimeout,
		"write_timeout":       c.WriteTimeout,
		"idle_timeout":        c.IdleTimeout,
		"drain_timeout":       c.DrainTimeout,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if duration(c.ReadHeaderTimeout) > duration(c.ReadTimeout) {
		return fmt.Errorf("read_header_timeout cannot exceed read_timeout")
	}
	return nil
}

func duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
