package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/tally/pkg/database"
	"github.com/JaimeStill/tally/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvTallyEnv             = "TALLY_ENV"
	EnvTallyShutdownTimeout = "TALLY_SHUTDOWN_TIMEOUT"
	EnvTallyVersion         = "TALLY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "TALLY_DB_HOST",
	Port:            "TALLY_DB_PORT",
	Name:            "TALLY_DB_NAME",
	User:            "TALLY_DB_USER",
	Password:        "TALLY_DB_PASSWORD",
	SSLMode:         "TALLY_DB_SSL_MODE",
	MaxOpenConns:    "TALLY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "TALLY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "TALLY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "TALLY_DB_CONN_TIMEOUT",
	AutoMigrate:     "TALLY_DB_AUTO_MIGRATE",
}

var storageEnv = &storage.Env{
	Provider:         "TALLY_STORAGE_PROVIDER",
	ArchivePrefix:    "TALLY_STORAGE_ARCHIVE_PREFIX",
	ContainerName:    "TALLY_STORAGE_CONTAINER_NAME",
	ConnectionString: "TALLY_STORAGE_CONNECTION_STRING",
}

// Config is the root configuration for the tally service.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Workflow        WorkflowConfig       `toml:"workflow"`
	Mailbox         MailboxConfig        `toml:"mailbox"`
	Watcher         WatcherConfig        `toml:"watcher"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the TALLY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	return cmp.Or(os.Getenv(EnvTallyEnv), "local")
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads config.toml when present, lays config.<TALLY_ENV>.toml over it,
// then finalizes every section. Without any file, defaults and TALLY_*
// variables configure everything.
func Load() (*Config, error) {
	cfg, err := load(BaseConfigFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = &Config{}
	case err != nil:
		return nil, err
	}

	if env := os.Getenv(EnvTallyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		overlay, err := load(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("overlay: %w", err)
		default:
			cfg.Merge(overlay)
		}
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	mergeString(&c.ShutdownTimeout, overlay.ShutdownTimeout)
	mergeString(&c.Version, overlay.Version)

	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Workflow.Merge(&overlay.Workflow)
	c.Mailbox.Merge(&overlay.Mailbox)
	c.Watcher.Merge(&overlay.Watcher)
}

// finalize runs every section and reports all failures together, each
// prefixed with its section name.
func (c *Config) finalize() error {
	c.ShutdownTimeout = cmp.Or(os.Getenv(EnvTallyShutdownTimeout), c.ShutdownTimeout, "30s")
	c.Version = cmp.Or(os.Getenv(EnvTallyVersion), c.Version, "0.1.0")

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"workflow", c.Workflow.Finalize},
		{"mailbox", c.Mailbox.Finalize},
		{"watcher", c.Watcher.Finalize},
	}
	if c.Workflow.Classifier.Enabled {
		sections = append(sections, struct {
			name     string
			finalize func() error
		}{"agent", func() error { return FinalizeAgent(&c.Agent) }})
	}

	var errs []error
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}

	shutdown, err := time.ParseDuration(c.ShutdownTimeout)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid shutdown_timeout: %w", err))
	case shutdown < c.Server.DrainTimeoutDuration():
		errs = append(errs, fmt.Errorf("shutdown_timeout %s is shorter than server drain_timeout %s", c.ShutdownTimeout, c.Server.DrainTimeout))
	}
	return errors.Join(errs...)
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}
