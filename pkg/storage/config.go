package storage

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Storage providers.
const (
	ProviderAzure  = "azure"
	ProviderMemory = "memory"
)

// Defaults applied by Finalize.
const (
	DefaultContainer     = "tally"
	DefaultArchivePrefix = "archive"
)

// Azure container names: 3 to 63 lowercase letters, digits and single
// hyphens, starting and ending with a letter or digit.
var containerName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9]){2,62}$`)

// Config selects the blob provider. ConnectionString is only read for the
// azure provider; the memory provider keeps blobs for the life of the
// process.
type Config struct {
	Provider         string `toml:"provider"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ArchivePrefix    string `toml:"archive_prefix"`
}

// Env names the variables that override Config.
type Env struct {
	Provider         string
	ContainerName    string
	ConnectionString string
	ArchivePrefix    string
}

// Finalize applies defaults, then env, then validation. The provider name is
// case-insensitive and the archive prefix loses surrounding slashes.
func (c *Config) Finalize(env *Env) error {
	c.Provider = cmp.Or(c.Provider, ProviderAzure)
	c.ContainerName = cmp.Or(c.ContainerName, DefaultContainer)
	c.ArchivePrefix = cmp.Or(c.ArchivePrefix, DefaultArchivePrefix)

	if env != nil {
		for name, dst := range map[string]*string{
			env.Provider:         &c.Provider,
			env.ContainerName:    &c.ContainerName,
			env.ConnectionString: &c.ConnectionString,
			env.ArchivePrefix:    &c.ArchivePrefix,
		} {
			if name == "" {
				continue
			}
			if v := os.Getenv(name); v != "" {
				*dst = v
			}
		}
	}

	c.Provider = strings.ToLower(c.Provider)
	c.ArchivePrefix = strings.Trim(c.ArchivePrefix, "/")
	return errors.Join(c.validate()...)
}

// Merge lays the non-empty fields of overlay over c.
func (c *Config) Merge(overlay *Config) {
	c.Provider = cmp.Or(overlay.Provider, c.Provider)
	c.ContainerName = cmp.Or(overlay.ContainerName, c.ContainerName)
	c.ConnectionString = cmp.Or(overlay.ConnectionString, c.ConnectionString)
	c.ArchivePrefix = cmp.Or(overlay.ArchivePrefix, c.ArchivePrefix)
}

func (c *Config) validate() []error {
	var errs []error
	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" {
			errs = append(errs, errors.New("connection_string required for the azure provider"))
		}
		if len(c.ContainerName) > 63 || !containerName.MatchString(c.ContainerName) {
			errs = append(errs, fmt.Errorf("container_name %q is not a valid Azure container name", c.ContainerName))
		}
	case ProviderMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if c.ArchivePrefix == "" {
		errs = append(errs, errors.New("archive_prefix must name a folder"))
	} else if err := ValidateKey(c.ArchivePrefix); err != nil {
		errs = append(errs, fmt.Errorf("archive_prefix: %w", err))
	}
	return errs
}
