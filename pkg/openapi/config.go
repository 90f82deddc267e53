package openapi

import (
	"cmp"
	"os"
)

const (
	DefaultTitle       = "Tally API"
	DefaultDescription = "Operator and mailbox surface of the invoice workflow coordinator."
)

// Config is the document metadata shown in info.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
}

// Env names the variables that override Config.
type Env struct {
	Title       string
	Description string
}

// Finalize fills empty fields with the defaults, then applies env. It
// cannot fail; the error keeps the config sections uniform.
func (c *Config) Finalize(env *Env) error {
	c.Title = cmp.Or(c.Title, DefaultTitle)
	c.Description = cmp.Or(c.Description, DefaultDescription)

	if env != nil {
		c.Title = cmp.Or(lookup(env.Title), c.Title)
		c.Description = cmp.Or(lookup(env.Description), c.Description)
	}
	return nil
}

// Merge overwrites non-empty fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.Title = cmp.Or(overlay.Title, c.Title)
	c.Description = cmp.Or(overlay.Description, c.Description)
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
