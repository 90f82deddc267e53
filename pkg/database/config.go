package database

import (
	"cmp"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"
)

// sslModes are the libpq sslmode values pgx accepts.
var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Config holds the catalog connection. AutoMigrate applies the embedded
// schema when the server starts.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
	AutoMigrate     bool   `toml:"auto_migrate"`
}

// Env names the variables that override Config. An empty name is skipped.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
	AutoMigrate     string
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// URL returns the connection as a postgres:// URL with escaped credentials.
// Both the pool and golang-migrate connect with it.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.User(c.User),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	return u.String()
}

// Finalize applies defaults, then env, then validation. Malformed env
// values are errors, reported with every validation failure.
func (c *Config) Finalize(env *Env) error {
	c.Host = cmp.Or(c.Host, "localhost")
	c.Port = cmp.Or(c.Port, 5432)
	c.SSLMode = cmp.Or(c.SSLMode, "disable")
	c.MaxOpenConns = cmp.Or(c.MaxOpenConns, 25)
	c.MaxIdleConns = cmp.Or(c.MaxIdleConns, 5)
	c.ConnMaxLifetime = cmp.Or(c.ConnMaxLifetime, "15m")
	c.ConnTimeout = cmp.Or(c.ConnTimeout, "5s")

	var errs []error
	if env != nil {
		errs = c.loadEnv(env)
	}
	return errors.Join(append(errs, c.validate()...)...)
}

// Merge overwrites non-zero fields from overlay. AutoMigrate can only be
// switched on by an overlay.
func (c *Config) Merge(overlay *Config) {
	c.Host = cmp.Or(overlay.Host, c.Host)
	c.Port = cmp.Or(overlay.Port, c.Port)
	c.Name = cmp.Or(overlay.Name, c.Name)
	c.User = cmp.Or(overlay.User, c.User)
	c.Password = cmp.Or(overlay.Password, c.Password)
	c.SSLMode = cmp.Or(overlay.SSLMode, c.SSLMode)
	c.MaxOpenConns = cmp.Or(overlay.MaxOpenConns, c.MaxOpenConns)
	c.MaxIdleConns = cmp.Or(overlay.MaxIdleConns, c.MaxIdleConns)
	c.ConnMaxLifetime = cmp.Or(overlay.ConnMaxLifetime, c.ConnMaxLifetime)
	c.ConnTimeout = cmp.Or(overlay.ConnTimeout, c.ConnTimeout)
	c.AutoMigrate = c.AutoMigrate || overlay.AutoMigrate
}

func (c *Config) loadEnv(env *Env) []error {
	for name, dst := range map[string]*string{
		env.Host:            &c.Host,
		env.Name:            &c.Name,
		env.User:            &c.User,
		env.Password:        &c.Password,
		env.SSLMode:         &c.SSLMode,
		env.ConnMaxLifetime: &c.ConnMaxLifetime,
		env.ConnTimeout:     &c.ConnTimeout,
	} {
		if v := lookup(name); v != "" {
			*dst = v
		}
	}

	var errs []error
	for name, dst := range map[string]*int{
		env.Port:         &c.Port,
		env.MaxOpenConns: &c.MaxOpenConns,
		env.MaxIdleConns: &c.MaxIdleConns,
	} {
		v := lookup(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", name, v))
			continue
		}
		*dst = n
	}

	if v := lookup(env.AutoMigrate); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not a boolean", env.AutoMigrate, v))
		} else {
			c.AutoMigrate = b
		}
	}
	return errs
}

func (c *Config) validate() []error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name required"))
	}
	if c.User == "" {
		errs = append(errs, errors.New("user required"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !slices.Contains(sslModes, c.SSLMode) {
		errs = append(errs, fmt.Errorf("unknown ssl_mode %q", c.SSLMode))
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		errs = append(errs, fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns))
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		errs = append(errs, fmt.Errorf("invalid conn_max_lifetime: %w", err))
	}
	if d, err := time.ParseDuration(c.ConnTimeout); err != nil || d <= 0 {
		errs = append(errs, fmt.Errorf("invalid conn_timeout %q", c.ConnTimeout))
	}
	return errs
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
