package middleware

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// CORSConfig holds the CORS policy for the operator API. It is off by
// default; enable it when a browser console on another origin drives the
// prompts. Origins are matched exactly, so each console origin is listed.
type CORSConfig struct {
	Enabled          bool     `toml:"enabled"`
	Origins          []string `toml:"origins"`
	AllowedMethods   []string `toml:"allowed_methods"`
	AllowedHeaders   []string `toml:"allowed_headers"`
	AllowCredentials bool     `toml:"allow_credentials"`
	MaxAge           int      `toml:"max_age"`
}

// CORSEnv names the variables that override CORSConfig. Lists are
// comma-separated.
type CORSEnv struct {
	Enabled          string
	Origins          string
	AllowedMethods   string
	AllowedHeaders   string
	AllowCredentials string
	MaxAge           string
}

// Finalize applies defaults, then env, then validation. Methods are
// upper-cased.
func (c *CORSConfig) Finalize(env *CORSEnv) error {
	if len(c.AllowedMethods) == 0 {
		c.AllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(c.AllowedHeaders) == 0 {
		c.AllowedHeaders = []string{"Content-Type", "Authorization"}
	}
	if c.MaxAge == 0 {
		c.MaxAge = 3600
	}

	var errs []error
	if env != nil {
		errs = c.loadEnv(env)
	}
	for i, m := range c.AllowedMethods {
		c.AllowedMethods[i] = strings.ToUpper(m)
	}
	return errors.Join(append(errs, c.validate()...)...)
}

// Merge lays overlay over c. TOML cannot tell an absent boolean from false,
// so an overlay can switch Enabled and AllowCredentials on but not off;
// use the environment to disable them.
func (c *CORSConfig) Merge(overlay *CORSConfig) {
	c.Enabled = c.Enabled || overlay.Enabled
	c.AllowCredentials = c.AllowCredentials || overlay.AllowCredentials

	if overlay.Origins != nil {
		c.Origins = overlay.Origins
	}
	if overlay.AllowedMethods != nil {
		c.AllowedMethods = overlay.AllowedMethods
	}
	if overlay.AllowedHeaders != nil {
		c.AllowedHeaders = overlay.AllowedHeaders
	}
	if overlay.MaxAge != 0 {
		c.MaxAge = overlay.MaxAge
	}
}

func (c *CORSConfig) loadEnv(env *CORSEnv) []error {
	var errs []error
	parseBool := func(name string, dst *bool) {
		if v := lookup(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not a boolean", name, v))
				return
			}
			*dst = b
		}
	}

	parseBool(env.Enabled, &c.Enabled)
	parseBool(env.AllowCredentials, &c.AllowCredentials)

	if v := lookup(env.Origins); v != "" {
		c.Origins = splitList(v)
	}
	if v := lookup(env.AllowedMethods); v != "" {
		c.AllowedMethods = splitList(v)
	}
	if v := lookup(env.AllowedHeaders); v != "" {
		c.AllowedHeaders = splitList(v)
	}
	if v := lookup(env.MaxAge); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %q is not an integer", env.MaxAge, v))
		} else {
			c.MaxAge = n
		}
	}
	return errs
}

// validate checks origins only when CORS is on, so a disabled section with
// placeholder values still loads.
func (c *CORSConfig) validate() []error {
	var errs []error
	if c.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("max_age must not be negative: %d", c.MaxAge))
	}
	if !c.Enabled {
		return errs
	}
	for _, o := range c.Origins {
		if err := validateOrigin(o); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// validateOrigin accepts scheme://host[:port] and nothing more.
func validateOrigin(origin string) error {
	if origin == "*" {
		return errors.New("wildcard origin not supported; list each console origin")
	}
	u, err := url.Parse(origin)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return fmt.Errorf("origin %q must be scheme://host[:port]", origin)
	}
	if u.Path == "/" {
		return fmt.Errorf("origin %q must not end with a slash", origin)
	}
	return nil
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// splitList parses a comma-separated env value, dropping empty entries.
func splitList(v string) []string {
	var out []string
	for p := range strings.SplitSeq(v, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
