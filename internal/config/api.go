package config

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/tally/pkg/formatting"
	"github.com/JaimeStill/tally/pkg/middleware"
	"github.com/JaimeStill/tally/pkg/openapi"
	"github.com/JaimeStill/tally/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "TALLY_CORS_ENABLED",
	Origins:          "TALLY_CORS_ORIGINS",
	AllowedMethods:   "TALLY_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "TALLY_CORS_ALLOWED_HEADERS",
	AllowCredentials: "TALLY_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "TALLY_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.Env{
	Title:       "TALLY_OPENAPI_TITLE",
	Description: "TALLY_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.Env{
	DefaultPageSize: "TALLY_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "TALLY_PAGINATION_MAX_PAGE_SIZE",
}

const (
	EnvAPIBasePath      = "TALLY_API_BASE_PATH"
	EnvAPIMaxUploadSize = "TALLY_API_MAX_UPLOAD_SIZE"
)

// APIConfig holds API routing, CORS, OpenAPI and pagination settings.
type APIConfig struct {
	// BasePath mounts the API module; a single segment such as "/api".
	BasePath string `toml:"base_path"`
	// MaxUploadSize bounds relay posts and document uploads ("32MB", "8MiB").
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	OpenAPI       openapi.Config        `toml:"openapi"`
	Pagination    pagination.Config     `toml:"pagination"`

	maxUpload int64
}

// MaxUploadSizeBytes returns MaxUploadSize as parsed by Finalize.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	return c.maxUpload
}

// Finalize applies defaults, environment overrides and validation to the API
// section and its nested configs. Every failure is reported.
func (c *APIConfig) Finalize() error {
	c.BasePath = cmp.Or(os.Getenv(EnvAPIBasePath), c.BasePath, "/api")
	c.MaxUploadSize = cmp.Or(os.Getenv(EnvAPIMaxUploadSize), c.MaxUploadSize, "32MB")

	var errs []error
	if c.BasePath[0] != '/' || strings.Contains(c.BasePath[1:], "/") || len(c.BasePath) < 2 {
		errs = append(errs, fmt.Errorf("base_path must be a single segment like /api: %q", c.BasePath))
	}

	size, err := formatting.ParseBytes(c.MaxUploadSize)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("max_upload_size: %w", err))
	case size <= 0:
		errs = append(errs, fmt.Errorf("max_upload_size must be positive: %q", c.MaxUploadSize))
	default:
		c.maxUpload = size
	}

	if err := c.CORS.Finalize(corsEnv); err != nil {
		errs = append(errs, fmt.Errorf("cors: %w", err))
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		errs = append(errs, fmt.Errorf("openapi: %w", err))
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		errs = append(errs, fmt.Errorf("pagination: %w", err))
	}
	return errors.Join(errs...)
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	mergeString(&c.BasePath, overlay.BasePath)
	mergeString(&c.MaxUploadSize, overlay.MaxUploadSize)

	c.CORS.Merge(&overlay.CORS)
	c.OpenAPI.Merge(&overlay.OpenAPI)
	c.Pagination.Merge(&overlay.Pagination)
}
