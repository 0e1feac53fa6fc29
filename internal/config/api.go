package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/metainfo/pkg/formatting"
	"github.com/JaimeStill/metainfo/pkg/middleware"
	"github.com/JaimeStill/metainfo/pkg/pagination"
)

const (
	EnvAPIBasePath      = EnvPrefix + "API_BASE_PATH"
	EnvAPIMaxUploadSize = EnvPrefix + "API_MAX_UPLOAD_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:        EnvPrefix + "CORS_ENABLED",
	Origins:        EnvPrefix + "CORS_ORIGINS",
	AllowedHeaders: EnvPrefix + "CORS_ALLOWED_HEADERS",
	MaxAge:         EnvPrefix + "CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: EnvPrefix + "PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     EnvPrefix + "PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, upload, CORS and pagination settings.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`

	maxUploadBytes int64
}

// MaxUploadSizeBytes returns the validated multipart upload limit.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	return c.maxUploadBytes
}

// Finalize applies defaults, environment overrides and validation for the
// API section and its nested CORS and pagination sections.
func (c *APIConfig) Finalize() error {
	setDefault(&c.BasePath, "/api")
	setDefault(&c.MaxUploadSize, "64MB")
	override(&c.BasePath, os.Getenv(EnvAPIBasePath))
	override(&c.MaxUploadSize, os.Getenv(EnvAPIMaxUploadSize))

	if !strings.HasPrefix(c.BasePath, "/") || c.BasePath == "/" {
		return fmt.Errorf("invalid base_path %q: must start with / and name a segment", c.BasePath)
	}
	c.BasePath = strings.TrimSuffix(c.BasePath, "/")

	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("invalid max_upload_size %q: must be positive", c.MaxUploadSize)
	}
	c.maxUploadBytes = size

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested sections.
func (c *APIConfig) Merge(overlay *APIConfig) {
	override(&c.BasePath, overlay.BasePath)
	override(&c.MaxUploadSize, overlay.MaxUploadSize)
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
}
