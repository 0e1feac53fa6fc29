package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/metainfo/internal/nodes"
	"github.com/JaimeStill/metainfo/pkg/imaging"
)

const (
	EnvSaveCompressLevel   = EnvPrefix + "SAVE_COMPRESS_LEVEL"
	EnvSaveDisableMetadata = EnvPrefix + "DISABLE_METADATA"
	EnvSavePrefix          = EnvPrefix + "SAVE_FILENAME_PREFIX"
	EnvSaveDateFormat      = EnvPrefix + "SAVE_DATE_DIRECTORY_FORMAT"
)

// SaveConfig controls how the save node encodes images.
type SaveConfig struct {
	// CompressLevel is the zlib level 0-9; nil selects the default of 4.
	CompressLevel *int `toml:"compress_level"`
	// DisableMetadata stops the workflow graph from being embedded in
	// saved PNGs. The sidecar is written either way.
	DisableMetadata bool `toml:"disable_metadata"`
	// Prefix and DateFormat are the defaults the save node advertises.
	Prefix     string `toml:"filename_prefix"`
	DateFormat string `toml:"date_directory_format"`
}

// Level returns the configured compression level.
func (c *SaveConfig) Level() int {
	if c.CompressLevel == nil {
		return imaging.DefaultCompressLevel
	}
	return *c.CompressLevel
}

// Finalize applies defaults, environment overrides and validation.
func (c *SaveConfig) Finalize() error {
	if c.CompressLevel == nil {
		level := imaging.DefaultCompressLevel
		c.CompressLevel = &level
	}

	setDefault(&c.Prefix, nodes.DefaultPrefix)
	setDefault(&c.DateFormat, nodes.DefaultDateFormat)
	override(&c.Prefix, os.Getenv(EnvSavePrefix))
	override(&c.DateFormat, os.Getenv(EnvSaveDateFormat))

	if v := os.Getenv(EnvSaveCompressLevel); v != "" {
		level, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSaveCompressLevel, err)
		}
		c.CompressLevel = &level
	}
	if v := os.Getenv(EnvSaveDisableMetadata); v != "" {
		disable, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvSaveDisableMetadata, err)
		}
		c.DisableMetadata = disable
	}

	if level := *c.CompressLevel; level < 0 || level > 9 {
		return fmt.Errorf("invalid compress_level %d: must be 0-9", level)
	}
	return nil
}

// Merge overwrites set fields from overlay. DisableMetadata only turns on.
func (c *SaveConfig) Merge(overlay *SaveConfig) {
	if overlay.CompressLevel != nil {
		c.CompressLevel = overlay.CompressLevel
	}
	if overlay.DisableMetadata {
		c.DisableMetadata = true
	}
	override(&c.Prefix, overlay.Prefix)
	override(&c.DateFormat, overlay.DateFormat)
}
