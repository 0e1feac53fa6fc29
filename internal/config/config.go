// Package config loads the service configuration from TOML files and
// METAINFO_ environment overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/metainfo/pkg/database"
	"github.com/JaimeStill/metainfo/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPrefix          = "METAINFO_"
	EnvName            = EnvPrefix + "ENV"
	EnvConfigDir       = EnvPrefix + "CONFIG_DIR"
	EnvShutdownTimeout = EnvPrefix + "SHUTDOWN_TIMEOUT"
	EnvVersion         = EnvPrefix + "VERSION"
	EnvLogLevel        = EnvPrefix + "LOG_LEVEL"
)

var databaseEnv = &database.Env{
	Host:            EnvPrefix + "DB_HOST",
	Port:            EnvPrefix + "DB_PORT",
	Name:            EnvPrefix + "DB_NAME",
	User:            EnvPrefix + "DB_USER",
	Password:        EnvPrefix + "DB_PASSWORD",
	SSLMode:         EnvPrefix + "DB_SSL_MODE",
	MaxOpenConns:    EnvPrefix + "DB_MAX_OPEN_CONNS",
	MaxIdleConns:    EnvPrefix + "DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: EnvPrefix + "DB_CONN_MAX_LIFETIME",
	ConnTimeout:     EnvPrefix + "DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    EnvPrefix + "STORAGE_CONTAINER_NAME",
	ConnectionString: EnvPrefix + "STORAGE_CONNECTION_STRING",
	Prefix:           EnvPrefix + "STORAGE_PREFIX",
	MaxRetries:       EnvPrefix + "STORAGE_MAX_RETRIES",
}

// Config is the root configuration.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	API             APIConfig       `toml:"api"`
	Paths           PathsConfig     `toml:"paths"`
	Save            SaveConfig      `toml:"save"`
	Storage         storage.Config  `toml:"storage"`
	Database        database.Config `toml:"database"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
	LogLevel        string          `toml:"log_level"`
}

// Env returns the METAINFO_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvName); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Load reads config.toml from METAINFO_CONFIG_DIR (default: the working
// directory) when present, merges the config.<env>.toml overlay, and
// finalizes every section. Without any file, defaults and environment
// variables supply the whole configuration.
func Load() (*Config, error) {
	dir := os.Getenv(EnvConfigDir)
	cfg := &Config{}

	base := filepath.Join(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overlay := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, cfg.Env()))
	if _, err := os.Stat(overlay); err == nil {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}
	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sections.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Paths.Merge(&overlay.Paths)
	c.Save.Merge(&overlay.Save)
	c.Storage.Merge(&overlay.Storage)
	c.Database.Merge(&overlay.Database)
}

// Finalize applies defaults, environment overrides and validation to every
// section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"api", c.API.Finalize},
		{"paths", c.Paths.Finalize},
		{"save", c.Save.Finalize},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level %q", c.LogLevel)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}
