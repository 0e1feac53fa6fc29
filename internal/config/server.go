package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

var serverEnv = struct {
	Host, Port, ReadTimeout, WriteTimeout, ShutdownTimeout string
}{
	Host:            EnvPrefix + "SERVER_HOST",
	Port:            EnvPrefix + "SERVER_PORT",
	ReadTimeout:     EnvPrefix + "SERVER_READ_TIMEOUT",
	WriteTimeout:    EnvPrefix + "SERVER_WRITE_TIMEOUT",
	ShutdownTimeout: EnvPrefix + "SERVER_SHUTDOWN_TIMEOUT",
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *ServerConfig) ReadTimeoutDuration() time.Duration     { return duration(c.ReadTimeout) }
func (c *ServerConfig) WriteTimeoutDuration() time.Duration    { return duration(c.WriteTimeout) }
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration { return duration(c.ShutdownTimeout) }

// Finalize applies defaults, environment overrides and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	override(&c.Host, overlay.Host)
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	override(&c.ReadTimeout, overlay.ReadTimeout)
	override(&c.WriteTimeout, overlay.WriteTimeout)
	override(&c.ShutdownTimeout, overlay.ShutdownTimeout)
}

func (c *ServerConfig) loadDefaults() {
	setDefault(&c.Host, "0.0.0.0")
	if c.Port == 0 {
		c.Port = 8188
	}
	setDefault(&c.ReadTimeout, "1m")
	setDefault(&c.WriteTimeout, "5m")
	setDefault(&c.ShutdownTimeout, "30s")
}

func (c *ServerConfig) loadEnv() {
	override(&c.Host, os.Getenv(serverEnv.Host))
	if v := os.Getenv(serverEnv.Port); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	override(&c.ReadTimeout, os.Getenv(serverEnv.ReadTimeout))
	override(&c.WriteTimeout, os.Getenv(serverEnv.WriteTimeout))
	override(&c.ShutdownTimeout, os.Getenv(serverEnv.ShutdownTimeout))
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for name, v := range map[string]string{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// override sets *dst to v when v is non-empty.
func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// setDefault sets *dst to v when *dst is empty.
func setDefault(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
