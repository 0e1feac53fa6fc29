package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/JaimeStill/metainfo/pkg/folders"
)

const (
	EnvPathsOutput = EnvPrefix + "OUTPUT_DIR"
	EnvPathsInput  = EnvPrefix + "INPUT_DIR"
	EnvPathsTemp   = EnvPrefix + "TEMP_DIR"
)

// PathsConfig names the output, input and temp roots.
type PathsConfig struct {
	Output string `toml:"output"`
	Input  string `toml:"input"`
	Temp   string `toml:"temp"`
}

// Resolver returns a folder resolver over the configured roots.
func (c *PathsConfig) Resolver() *folders.Resolver {
	return folders.New(c.Output, c.Input, c.Temp)
}

// Finalize applies defaults, environment overrides and validation.
func (c *PathsConfig) Finalize() error {
	setDefault(&c.Output, "output")
	setDefault(&c.Input, "input")
	setDefault(&c.Temp, "temp")
	override(&c.Output, os.Getenv(EnvPathsOutput))
	override(&c.Input, os.Getenv(EnvPathsInput))
	override(&c.Temp, os.Getenv(EnvPathsTemp))

	for _, p := range []*string{&c.Output, &c.Input, &c.Temp} {
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}

	if c.Output == c.Input || c.Output == c.Temp {
		return fmt.Errorf("output directory %s must differ from input and temp", c.Output)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *PathsConfig) Merge(overlay *PathsConfig) {
	override(&c.Output, overlay.Output)
	override(&c.Input, overlay.Input)
	override(&c.Temp, overlay.Temp)
}
