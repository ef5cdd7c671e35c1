// Package config loads the optional .vespera.yaml sitting at the root of
// the target project. Every field has a default; a missing file is not an
// error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in the scanned project's root.
const FileName = ".vespera.yaml"

// Info feeds the document's info block.
type Info struct {
	Title       string `yaml:"title"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
}

type Config struct {
	Info Info `yaml:"info"`

	// Output is the document path, relative to the project root unless
	// absolute.
	Output string `yaml:"output"`

	// Exclude lists directory fragments skipped during scanning, on top of
	// the built-in vendor and testdata exclusions.
	Exclude []string `yaml:"exclude"`

	// Validate runs the assembled document through kin-openapi before
	// writing it.
	Validate bool `yaml:"validate"`
}

// defaultExclude is always part of the exclusion list; user entries add to
// it rather than replace it.
var defaultExclude = []string{"vendor", "testdata"}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Info: Info{
			Title:   "API Documentation",
			Version: "0.1.0",
		},
		Output:  "openapi.yaml",
		Exclude: slices.Clone(defaultExclude),
	}
}

// Load reads the project's config file over the defaults. Only a file that
// exists but cannot be read or parsed is an error.
func Load(projectPath string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(projectPath, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Output == "" {
		cfg.Output = "openapi.yaml"
	}
	// A user-supplied exclude list replaces the slice during unmarshaling;
	// put the built-ins back.
	for _, d := range defaultExclude {
		if !slices.Contains(cfg.Exclude, d) {
			cfg.Exclude = append(cfg.Exclude, d)
		}
	}
	return cfg, nil
}

// OutputPath resolves the document path against the project root.
func (c *Config) OutputPath(projectPath string) string {
	if filepath.IsAbs(c.Output) {
		return c.Output
	}
	return filepath.Join(projectPath, c.Output)
}
