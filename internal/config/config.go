// Package config loads the optional tool configuration file. Settings
// layer bottom-up: built-in defaults, then the YAML file, then the
// environment; command-line flags always win over all three.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Color modes accepted by display.color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds the tool-wide settings.
type Config struct {
	Display DisplayConfig `yaml:"display"`
	Merge   MergeConfig   `yaml:"merge"`
	Report  ReportConfig  `yaml:"report"`
}

// DisplayConfig controls how comparison output renders.
type DisplayConfig struct {
	Color string `yaml:"color"` // auto, always, never
	Table bool   `yaml:"table"`
}

// MergeConfig carries merge defaults.
type MergeConfig struct {
	SortBRDANames bool `yaml:"sort_brda_names"`
}

// ReportConfig carries report defaults.
type ReportConfig struct {
	Pretty bool `yaml:"pretty"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Display: DisplayConfig{Color: ColorAuto},
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// skips the file; a named file must exist and parse, there is no
// well-known fallback location to fall back to.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides. A non-empty
// NO_COLOR means "never", following the usual convention; INFOPROC_COLOR
// names a mode outright and wins over NO_COLOR.
func (c *Config) applyEnvOverrides() {
	if os.Getenv("NO_COLOR") != "" {
		c.Display.Color = ColorNever
	}
	if mode := os.Getenv("INFOPROC_COLOR"); mode != "" {
		c.Display.Color = mode
	}
}

// Validate rejects settings no command could honor.
func (c *Config) Validate() error {
	switch c.Display.Color {
	case ColorAuto, ColorAlways, ColorNever:
		return nil
	default:
		return fmt.Errorf("invalid display.color %q: want auto, always or never", c.Display.Color)
	}
}

// ColorEnabled resolves the configured color mode against the terminal
// state of the output the caller is about to write.
func (c *Config) ColorEnabled(tty bool) bool {
	switch c.Display.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		return tty
	}
}
