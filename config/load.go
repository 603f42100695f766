package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Load loads configuration with priority: defaults < file < flags.
// A nil f skips the flags.
func Load(f *Flags) (*Config, error) {
	cfg := Default()

	configPath := ""
	if f != nil {
		configPath = f.ConfigPath()
	}
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	if f != nil {
		f.apply(cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile loads the defaults overridden by the file at path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := loadFromFile(cfg, path); err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every setting the scene cannot run with.
func (c *Config) Validate() error {
	err := c.Sim.Validate()
	if c.Scene.Resolution < 1 {
		err = multierr.Append(err, fmt.Errorf("scene resolution must be at least 1, got %d", c.Scene.Resolution))
	}
	if c.Scene.Size <= 0 {
		err = multierr.Append(err, fmt.Errorf("scene size must be positive, got %g", c.Scene.Size))
	}
	if c.Scene.VoxelSize <= 0 {
		err = multierr.Append(err, fmt.Errorf("voxel size must be positive, got %g", c.Scene.VoxelSize))
	}
	if c.Scene.Steps < 0 {
		err = multierr.Append(err, fmt.Errorf("steps must not be negative, got %d", c.Scene.Steps))
	}
	if e := c.Material.Validate(); e != nil {
		err = multierr.Append(err, fmt.Errorf("material: %w", e))
	}
	for _, name := range slices.Sorted(maps.Keys(c.Materials)) {
		if e := c.Materials[name].Validate(); e != nil {
			err = multierr.Append(err, fmt.Errorf("material %q: %w", name, e))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./weave.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Weave")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Weave")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "weave")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "weave")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
