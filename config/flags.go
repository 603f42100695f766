package config

import "flag"

// Flags are the command line overrides of a Config.
type Flags struct {
	config        *string
	debug         *bool
	steps         *int
	output        *string
	workers       *int
	resolution    *int
	selfCollision *bool
	pinCorners    *bool
	saveConfig    *bool
}

// RegisterFlags defines the flags on fs. Parse fs before calling Load.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		config:        fs.String("config", "", "Path to config file"),
		debug:         fs.Bool("debug", false, "Enable debug logging"),
		steps:         fs.Int("steps", 0, "Number of steps to run"),
		output:        fs.String("output", "", "Path of the exported .glb"),
		workers:       fs.Int("workers", 0, "Goroutines per parallel kernel"),
		resolution:    fs.Int("resolution", 0, "Cloth quads per side"),
		selfCollision: fs.Bool("self-collision", false, "Enable self collision"),
		pinCorners:    fs.Bool("pin-corners", false, "Pin the two back corners of the cloth"),
		saveConfig:    fs.Bool("save-config", false, "Save the resulting config to the user config directory"),
	}
}

// ConfigPath returns the explicit config path if provided via --config flag.
func (f *Flags) ConfigPath() string {
	return *f.config
}

// SaveConfig reports whether the loaded config should be saved.
func (f *Flags) SaveConfig() bool {
	return *f.saveConfig
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) {
	if *f.debug {
		cfg.Logging.Level = "debug"
	}
	if *f.steps > 0 {
		cfg.Scene.Steps = *f.steps
	}
	if *f.output != "" {
		cfg.Scene.Output = *f.output
	}
	if *f.workers > 0 {
		cfg.Sim.Workers = *f.workers
	}
	if *f.resolution > 0 {
		cfg.Scene.Resolution = *f.resolution
	}
	if *f.selfCollision {
		cfg.Sim.EnableSelfCollision = true
	}
	if *f.pinCorners {
		cfg.Scene.PinCorners = true
	}
}
