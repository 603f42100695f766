// Package config loads the settings of programs driving a simulation.
package config

import (
	"github.com/akmonengine/weave"
	"github.com/akmonengine/weave/mesh"
)

// Config holds all settings.
type Config struct {
	Sim       weave.SimParam     `yaml:"sim"`
	Material  mesh.Material      `yaml:"material"`  // used by faces without a name
	Materials mesh.MaterialTable `yaml:"materials"` // by face material name
	Scene     SceneConfig        `yaml:"scene"`
	Logging   LoggingConfig      `yaml:"logging"`
}

// SceneConfig describes the drape scene: a square cloth dropped on a sphere.
type SceneConfig struct {
	Resolution   int     `yaml:"resolution"` // quads per side
	Size         float64 `yaml:"size"`
	Height       float64 `yaml:"height"`
	SphereRadius float64 `yaml:"sphere_radius"`
	VoxelSize    float64 `yaml:"voxel_size"`
	PinCorners   bool    `yaml:"pin_corners"`
	Steps        int     `yaml:"steps"`
	Output       string  `yaml:"output"` // .glb written after the last step
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Sim:       weave.DefaultSimParam(),
		Material:  mesh.DefaultMaterial(),
		Materials: mesh.MaterialTable{},
		Scene: SceneConfig{
			Resolution:   32,
			Size:         1,
			Height:       0.5,
			SphereRadius: 0.25,
			VoxelSize:    0.01,
			PinCorners:   false,
			Steps:        400,
			Output:       "drape.glb",
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
