package config

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/akmonengine/weave"
	"github.com/go-gl/mathgl/mgl64"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Sim != weave.DefaultSimParam() {
		t.Errorf("expected default simulation settings, got %+v", cfg.Sim)
	}
	if cfg.Scene.Resolution != 32 {
		t.Errorf("expected resolution 32, got %d", cfg.Scene.Resolution)
	}
	if cfg.Scene.Output != "drape.glb" {
		t.Errorf("expected output drape.glb, got %s", cfg.Scene.Output)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config is invalid: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "weave.yaml")

	yamlContent := `
sim:
  dt: 0.002
  gravity: [0, 0, -9.8]
  enable_self_collision: true
material:
  density: 0.3
materials:
  denim:
    density: 0.4
    bend: 0.0001
    stretch:
      warp: 5000
      weft: 4000
      curve:
        - {x: 0, scale: 1}
        - {x: 0.1, scale: 3}
    bend_curve:
      - {x: 0, scale: 1}
      - {x: 0.5, scale: 2}
scene:
  resolution: 16
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Sim.Dt != 0.002 {
		t.Errorf("expected dt 0.002, got %v", cfg.Sim.Dt)
	}
	if cfg.Sim.Gravity != (mgl64.Vec3{0, 0, -9.8}) {
		t.Errorf("expected gravity along -z, got %v", cfg.Sim.Gravity)
	}
	if !cfg.Sim.EnableSelfCollision {
		t.Error("expected self collision enabled")
	}
	// untouched values keep their default
	if cfg.Sim.PCGIterations != weave.DefaultSimParam().PCGIterations {
		t.Errorf("expected default pcg iterations, got %d", cfg.Sim.PCGIterations)
	}
	if cfg.Material.Density != 0.3 {
		t.Errorf("expected material density 0.3, got %v", cfg.Material.Density)
	}
	denim, ok := cfg.Materials["denim"]
	if !ok {
		t.Fatal("expected a denim material")
	}
	if denim.Stretch.Warp != 5000 || denim.Stretch.Weft != 4000 || denim.Bend != 0.0001 {
		t.Errorf("unexpected denim material %+v", denim)
	}
	if got := denim.Stretch.Curve.At(0.05); got != 2 {
		t.Errorf("expected stretch curve 2 at 0.05, got %v", got)
	}
	if got := denim.BendCurve.At(1); got != 2 {
		t.Errorf("expected bend curve 2 past its end, got %v", got)
	}
	if cfg.Scene.Resolution != 16 || cfg.Scene.Steps != 400 {
		t.Errorf("expected resolution 16 and default steps, got %d and %d", cfg.Scene.Resolution, cfg.Scene.Steps)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative dt", "sim:\n  dt: -1\n"},
		{"negative resolution", "scene:\n  resolution: -2\n"},
		{"unsorted curve", "materials:\n  silk:\n    bend_curve:\n      - {x: 1, scale: 1}\n      - {x: 0, scale: 1}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "weave.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write config: %v", err)
			}
			if _, err := LoadFile(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("LoadFile() error = %v, want ErrInvalidConfig", err)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.yaml")
	if err := os.WriteFile(path, []byte("scene:\n  steps: 10\n  output: file.glb\n"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	if err := fs.Parse([]string{"-config", path, "-steps", "25", "-workers", "4", "-debug", "-self-collision", "-save-config"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Scene.Steps != 25 {
		t.Errorf("expected steps from flag 25, got %d", cfg.Scene.Steps)
	}
	if cfg.Scene.Output != "file.glb" {
		t.Errorf("expected output from file, got %s", cfg.Scene.Output)
	}
	if cfg.Sim.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Sim.Workers)
	}
	if cfg.Logging.Level != "debug" || !cfg.Sim.EnableSelfCollision {
		t.Error("expected debug logging and self collision from flags")
	}
	if !f.SaveConfig() {
		t.Error("expected save-config from flags")
	}
}

func TestSaveToConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("config dir follows XDG_CONFIG_HOME on linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	cfg := Default()
	cfg.Scene.Steps = 7
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// the saved file is the second place Load looks at
	loaded, err := LoadFile(filepath.Join(dir, "weave", "config.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Scene.Steps != 7 {
		t.Errorf("expected 7 steps, got %d", loaded.Scene.Steps)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "weave.yaml")

	cfg := Default()
	cfg.Sim.StitchRatio = 2.5
	cfg.Scene.PinCorners = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if loaded.Sim.StitchRatio != 2.5 || !loaded.Scene.PinCorners {
		t.Errorf("saved values not restored: %+v", loaded.Scene)
	}
	if loaded.Sim.Gravity != cfg.Sim.Gravity {
		t.Errorf("expected gravity %v, got %v", cfg.Sim.Gravity, loaded.Sim.Gravity)
	}
}
