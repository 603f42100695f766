package weave

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

// SimParam is the per-step configuration. Changes take effect on the next step.
type SimParam struct {
	Dt      float64    `yaml:"dt"`
	Gravity mgl64.Vec3 `yaml:"gravity,flow"`

	PCGIterations int     `yaml:"pcg_iterations"`
	PCGTolerance  float64 `yaml:"pcg_tolerance"`

	// StitchRatio is the stitch rest length shrink rate, in m/s.
	StitchRatio float64 `yaml:"stitch_ratio"`
	// StitchMergeDistance is the distance under which a stitched pair is
	// welded into a single vertex.
	StitchMergeDistance float64 `yaml:"stitch_merge_distance"`

	StretchMult        float64 `yaml:"stretch_mult"`
	BendMult           float64 `yaml:"bend_mult"`
	StitchStiffness    float64 `yaml:"stitch_stiffness"`
	HandleStiffness    float64 `yaml:"handle_stiffness"`
	CollisionStiffness float64 `yaml:"collision_stiffness"`
	FrictionStiffness  float64 `yaml:"friction_stiffness"`

	RepulsionThickness  float64 `yaml:"repulsion_thickness"`
	ProjectionThickness float64 `yaml:"projection_thickness"`

	EnableSelfCollision      bool `yaml:"enable_self_collision"`
	SelfCollisionMaxGridSize int  `yaml:"self_collision_max_grid_size"`

	// Workers is the number of goroutines per parallel kernel.
	Workers int `yaml:"workers"`
}

// DefaultSimParam returns settings suited to garments of about a metre.
func DefaultSimParam() SimParam {
	return SimParam{
		Dt:                       1.0 / 200,
		Gravity:                  mgl64.Vec3{0, -9.8, 0},
		PCGIterations:            400,
		PCGTolerance:             1e-3,
		StitchRatio:              5,
		StitchMergeDistance:      1e-3,
		StretchMult:              1,
		BendMult:                 1,
		StitchStiffness:          2e5,
		HandleStiffness:          1e4,
		CollisionStiffness:       1e6,
		FrictionStiffness:        1,
		RepulsionThickness:       5e-3,
		ProjectionThickness:      2e-3,
		EnableSelfCollision:      false,
		SelfCollisionMaxGridSize: 64,
		Workers:                  DEFAULT_WORKERS,
	}
}

// Validate reports every setting that cannot run a step.
func (p SimParam) Validate() error {
	var err error
	if p.Dt <= 0 {
		err = multierr.Append(err, fmt.Errorf("dt must be positive, got %g", p.Dt))
	}
	if p.PCGIterations < 0 {
		err = multierr.Append(err, fmt.Errorf("pcg iterations must not be negative, got %d", p.PCGIterations))
	}
	if p.PCGTolerance < 0 {
		err = multierr.Append(err, fmt.Errorf("pcg tolerance must not be negative, got %g", p.PCGTolerance))
	}
	if p.RepulsionThickness < 0 || p.ProjectionThickness < 0 {
		err = multierr.Append(err, errors.New("thickness must not be negative"))
	}
	if p.EnableSelfCollision && p.SelfCollisionMaxGridSize < 1 {
		err = multierr.Append(err, fmt.Errorf("self collision grid size must be at least 1, got %d", p.SelfCollisionMaxGridSize))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParam, err)
	}
	return nil
}
