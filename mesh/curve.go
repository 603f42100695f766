package mesh

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"go.uber.org/multierr"
)

// CurvePoint is one sample of a stiffness curve: at X (a strain or a
// curvature) the stiffness is multiplied by Scale.
type CurvePoint struct {
	X     float64 `yaml:"x"`
	Scale float64 `yaml:"scale"`
}

// Curve is a piecewise-linear stiffness multiplier, constant past its first
// and last samples. The empty curve is 1 everywhere, so a scalar stiffness is
// a curve without samples.
type Curve []CurvePoint

// At returns the multiplier at x.
func (c Curve) At(x float64) float64 {
	if len(c) == 0 {
		return 1
	}
	if x <= c[0].X {
		return c[0].Scale
	}
	last := c[len(c)-1]
	if x >= last.X {
		return last.Scale
	}

	// c[i-1].X < x <= c[i].X
	i, _ := slices.BinarySearchFunc(c, x, func(p CurvePoint, x float64) int {
		return cmp.Compare(p.X, x)
	})
	a, b := c[i-1], c[i]
	t := (x - a.X) / (b.X - a.X)
	return a.Scale + t*(b.Scale-a.Scale)
}

// Validate reports samples out of order and negative or NaN multipliers.
func (c Curve) Validate() error {
	var err error
	for i, p := range c {
		if !(p.Scale >= 0) || math.IsInf(p.Scale, 1) {
			err = multierr.Append(err, fmt.Errorf("sample %d: scale %g must be finite and not negative", i, p.Scale))
		}
		if math.IsNaN(p.X) || (i > 0 && !(p.X > c[i-1].X)) {
			err = multierr.Append(err, fmt.Errorf("sample %d: x %g does not increase", i, p.X))
		}
	}
	return err
}
