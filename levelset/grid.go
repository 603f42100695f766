// Package levelset stores the signed distance to a static body on a voxel grid
// and samples it with trilinear interpolation.
package levelset

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/weave/parallel"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

var ErrInvalidGrid = errors.New("invalid level set grid")

// Field is anything that reports a signed distance, negative inside.
type Field interface {
	Distance(p mgl64.Vec3) float64
}

// Grid holds Nx·Ny·Nz signed distances, x fastest. GridToWorld maps the grid
// coordinates (i, j, k) of a sample to world space; it must be a similarity
// so distances keep their meaning.
type Grid struct {
	Nx, Ny, Nz  int
	Values      []float64
	GridToWorld mgl64.Mat4

	worldToGrid mgl64.Mat4
	spacing     float64
}

// NewGrid validates the samples and the transform.
func NewGrid(nx, ny, nz int, values []float64, gridToWorld mgl64.Mat4) (*Grid, error) {
	var err error
	if nx < 2 || ny < 2 || nz < 2 {
		err = multierr.Append(err, fmt.Errorf("dimensions %dx%dx%d, need at least 2 per axis", nx, ny, nz))
	} else if len(values) != nx*ny*nz {
		err = multierr.Append(err, fmt.Errorf("%d values for %dx%dx%d samples", len(values), nx, ny, nz))
	}
	if math.Abs(gridToWorld.Det()) < 1e-300 {
		err = multierr.Append(err, errors.New("grid to world transform is singular"))
	}
	for i, v := range values {
		if math.IsNaN(v) {
			err = multierr.Append(err, fmt.Errorf("value %d is NaN", i))
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGrid, err)
	}

	spacing := mgl64.TransformNormal(mgl64.Vec3{1, 0, 0}, gridToWorld).Len()
	return &Grid{
		Nx:          nx,
		Ny:          ny,
		Nz:          nz,
		Values:      values,
		GridToWorld: gridToWorld,
		worldToGrid: gridToWorld.Inv(),
		spacing:     spacing,
	}, nil
}

// Bake samples field at the nodes of a grid covering bounds with the given
// cell size.
func Bake(workers int, field Field, bounds AABB, cellSize float64) (*Grid, error) {
	if cellSize <= 0 {
		return nil, fmt.Errorf("%w: cell size %g", ErrInvalidGrid, cellSize)
	}
	size := bounds.Max.Sub(bounds.Min)
	nx := int(math.Ceil(size.X()/cellSize)) + 1
	ny := int(math.Ceil(size.Y()/cellSize)) + 1
	nz := int(math.Ceil(size.Z()/cellSize)) + 1
	if nx < 2 || ny < 2 || nz < 2 {
		return nil, fmt.Errorf("%w: empty bounds %v", ErrInvalidGrid, bounds)
	}

	toWorld := mgl64.Translate3D(bounds.Min.X(), bounds.Min.Y(), bounds.Min.Z()).
		Mul4(mgl64.Scale3D(cellSize, cellSize, cellSize))
	values := make([]float64, nx*ny*nz)
	parallel.For(workers, len(values), func(idx int) {
		i := idx % nx
		j := (idx / nx) % ny
		k := idx / (nx * ny)
		p := mgl64.TransformCoordinate(mgl64.Vec3{float64(i), float64(j), float64(k)}, toWorld)
		values[idx] = field.Distance(p)
	})
	return NewGrid(nx, ny, nz, values, toWorld)
}

func (g *Grid) at(i, j, k int) float64 {
	return g.Values[(k*g.Ny+j)*g.Nx+i]
}

// Spacing is the world distance between neighbouring samples.
func (g *Grid) Spacing() float64 {
	return g.spacing
}

// Distance interpolates the signed distance at p. Outside the grid the value
// at the closest grid point is extended by the distance to it.
func (g *Grid) Distance(p mgl64.Vec3) float64 {
	q := mgl64.TransformCoordinate(p, g.worldToGrid)
	c := mgl64.Vec3{
		clamp(q.X(), 0, float64(g.Nx-1)),
		clamp(q.Y(), 0, float64(g.Ny-1)),
		clamp(q.Z(), 0, float64(g.Nz-1)),
	}
	d := g.trilinear(c)
	if c != q {
		d += q.Sub(c).Len() * g.spacing
	}
	return d
}

// Sample returns the distance at p and the unit gradient, taken by central
// differences half a cell apart. The gradient is zero where it vanishes.
func (g *Grid) Sample(p mgl64.Vec3) (float64, mgl64.Vec3) {
	h := g.spacing / 2
	var grad mgl64.Vec3
	for a := 0; a < 3; a++ {
		var off mgl64.Vec3
		off[a] = h
		grad[a] = (g.Distance(p.Add(off)) - g.Distance(p.Sub(off))) / (2 * h)
	}
	if l := grad.Len(); l > 1e-12 {
		grad = grad.Mul(1 / l)
	} else {
		grad = mgl64.Vec3{}
	}
	return g.Distance(p), grad
}

func (g *Grid) trilinear(q mgl64.Vec3) float64 {
	i0, fx := cell(q.X(), g.Nx)
	j0, fy := cell(q.Y(), g.Ny)
	k0, fz := cell(q.Z(), g.Nz)

	lerp := func(a, b, t float64) float64 { return a + (b-a)*t }
	c00 := lerp(g.at(i0, j0, k0), g.at(i0+1, j0, k0), fx)
	c10 := lerp(g.at(i0, j0+1, k0), g.at(i0+1, j0+1, k0), fx)
	c01 := lerp(g.at(i0, j0, k0+1), g.at(i0+1, j0, k0+1), fx)
	c11 := lerp(g.at(i0, j0+1, k0+1), g.at(i0+1, j0+1, k0+1), fx)
	return lerp(lerp(c00, c10, fy), lerp(c01, c11, fy), fz)
}

// cell returns the lower sample index and the fraction inside the cell.
func cell(v float64, n int) (int, float64) {
	i := int(math.Floor(v))
	if i >= n-1 {
		i = n - 2
	}
	return i, v - float64(i)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
