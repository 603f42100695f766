package levelset

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// BoundsOf returns the box enclosing points.
func BoundsOf(points []mgl64.Vec3) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		for a := 0; a < 3; a++ {
			box.Min[a] = math.Min(box.Min[a], p[a])
			box.Max[a] = math.Max(box.Max[a], p[a])
		}
	}
	return box
}

// Expand grows the box by margin on every side.
func (a AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Sphere is a ball of Radius around Center.
type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func (s Sphere) Distance(p mgl64.Vec3) float64 {
	return p.Sub(s.Center).Len() - s.Radius
}

// Box is an oriented box defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	Center      mgl64.Vec3
	Rotation    mgl64.Quat
	HalfExtents mgl64.Vec3
}

func (b Box) Distance(p mgl64.Vec3) float64 {
	rot := b.Rotation
	if rot.Len() == 0 {
		rot = mgl64.QuatIdent()
	}
	local := rot.Inverse().Rotate(p.Sub(b.Center))

	var outside mgl64.Vec3
	inside := math.Inf(-1)
	for a := 0; a < 3; a++ {
		d := math.Abs(local[a]) - b.HalfExtents[a]
		outside[a] = math.Max(d, 0)
		inside = math.Max(inside, d)
	}
	return outside.Len() + math.Min(inside, 0)
}

// Plane is the half space below Normal · p + Offset = 0.
// Normal must be normalized.
type Plane struct {
	Normal mgl64.Vec3
	Offset float64
}

func (p Plane) Distance(q mgl64.Vec3) float64 {
	return p.Normal.Dot(q) + p.Offset
}

// Union is the closest of several fields.
type Union []Field

func (u Union) Distance(p mgl64.Vec3) float64 {
	d := math.Inf(1)
	for _, f := range u {
		d = math.Min(d, f.Distance(p))
	}
	return d
}
