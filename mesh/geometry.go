package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DihedralAngle returns the signed angle between faces (a, b, c) and (b, a, d)
// around edge ab. It is zero for a flat pair and positive when the wings fold
// along the normal of the first face. Degenerate configurations return 0.
func DihedralAngle(a, b, c, d mgl64.Vec3) float64 {
	e := a.Sub(b)
	if e.LenSqr() == 0 {
		return 0
	}
	n0 := b.Sub(a).Cross(c.Sub(a))
	n1 := a.Sub(b).Cross(d.Sub(b))
	if n0.LenSqr() == 0 || n1.LenSqr() == 0 {
		return 0
	}
	n0, n1 = n0.Normalize(), n1.Normalize()
	cosine := n0.Dot(n1)
	sine := e.Normalize().Dot(n0.Cross(n1))
	return math.Atan2(sine, cosine)
}

// FaceNormal returns the unit normal of (a, b, c), or zero for a degenerate face.
func FaceNormal(a, b, c mgl64.Vec3) mgl64.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	if n.LenSqr() == 0 {
		return mgl64.Vec3{}
	}
	return n.Normalize()
}
