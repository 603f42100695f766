package energy

import (
	"math"

	"github.com/akmonengine/weave/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Bend evaluates the discrete-shell bending energy of the edge (x0, x1) with
// wings x2 (face x0 x1 x2) and x3 (face x1 x0 x3):
//
//	E = ke·shape·(θ − θ̄)²/4,  shape = l̄²/(2·(A0 + A1))
//
// l̄² and the areas are rest (texture space) quantities. The Jacobian keeps
// only the Gauss-Newton part −ke·shape/2·∇θ∇θᵀ.
func Bend(x [4]mgl64.Vec3, ke, restLengthSqr, restArea, idealTheta float64) (Quad, bool) {
	var out Quad
	if restArea < eps || ke == 0 {
		return out, false
	}

	e := x[1].Sub(x[0])
	el2 := e.LenSqr()
	if el2 < eps {
		return out, false
	}
	el := e.Len()

	c0 := e.Cross(x[2].Sub(x[0]))
	c1 := x[0].Sub(x[1]).Cross(x[3].Sub(x[1]))
	h0 := c0.Len() / el
	h1 := c1.Len() / el
	if h0 < eps || h1 < eps {
		return out, false
	}
	n0, n1 := c0.Normalize(), c1.Normalize()

	t0 := x[2].Sub(x[0]).Dot(e) / el2
	t1 := x[3].Sub(x[0]).Dot(e) / el2

	a0, a1 := n0.Mul(1/h0), n1.Mul(1/h1)
	dtheta := [4]mgl64.Vec3{
		a0.Mul(1 - t0).Add(a1.Mul(1 - t1)).Mul(-1),
		a0.Mul(t0).Add(a1.Mul(t1)).Mul(-1),
		a0,
		a1,
	}

	theta := mesh.DihedralAngle(x[0], x[1], x[2], x[3])
	shape := restLengthSqr / (2 * restArea)
	s := ke * shape / 2

	for i := 0; i < 4; i++ {
		out.F[i] = dtheta[i].Mul(-s * (theta - idealTheta))
		for j := 0; j < 4; j++ {
			out.K[i][j] = scaledOuter(-s, dtheta[i], dtheta[j])
		}
	}

	return out, true
}

// BendEnergy returns the bending energy Bend differentiates.
func BendEnergy(x [4]mgl64.Vec3, ke, restLengthSqr, restArea, idealTheta float64) float64 {
	if restArea < eps {
		return 0
	}
	d := mesh.DihedralAngle(x[0], x[1], x[2], x[3]) - idealTheta
	return ke * restLengthSqr / (2 * restArea) * d * d / 4
}

// Curvature returns the edge curvature a bend curve is sampled at,
// 3·l̄·|θ − θ̄|/(A0 + A1), from the same rest quantities as Bend.
func Curvature(x [4]mgl64.Vec3, restLengthSqr, restArea, idealTheta float64) float64 {
	if restArea < eps {
		return 0
	}
	d := mesh.DihedralAngle(x[0], x[1], x[2], x[3]) - idealTheta
	return 3 * math.Sqrt(restLengthSqr) * math.Abs(d) / restArea
}
