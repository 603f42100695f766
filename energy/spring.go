package energy

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Spring is a zero-or-positive rest length spring between a and b,
// E = k(|b − a| − rest)²/2. The transverse Jacobian term is clamped to the
// stretched case. A collapsed spring (a == b) acts as k·I.
func Spring(a, b mgl64.Vec3, rest, k float64) Pair {
	var out Pair
	d := b.Sub(a)
	l := d.Len()

	var h mgl64.Mat3
	if l < eps {
		h = mgl64.Ident3().Mul(k)
	} else {
		n := d.Mul(1 / l)
		nn := n.OuterProd3(n)
		h = nn.Mul(k).Add(mgl64.Ident3().Sub(nn).Mul(k * math.Max(0, 1-rest/l)))
		f := n.Mul(k * (l - rest))
		out.F[0] = f
		out.F[1] = f.Mul(-1)
	}

	out.K[0][0] = h.Mul(-1)
	out.K[1][1] = h.Mul(-1)
	out.K[0][1] = h
	out.K[1][0] = h
	return out
}

// SpringEnergy returns k(|b − a| − rest)²/2.
func SpringEnergy(a, b mgl64.Vec3, rest, k float64) float64 {
	d := b.Sub(a).Len() - rest
	return k * d * d / 2
}
