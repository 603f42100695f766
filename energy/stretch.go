package energy

import (
	"math"

	"github.com/akmonengine/weave/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

// Stretch evaluates the membrane energy of a face from its Green strain
//
//	G = (FᵀF − I)/2,  F = Ds·Dm⁻¹
//
// with Ds the world edge matrix and Dm the texture edge matrix. The energy is
//
//	E = area·(warp·G00²/2 + weft·G11²/2 + coupling·G00·G11 + shear·G01²)
//
// Second-order strain terms enter the Jacobian only while the material is
// stretched, which keeps it negative semi-definite. k.Curve is sampled at the
// strain magnitude |G| and held constant over the evaluation.
func Stretch(x [3]mgl64.Vec3, uv [3]mgl64.Vec2, area float64, k mesh.StretchStiffness) (Tri, bool) {
	var out Tri
	if area < eps {
		return out, false
	}

	d1, d2 := uv[1].Sub(uv[0]), uv[2].Sub(uv[0])
	dm := mgl64.Mat2{d1.X(), d1.Y(), d2.X(), d2.Y()}
	if math.Abs(dm.Det()) < eps {
		return out, false
	}
	inv := dm.Inv()

	// weights of each vertex in the u and v columns of F
	du := [3]float64{-(inv.At(0, 0) + inv.At(1, 0)), inv.At(0, 0), inv.At(1, 0)}
	dv := [3]float64{-(inv.At(0, 1) + inv.At(1, 1)), inv.At(0, 1), inv.At(1, 1)}

	var xu, xv mgl64.Vec3
	for i := 0; i < 3; i++ {
		xu = xu.Add(x[i].Mul(du[i]))
		xv = xv.Add(x[i].Mul(dv[i]))
	}

	g00 := (xu.Dot(xu) - 1) / 2
	g11 := (xv.Dot(xv) - 1) / 2
	g01 := xu.Dot(xv) / 2
	area *= k.Curve.At(strainNorm(g00, g11, g01))

	var fuu, fvv, fuv [3]mgl64.Vec3
	for i := 0; i < 3; i++ {
		fuu[i] = xu.Mul(du[i])
		fvv[i] = xv.Mul(dv[i])
		fuv[i] = xv.Mul(du[i]).Add(xu.Mul(dv[i])).Mul(0.5)
	}

	p00, p11 := math.Max(g00, 0), math.Max(g11, 0)
	for i := 0; i < 3; i++ {
		grad := fuu[i].Mul(k.Warp * g00).
			Add(fvv[i].Mul(k.Weft * g11)).
			Add(fvv[i].Mul(g00).Add(fuu[i].Mul(g11)).Mul(k.Coupling)).
			Add(fuv[i].Mul(2 * k.Shear * g01))
		out.F[i] = grad.Mul(-area)

		for j := 0; j < 3; j++ {
			h := scaledOuter(k.Warp, fuu[i], fuu[j]).
				Add(scaledOuter(k.Weft, fvv[i], fvv[j])).
				Add(scaledOuter(k.Coupling, fuu[i], fvv[j])).
				Add(scaledOuter(k.Coupling, fvv[i], fuu[j])).
				Add(scaledOuter(2*k.Shear, fuv[i], fuv[j]))
			diag := k.Warp*p00*du[i]*du[j] +
				k.Weft*p11*dv[i]*dv[j] +
				k.Coupling*(p00*dv[i]*dv[j]+p11*du[i]*du[j])
			h = h.Add(mgl64.Ident3().Mul(diag))
			out.K[i][j] = h.Mul(-area)
		}
	}

	return out, true
}

// StretchEnergy returns the membrane energy Stretch differentiates, with the
// curve sampled at the current strain.
func StretchEnergy(x [3]mgl64.Vec3, uv [3]mgl64.Vec2, area float64, k mesh.StretchStiffness) float64 {
	g00, g11, g01, ok := greenStrain(x, uv)
	if area < eps || !ok {
		return 0
	}
	area *= k.Curve.At(strainNorm(g00, g11, g01))
	return area * (k.Warp*g00*g00/2 + k.Weft*g11*g11/2 + k.Coupling*g00*g11 + k.Shear*g01*g01)
}

// StretchStrain returns the strain magnitude |G| a stretch curve is sampled at.
func StretchStrain(x [3]mgl64.Vec3, uv [3]mgl64.Vec2) float64 {
	g00, g11, g01, ok := greenStrain(x, uv)
	if !ok {
		return 0
	}
	return strainNorm(g00, g11, g01)
}

func greenStrain(x [3]mgl64.Vec3, uv [3]mgl64.Vec2) (g00, g11, g01 float64, ok bool) {
	d1, d2 := uv[1].Sub(uv[0]), uv[2].Sub(uv[0])
	dm := mgl64.Mat2{d1.X(), d1.Y(), d2.X(), d2.Y()}
	if math.Abs(dm.Det()) < eps {
		return 0, 0, 0, false
	}
	inv := dm.Inv()
	e1, e2 := x[1].Sub(x[0]), x[2].Sub(x[0])
	xu := e1.Mul(inv.At(0, 0)).Add(e2.Mul(inv.At(1, 0)))
	xv := e1.Mul(inv.At(0, 1)).Add(e2.Mul(inv.At(1, 1)))
	return (xu.Dot(xu) - 1) / 2, (xv.Dot(xv) - 1) / 2, xu.Dot(xv) / 2, true
}

// strainNorm is the Frobenius norm of the symmetric strain G.
func strainNorm(g00, g11, g01 float64) float64 {
	return math.Sqrt(g00*g00 + g11*g11 + 2*g01*g01)
}
