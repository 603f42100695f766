package energy

import "github.com/go-gl/mathgl/mgl64"

// Anchor pulls x toward target with stiffness k.
func Anchor(x, target mgl64.Vec3, k float64) (mgl64.Vec3, mgl64.Mat3) {
	return target.Sub(x).Mul(k), mgl64.Ident3().Mul(-k)
}

// Contact is the penalty response of a point at signed distance phi from a
// surface with outward normal n. Inside the shell (phi < thickness) it pushes
// along n with stiffness k. The force is zero outside the shell.
func Contact(phi, thickness float64, n mgl64.Vec3, k float64) (mgl64.Vec3, mgl64.Mat3, bool) {
	if phi >= thickness {
		return mgl64.Vec3{}, mgl64.Mat3{}, false
	}
	return n.Mul(k * (thickness - phi)), n.OuterProd3(n).Mul(-k), true
}

// Friction is the tangential damping Jacobian −kf(I − nnᵀ) of a contact with
// normal n. It only enters the system through its velocity term.
func Friction(n mgl64.Vec3, kf float64) mgl64.Mat3 {
	return mgl64.Ident3().Sub(n.OuterProd3(n)).Mul(-kf)
}

// VertexTriangle is the repulsion between point p and the triangle point with
// barycentric weights w, separated by distance dist along normal n (pointing
// from the triangle to p). Only the diagonal Jacobian blocks are returned so
// the term fits the static matrix pattern.
func VertexTriangle(dist, thickness float64, n mgl64.Vec3, w [3]float64, k float64) (f [4]mgl64.Vec3, kdiag [4]mgl64.Mat3, ok bool) {
	if dist >= thickness {
		return f, kdiag, false
	}
	coef := [4]float64{1, -w[0], -w[1], -w[2]}
	depth := thickness - dist
	nn := n.OuterProd3(n)
	for i, c := range coef {
		f[i] = n.Mul(k * depth * c)
		kdiag[i] = nn.Mul(-k * c * c)
	}
	return f, kdiag, true
}
