// Package energy evaluates the per-element forces and force Jacobians of the
// cloth model. Every kernel returns the force f acting on each local vertex and
// the blocks K[i][j] = ∂f_i/∂x_j. Jacobians are symmetric and negative
// semi-definite, so M/dt² − K stays positive definite.
//
// Degenerate elements report ok == false and contribute nothing.
package energy

import "github.com/go-gl/mathgl/mgl64"

// degenerate lengths and areas below eps are skipped
const eps = 1e-12

// Element is the local contribution of an element with N vertices.
type Element[F any, K any] struct {
	F F
	K K
}

// Tri is the contribution of a face.
type Tri = Element[[3]mgl64.Vec3, [3][3]mgl64.Mat3]

// Quad is the contribution of a bend edge or a vertex/triangle pair.
type Quad = Element[[4]mgl64.Vec3, [4][4]mgl64.Mat3]

// Pair is the contribution of a spring.
type Pair = Element[[2]mgl64.Vec3, [2][2]mgl64.Mat3]

// scaledOuter returns s·a·bᵀ.
func scaledOuter(s float64, a, b mgl64.Vec3) mgl64.Mat3 {
	return a.OuterProd3(b).Mul(s)
}
