// Package pcg solves symmetric positive definite block systems with the
// preconditioned conjugate gradient method and a block-Jacobi preconditioner.
package pcg

import (
	"errors"
	"fmt"
	"math"

	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"
)

var ErrDimension = errors.New("pcg: dimension mismatch")

// Options bounds the iteration. A solve stops after MaxIterations or once
// ‖r‖ ≤ Tolerance·‖b‖.
type Options struct {
	MaxIterations int
	Tolerance     float64
}

// Result reports how a solve ended.
type Result struct {
	Iterations       int
	Residual         float64
	RelativeResidual float64
	Converged        bool
	// Breakdown is set when a search direction had pᵀAp ≤ 0.
	Breakdown bool
}

func (r Result) String() string {
	return fmt.Sprintf("iterations=%d residual=%.3e relative=%.3e converged=%t", r.Iterations, r.Residual, r.RelativeResidual, r.Converged)
}

// Solver keeps the work vectors between solves of the same size.
type Solver struct {
	Workers int

	r, z, p, ap []float64
	precond     []mgl64.Mat3
}

// NewSolver returns a solver fanning vector work out over workers goroutines.
func NewSolver(workers int) *Solver {
	return &Solver{Workers: workers}
}

func (s *Solver) resize(n int) {
	if len(s.r) == 3*n {
		return
	}
	s.r = make([]float64, 3*n)
	s.z = make([]float64, 3*n)
	s.p = make([]float64, 3*n)
	s.ap = make([]float64, 3*n)
	s.precond = make([]mgl64.Mat3, n)
}

// Solve approximates A·x = b starting from x. b and x are flat 3N vectors.
func (s *Solver) Solve(a *sparse.Matrix, b, x []float64, opts Options) (Result, error) {
	n := a.N
	if len(b) != 3*n || len(x) != 3*n {
		return Result{}, fmt.Errorf("%w: matrix has %d blocks, rhs %d, x %d", ErrDimension, n, len(b), len(x))
	}
	s.resize(n)
	s.buildPreconditioner(a)

	bNorm := s.norm(b)
	if bNorm == 0 {
		clear(x)
		return Result{Converged: true}, nil
	}

	// r = b - A x
	a.MulVec(s.Workers, x, s.ap)
	s.each(func(i int) { s.r[i] = b[i] - s.ap[i] })
	s.applyPreconditioner(s.r, s.z)
	copy(s.p, s.z)
	rz := s.dot(s.r, s.z)

	res := Result{Residual: s.norm(s.r)}
	res.RelativeResidual = res.Residual / bNorm
	for res.Iterations < opts.MaxIterations && res.RelativeResidual > opts.Tolerance {
		a.MulVec(s.Workers, s.p, s.ap)
		pap := s.dot(s.p, s.ap)
		if pap <= 0 || math.IsNaN(pap) {
			res.Breakdown = true
			break
		}
		alpha := rz / pap
		parallel.Range(s.Workers, len(x), func(start, end int) {
			floats.AddScaled(x[start:end], alpha, s.p[start:end])
			floats.AddScaled(s.r[start:end], -alpha, s.ap[start:end])
		})
		res.Iterations++
		res.Residual = s.norm(s.r)
		res.RelativeResidual = res.Residual / bNorm
		if res.RelativeResidual <= opts.Tolerance {
			break
		}

		s.applyPreconditioner(s.r, s.z)
		rzNext := s.dot(s.r, s.z)
		beta := rzNext / rz
		rz = rzNext
		// p = z + beta p
		parallel.Range(s.Workers, len(x), func(start, end int) {
			floats.Scale(beta, s.p[start:end])
			floats.Add(s.p[start:end], s.z[start:end])
		})
	}
	res.Converged = res.RelativeResidual <= opts.Tolerance
	return res, nil
}

// Solve runs a one-off solve with a fresh Solver.
func Solve(workers int, a *sparse.Matrix, b, x []float64, opts Options) (Result, error) {
	return NewSolver(workers).Solve(a, b, x, opts)
}

// buildPreconditioner inverts every diagonal block. Singular blocks fall back
// to the reciprocal of their diagonal, and to identity where that is zero too.
func (s *Solver) buildPreconditioner(a *sparse.Matrix) {
	parallel.For(s.Workers, a.N, func(i int) {
		if a.DiagIdx[i] < 0 {
			s.precond[i] = mgl64.Ident3()
			return
		}
		d := a.Blocks[a.DiagIdx[i]]
		if math.Abs(d.Det()) > 1e-300 {
			s.precond[i] = d.Inv()
			return
		}
		var inv mgl64.Mat3
		for k := 0; k < 3; k++ {
			if v := d.At(k, k); v != 0 {
				inv.Set(k, k, 1/v)
			} else {
				inv.Set(k, k, 1)
			}
		}
		s.precond[i] = inv
	})
}

func (s *Solver) applyPreconditioner(r, z []float64) {
	parallel.For(s.Workers, len(s.precond), func(i int) {
		v := s.precond[i].Mul3x1(mgl64.Vec3{r[3*i], r[3*i+1], r[3*i+2]})
		z[3*i], z[3*i+1], z[3*i+2] = v[0], v[1], v[2]
	})
}

func (s *Solver) each(fn func(i int)) {
	parallel.For(s.Workers, len(s.r), fn)
}

func (s *Solver) dot(u, v []float64) float64 {
	return parallel.Sum(s.Workers, len(u), func(start, end int) float64 {
		return floats.Dot(u[start:end], v[start:end])
	})
}

func (s *Solver) norm(u []float64) float64 {
	return math.Sqrt(s.dot(u, u))
}
