package weave

import (
	"math"

	"github.com/akmonengine/weave/energy"
	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/pcg"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
)

// vertices lighter than this are treated as having this mass
const minNodeMass = 1e-9

// assemble writes A = M/dt² − K and b = f/dt + K·v for the current state.
// Every kernel writes its own scratch slots only; the scatter plans of the
// structure then reduce the slots into the matrix blocks and the RHS.
func (s *Sim) assemble() {
	st := s.structure
	w := s.param.Workers

	parallel.For(w, st.NumFaces, s.assembleFace)
	parallel.For(w, st.NumBends, s.assembleBend)
	parallel.For(w, st.NumStitches, s.assembleStitch)
	parallel.For(w, st.N, s.assembleNode)

	sparse.Gather(st.A, w, s.blockScratch, s.a.Blocks, mgl64.Mat3.Add)
	sparse.Gather(st.B, w, s.rhsScratch, s.rhs, mgl64.Vec3.Add)
}

func (s *Sim) assembleFace(f int) {
	st := s.structure
	face := s.topo.Faces[f].V
	tex := s.topo.TexFaces[f].V
	mat := s.mats.Faces[f]

	x := [3]mgl64.Vec3{s.x[face[0]], s.x[face[1]], s.x[face[2]]}
	uv := [3]mgl64.Vec2{s.garment.TexCoords[tex[0]], s.garment.TexCoords[tex[1]], s.garment.TexCoords[tex[2]]}
	el, ok := energy.Stretch(x, uv, mat.Area, mat.Stretch.Scale(s.param.StretchMult))
	if !ok {
		el = energy.Tri{}
	}

	for l := 0; l < 3; l++ {
		rhs := el.F[l].Mul(1 / s.param.Dt)
		for m := 0; m < 3; m++ {
			s.blockScratch[st.FaceBlockSlot(f, l, m)] = el.K[l][m].Mul(-1)
			rhs = rhs.Add(el.K[l][m].Mul3x1(s.v[face[m]]))
		}
		s.rhsScratch[st.FaceRHSSlot(f, l)] = rhs
	}
}

func (s *Sim) assembleBend(e int) {
	st := s.structure
	edge := s.topo.Edges[s.topo.Bends[e]]
	f0, f1 := s.mats.Faces[edge.Faces[0]], s.mats.Faces[edge.Faces[1]]

	var x [4]mgl64.Vec3
	for k, v := range edge.Verts {
		x[k] = s.x[v]
	}
	restLengthSqr := (edge.RestLengthSqr[0] + edge.RestLengthSqr[1]) / 2
	restArea := f0.Area + f1.Area
	kappa := energy.Curvature(x, restLengthSqr, restArea, edge.IdealDihedral)
	ke := (f0.Bend*f0.BendCurve.At(kappa) + f1.Bend*f1.BendCurve.At(kappa)) / 2 * s.param.BendMult
	el, ok := energy.Bend(x, ke, restLengthSqr, restArea, edge.IdealDihedral)
	if !ok {
		el = energy.Quad{}
	}

	for l := 0; l < 4; l++ {
		rhs := el.F[l].Mul(1 / s.param.Dt)
		for m := 0; m < 4; m++ {
			s.blockScratch[st.BendBlockSlot(e, l, m)] = el.K[l][m].Mul(-1)
			rhs = rhs.Add(el.K[l][m].Mul3x1(s.v[edge.Verts[m]]))
		}
		s.rhsScratch[st.BendRHSSlot(e, l)] = rhs
	}
}

func (s *Sim) assembleStitch(e int) {
	st := s.structure
	verts := s.stitch.Edges[e].Verts
	a, b := verts[0], verts[1]

	el := energy.Spring(s.x[a], s.x[b], s.stitch.RestLength(e, s.shrink), s.param.StitchStiffness)
	v := [2]mgl64.Vec3{s.v[a], s.v[b]}
	for l := 0; l < 2; l++ {
		rhs := el.F[l].Mul(1 / s.param.Dt)
		for m := 0; m < 2; m++ {
			s.blockScratch[st.StitchBlockSlot(e, l, m)] = el.K[l][m].Mul(-1)
			rhs = rhs.Add(el.K[l][m].Mul3x1(v[m]))
		}
		s.rhsScratch[st.StitchRHSSlot(e, l)] = rhs
	}
}

// assembleNode adds inertia, gravity, the pin handle and the body contact of
// vertex i.
func (s *Sim) assembleNode(i int) {
	st := s.structure
	p := s.param
	invDt := 1 / p.Dt

	mass := math.Max(s.mats.Nodes[i].Mass, minNodeMass)
	block := mgl64.Ident3().Mul(mass * invDt * invDt)
	rhs := p.Gravity.Mul(mass * invDt)

	if s.pinned[i] {
		f, k := energy.Anchor(s.x[i], s.pinTarget[i], p.HandleStiffness*s.pinWeight[i])
		block = block.Sub(k)
		rhs = rhs.Add(f.Mul(invDt)).Add(k.Mul3x1(s.v[i]))
	}

	s.bodyContact[i] = false
	if s.body != nil && !s.pinned[i] {
		if f, kn, kf, ok := s.sampleBody(i); ok {
			s.bodyContact[i] = true
			block = block.Sub(kn).Sub(kf)
			rhs = rhs.Add(f.Mul(invDt)).Add(kf.Mul3x1(s.v[i]))
		}
	}

	s.blockScratch[st.NodeBlockSlot(i)] = block
	s.rhsScratch[st.NodeRHSSlot(i)] = rhs
}

// solve runs the PCG on the assembled system, leaving the velocity change in s.dv.
func (s *Sim) solve() {
	w := s.param.Workers
	parallel.For(w, len(s.rhs), func(i int) {
		s.b[3*i], s.b[3*i+1], s.b[3*i+2] = s.rhs[i][0], s.rhs[i][1], s.rhs[i][2]
	})
	clear(s.dv)

	s.solver.Workers = w
	res, err := s.solver.Solve(s.a, s.b, s.dv, pcg.Options{
		MaxIterations: s.param.PCGIterations,
		Tolerance:     s.param.PCGTolerance,
	})
	if err != nil {
		// the structure and the state are sized together, this is a bug
		s.logger.Error("pcg solve failed", zap.Error(err))
		clear(s.dv)
	}
	s.solverResult = res
	if !res.Converged {
		s.logger.Debug("pcg did not converge", zap.Stringer("result", res))
	}
}

// integrate applies the velocity change: v += dv, x += v·dt. Pinned vertices
// are snapped onto their target and stopped.
func (s *Sim) integrate() {
	dt := s.param.Dt
	copy(s.lastX, s.x)
	copy(s.lastV, s.v)
	parallel.For(s.param.Workers, len(s.x), func(i int) {
		if s.pinned[i] {
			s.x[i] = s.pinTarget[i]
			s.v[i] = mgl64.Vec3{}
			return
		}
		dv := mgl64.Vec3{s.dv[3*i], s.dv[3*i+1], s.dv[3*i+2]}
		s.v[i] = s.v[i].Add(dv)
		s.x[i] = s.x[i].Add(s.v[i].Mul(dt))
	})
}

// advanceStitches shrinks the stitch rest lengths and reports the stitches that
// closed. A closed stitch asks for a stitch rebuild, which welds its vertices.
func (s *Sim) advanceStitches() {
	if len(s.stitch.Edges) == 0 {
		return
	}
	s.shrink += s.param.StitchRatio * s.param.Dt
	for e, edge := range s.stitch.Edges {
		if s.stitch.RestLength(e, s.shrink) > 0 {
			continue
		}
		a, b := edge.Verts[0], edge.Verts[1]
		if s.x[a].Sub(s.x[b]).Len() > s.param.StitchMergeDistance {
			continue
		}
		pair := s.stitch.Pairs[e]
		s.Events.emitStitchClosed(e, pair.A, pair.B)
		s.dirty |= dirtyStitch
	}
}
