package weave

import (
	"cmp"
	"math"
	"slices"
	"sync"

	"github.com/akmonengine/weave/energy"
	"github.com/akmonengine/weave/mesh"
	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
)

// projection passes per vertex against the body
const bodyProjectionPasses = 3

// selfContact is a vertex closer than the thickness to a triangle.
type selfContact struct {
	Vertex   int
	Triangle int
	// W are the barycentric weights of the closest point on the triangle.
	W        [3]float64
	Normal   mgl64.Vec3
	Distance float64
}

// BroadPhase buckets the vertices and streams the (vertex, triangle) pairs whose
// boxes overlap within margin.
func BroadPhase(grid *SpatialGrid, faces []mesh.Face, x []mgl64.Vec3, margin float64, workersCount int) <-chan Pair {
	workersCount = max(1, workersCount)
	grid.Build(x, workersCount)

	return grid.FindPairsParallel(faces, x, margin, workersCount)
}

// NarrowPhase keeps the pairs closer than thickness, sorted by (vertex, triangle).
func NarrowPhase(pairs <-chan Pair, faces []mesh.Face, x []mgl64.Vec3, thickness float64, workersCount int) []selfContact {
	workersCount = max(1, workersCount)
	contactsChan := make(chan selfContact, workersCount*2)

	go func() {
		var wg sync.WaitGroup
		defer close(contactsChan)

		for range workersCount {
			wg.Add(1)
			go func() {
				defer wg.Done()

				for p := range pairs {
					f := faces[p.Triangle].V
					q, w := closestPointTriangle(x[p.Vertex], x[f[0]], x[f[1]], x[f[2]])
					d := x[p.Vertex].Sub(q)
					dist := d.Len()
					if dist >= thickness {
						continue
					}

					n := mesh.FaceNormal(x[f[0]], x[f[1]], x[f[2]])
					if dist > 1e-12 {
						n = d.Mul(1 / dist)
					}
					if n.LenSqr() == 0 {
						continue
					}
					contactsChan <- selfContact{Vertex: p.Vertex, Triangle: p.Triangle, W: w, Normal: n, Distance: dist}
				}
			}()
		}

		wg.Wait()
	}()

	contacts := make([]selfContact, 0)
	for c := range contactsChan {
		contacts = append(contacts, c)
	}
	slices.SortFunc(contacts, func(a, b selfContact) int {
		if c := cmp.Compare(a.Vertex, b.Vertex); c != 0 {
			return c
		}
		return cmp.Compare(a.Triangle, b.Triangle)
	})
	return contacts
}

// closestPointTriangle returns the point of triangle abc closest to p and its
// barycentric weights, by Voronoi region.
func closestPointTriangle(p, a, b, c mgl64.Vec3) (mgl64.Vec3, [3]float64) {
	ab, ac, ap := b.Sub(a), c.Sub(a), p.Sub(a)
	d1, d2 := ab.Dot(ap), ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a, [3]float64{1, 0, 0}
	}

	bp := p.Sub(b)
	d3, d4 := ab.Dot(bp), ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b, [3]float64{0, 1, 0}
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.Mul(v)), [3]float64{1 - v, v, 0}
	}

	cp := p.Sub(c)
	d5, d6 := ab.Dot(cp), ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c, [3]float64{0, 0, 1}
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.Mul(w)), [3]float64{1 - w, 0, w}
	}

	va := d3*d6 - d5*d4
	if va <= 0 && d4-d3 >= 0 && d5-d6 >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).Mul(w)), [3]float64{0, 1 - w, w}
	}

	denom := va + vb + vc
	if denom == 0 {
		// degenerate triangle
		return a, [3]float64{1, 0, 0}
	}
	v, w := vb/denom, vc/denom
	return a.Add(ab.Mul(v)).Add(ac.Mul(w)), [3]float64{1 - v - w, v, w}
}

// detectSelfContacts runs both phases on positions x.
func (s *Sim) detectSelfContacts(x []mgl64.Vec3, thickness float64) []selfContact {
	if thickness <= 0 || len(s.topo.Faces) == 0 {
		return nil
	}
	workers := s.param.Workers
	cellSize := gridCellSize(x, s.param.SelfCollisionMaxGridSize, thickness)
	if s.grid == nil || s.grid.cellMask+1 != nextPowerOfTwo(2*len(x)) {
		s.grid = NewSpatialGrid(cellSize, 2*len(x))
	}
	s.grid.cellSize = cellSize

	return NarrowPhase(BroadPhase(s.grid, s.topo.Faces, x, thickness, workers), s.topo.Faces, x, thickness, workers)
}

// contactVerts returns the point and triangle vertices of a contact.
func (s *Sim) contactVerts(c selfContact) [4]int {
	f := s.topo.Faces[c.Triangle].V
	return [4]int{c.Vertex, f[0], f[1], f[2]}
}

// collideSelf folds vertex/triangle repulsion and friction into the diagonal
// blocks of the system. Contacts are found at the current positions, so the
// normal keeps the side the vertex comes from; the K·v term accounts for the
// motion during the step.
func (s *Sim) collideSelf() {
	p := s.param
	s.contacts = s.detectSelfContacts(s.x, p.RepulsionThickness)
	if len(s.contacts) == 0 {
		return
	}

	keys := make([]uint64, 4*len(s.contacts))
	for c, contact := range s.contacts {
		for k, v := range s.contactVerts(contact) {
			keys[4*c+k] = uint64(v)
		}
	}
	plan := sparse.BuildScatterPlan(keys)

	blocks := make([]mgl64.Mat3, len(keys))
	rhs := make([]mgl64.Vec3, len(keys))
	parallel.For(p.Workers, len(s.contacts), func(c int) {
		contact := s.contacts[c]
		verts := s.contactVerts(contact)
		f, kd, ok := energy.VertexTriangle(contact.Distance, p.RepulsionThickness, contact.Normal, contact.W, p.CollisionStiffness)
		if !ok {
			return
		}
		friction := energy.Friction(contact.Normal, p.FrictionStiffness)
		coef := [4]float64{1, contact.W[0], contact.W[1], contact.W[2]}
		for k := range verts {
			jac := kd[k].Add(friction.Mul(coef[k] * coef[k]))
			blocks[4*c+k] = jac.Mul(-1)
			rhs[4*c+k] = f[k].Mul(1 / p.Dt).Add(jac.Mul3x1(s.v[verts[k]]))
		}
	})

	// accumulate on top of the assembled diagonal of every touched vertex
	diag := make([]mgl64.Mat3, plan.NumUnique())
	diagRHS := make([]mgl64.Vec3, plan.NumUnique())
	parallel.For(p.Workers, plan.NumUnique(), func(u int) {
		v := int(plan.Keys[u])
		diag[u] = s.a.Blocks[s.a.DiagIdx[v]]
		diagRHS[u] = s.rhs[v]
	})
	sparse.GatherAdd(plan, p.Workers, blocks, diag, mgl64.Mat3.Add)
	sparse.GatherAdd(plan, p.Workers, rhs, diagRHS, mgl64.Vec3.Add)
	parallel.For(p.Workers, plan.NumUnique(), func(u int) {
		v := int(plan.Keys[u])
		s.a.Blocks[s.a.DiagIdx[v]] = diag[u]
		s.rhs[v] = diagRHS[u]
	})
}

// projectOutside moves vertices out of the self collision thickness, then out
// of the body shell. The body pass runs last so its bound holds exactly, and
// runs whenever a body is set: with a zero thickness it still lifts every
// vertex back onto the surface. Pinned vertices are never moved.
func (s *Sim) projectOutside() {
	p := s.param
	if p.EnableSelfCollision && p.ProjectionThickness > 0 {
		s.projectSelf(p.ProjectionThickness)
	}
	if s.body != nil {
		s.projectBody(math.Max(p.ProjectionThickness, 0))
	}
}

func (s *Sim) projectSelf(thickness float64) {
	contacts := s.detectSelfContacts(s.x, thickness)
	if len(contacts) == 0 {
		return
	}

	keys := make([]uint64, 4*len(contacts))
	for c, contact := range contacts {
		for k, v := range s.contactVerts(contact) {
			keys[4*c+k] = uint64(v)
		}
	}
	plan := sparse.BuildScatterPlan(keys)

	moves := make([]mgl64.Vec3, len(keys))
	parallel.For(s.param.Workers, len(contacts), func(c int) {
		contact := contacts[c]
		verts := s.contactVerts(contact)
		coef := [4]float64{1, -contact.W[0], -contact.W[1], -contact.W[2]}
		var norm float64
		for k, v := range verts {
			if !s.pinned[v] {
				norm += coef[k] * coef[k]
			}
		}
		if norm == 0 {
			return
		}
		depth := thickness - contact.Distance
		for k, v := range verts {
			if !s.pinned[v] {
				moves[4*c+k] = contact.Normal.Mul(depth * coef[k] / norm)
			}
		}
	})

	moved := make([]mgl64.Vec3, plan.NumUnique())
	parallel.For(s.param.Workers, plan.NumUnique(), func(u int) {
		moved[u] = s.x[plan.Keys[u]]
	})
	sparse.GatherAdd(plan, s.param.Workers, moves, moved, mgl64.Vec3.Add)
	parallel.For(s.param.Workers, plan.NumUnique(), func(u int) {
		s.x[plan.Keys[u]] = moved[u]
	})
}

func (s *Sim) projectBody(thickness float64) {
	parallel.For(s.param.Workers, len(s.x), func(i int) {
		if s.pinned[i] {
			return
		}
		for range bodyProjectionPasses {
			phi, n := s.body.Sample(s.x[i])
			if phi >= thickness || n.LenSqr() == 0 {
				return
			}
			s.x[i] = s.x[i].Add(n.Mul(thickness - phi))
			// drop the velocity heading into the body
			if vn := s.v[i].Dot(n); vn < 0 {
				s.v[i] = s.v[i].Sub(n.Mul(vn))
			}
		}
	})
}

// sampleBody evaluates the body penalty of vertex i at its predicted position.
// It returns the force and the normal and friction Jacobians.
func (s *Sim) sampleBody(i int) (mgl64.Vec3, mgl64.Mat3, mgl64.Mat3, bool) {
	p := s.param
	pred := s.x[i].Add(s.v[i].Mul(p.Dt))
	phi, n := s.body.Sample(pred)
	if n.LenSqr() == 0 || math.IsNaN(phi) {
		return mgl64.Vec3{}, mgl64.Mat3{}, mgl64.Mat3{}, false
	}
	f, kn, ok := energy.Contact(phi, p.RepulsionThickness, n, p.CollisionStiffness)
	if !ok {
		return mgl64.Vec3{}, mgl64.Mat3{}, mgl64.Mat3{}, false
	}
	return f, kn, energy.Friction(n, p.FrictionStiffness), true
}
