package mesh

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

// DisjointSet is a union-find over vertex indices with path compression and
// union by size.
type DisjointSet struct {
	parent []int
	size   []int
}

func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{parent: make([]int, n), size: make([]int, n)}
	for i := range ds.parent {
		ds.parent[i] = i
		ds.size[i] = 1
	}
	return ds
}

// Find returns the representative of v.
func (ds *DisjointSet) Find(v int) int {
	root := v
	for ds.parent[root] != root {
		root = ds.parent[root]
	}
	for ds.parent[v] != root {
		ds.parent[v], v = root, ds.parent[v]
	}
	return root
}

// Union merges the sets of a and b and reports whether they were distinct.
func (ds *DisjointSet) Union(a, b int) bool {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return false
	}
	if ds.size[ra] < ds.size[rb] {
		ra, rb = rb, ra
	}
	ds.parent[rb] = ra
	ds.size[ra] += ds.size[rb]
	return true
}

// Stitch is the result of sewing: the in→out vertex map and the remaining
// shrinking springs, expressed in output (merged) indices.
type Stitch struct {
	// MergeMap maps every input vertex to its simulation vertex. Merged vertices
	// share an output index; output indices are ordered by smallest member.
	MergeMap []int
	// NumMerged is the number of simulation vertices.
	NumMerged int
	// Edges are the stitch springs. Verts[0..1] are simulation indices and
	// RestLengthSqr[0] is the squared length when the stitch was built.
	Edges []EdgeData
	// Pairs holds the input pair behind each edge.
	Pairs []StitchPair
}

// BuildStitch validates pairs, merges every pair already closer than
// mergeDistance (transitively) and turns the others into springs.
//
// A spring starts at the current length of its pair, or at rest[pair] when
// that is shorter, so rest lengths carried over from a previous build never
// grow. Pairs landing on the same spring keep the shortest rest length.
func BuildStitch(nVerts int, pairs []StitchPair, positions []mgl64.Vec3, mergeDistance float64, rest map[StitchPair]float64) (*Stitch, error) {
	var err error
	for i, p := range pairs {
		if p.A < 0 || p.A >= nVerts || p.B < 0 || p.B >= nVerts {
			err = multierr.Append(err, fmt.Errorf("%w: pair %d (%d, %d) out of range [0,%d)", ErrStitch, i, p.A, p.B, nVerts))
			continue
		}
		if p.A == p.B {
			err = multierr.Append(err, fmt.Errorf("%w: pair %d stitches vertex %d to itself", ErrStitch, i, p.A))
		}
	}
	if err != nil {
		return nil, err
	}
	if len(positions) != nVerts {
		return nil, fmt.Errorf("%w: %d positions for %d vertices", ErrStitch, len(positions), nVerts)
	}

	ds := NewDisjointSet(nVerts)
	for _, p := range pairs {
		if positions[p.A].Sub(positions[p.B]).Len() <= mergeDistance {
			ds.Union(p.A, p.B)
		}
	}

	s := &Stitch{MergeMap: make([]int, nVerts)}
	rootOut := make(map[int]int)
	for v := 0; v < nVerts; v++ {
		root := ds.Find(v)
		out, ok := rootOut[root]
		if !ok {
			out = s.NumMerged
			rootOut[root] = out
			s.NumMerged++
		}
		s.MergeMap[v] = out
	}

	seen := make(map[[2]int]int)
	for _, p := range pairs {
		a, b := s.MergeMap[p.A], s.MergeMap[p.B]
		if a == b {
			continue
		}

		length := positions[p.A].Sub(positions[p.B]).Len()
		if r, ok := rest[p.Canonical()]; ok {
			length = math.Min(length, math.Max(r, 0))
		}
		l := length * length

		key := edgeKey(a, b)
		if e, ok := seen[key]; ok {
			if l < s.Edges[e].RestLengthSqr[0] {
				s.Edges[e].RestLengthSqr = [2]float64{l, l}
			}
			continue
		}
		seen[key] = len(s.Edges)

		s.Edges = append(s.Edges, EdgeData{
			Verts:         [4]int{a, b, -1, -1},
			TexVerts:      [2][2]int{{-1, -1}, {-1, -1}},
			Faces:         [2]int{NoFace, NoFace},
			RestLengthSqr: [2]float64{l, l},
		})
		s.Pairs = append(s.Pairs, p)
	}

	return s, nil
}

// RestLength returns the rest length of stitch edge e after shrinking by
// shrink = ratio·elapsed time. It never goes below zero.
func (s *Stitch) RestLength(e int, shrink float64) float64 {
	return math.Max(0, math.Sqrt(s.Edges[e].RestLengthSqr[0])-shrink)
}

// RestLengths returns the rest length of every spring after shrink, keyed by
// the canonical pair behind it. It seeds the next BuildStitch.
func (s *Stitch) RestLengths(shrink float64) map[StitchPair]float64 {
	out := make(map[StitchPair]float64, len(s.Edges))
	for e, p := range s.Pairs {
		out[p.Canonical()] = s.RestLength(e, shrink)
	}
	return out
}

// EdgeIndices returns the (a, b) simulation vertices of every stitch edge.
func (s *Stitch) EdgeIndices() [][2]int {
	out := make([][2]int, len(s.Edges))
	for i, e := range s.Edges {
		out[i] = [2]int{e.Verts[0], e.Verts[1]}
	}
	return out
}

// Members returns the input vertices merged into each simulation vertex.
func (s *Stitch) Members() [][]int {
	out := make([][]int, s.NumMerged)
	for v, o := range s.MergeMap {
		out[o] = append(out[o], v)
	}
	return out
}

// RemapFaces rewrites world faces through the merge map. Faces collapsing to a
// repeated vertex are dropped together with their texture face; kept lists the
// input index of every face returned.
func (s *Stitch) RemapFaces(faces []Face, texFaces []TexFace) (outF []Face, outT []TexFace, kept []int) {
	outF = make([]Face, 0, len(faces))
	outT = make([]TexFace, 0, len(texFaces))
	kept = make([]int, 0, len(faces))
	for i, f := range faces {
		g := f
		for k := range g.V {
			g.V[k] = s.MergeMap[f.V[k]]
		}
		if g.V[0] == g.V[1] || g.V[1] == g.V[2] || g.V[0] == g.V[2] {
			continue
		}
		outF = append(outF, g)
		kept = append(kept, i)
		if i < len(texFaces) {
			outT = append(outT, texFaces[i])
		}
	}
	return slices.Clip(outF), slices.Clip(outT), kept
}
