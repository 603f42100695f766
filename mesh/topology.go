package mesh

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

// Topology is the immutable adjacency of a triangle mesh.
type Topology struct {
	NumVerts int
	Faces    []Face
	TexFaces []TexFace
	// Edges holds every undirected edge once, sorted by (min, max) vertex index.
	Edges []EdgeData
	// Bends indexes the edges of Edges that have two faces.
	Bends []int
	// VertexFaces lists the faces incident to each vertex in CSR form:
	// faces of v are VertexFaceList[VertexFaceStart[v]:VertexFaceStart[v+1]].
	VertexFaceStart []int
	VertexFaceList  []int
	// NonManifoldEdges counts edges shared by more than two faces. Only the
	// first two faces of such edges bend.
	NonManifoldEdges int
}

type halfEdge struct {
	face  int
	local int // edge from V[local] to V[local+1]
}

// BuildTopology validates the world/texture face lists and derives edges, bend
// records and vertex adjacency. All validation problems are reported together.
func BuildTopology(positions []mgl64.Vec3, texCoords []mgl64.Vec2, faces []Face, texFaces []TexFace) (*Topology, error) {
	if err := ValidateFaces(len(positions), len(texCoords), faces, texFaces); err != nil {
		return nil, err
	}

	t := &Topology{
		NumVerts: len(positions),
		Faces:    slices.Clone(faces),
		TexFaces: slices.Clone(texFaces),
	}

	edges := make(map[[2]int][]halfEdge, len(faces)*3/2)
	for f, face := range faces {
		for k := 0; k < 3; k++ {
			key := edgeKey(face.V[k], face.V[(k+1)%3])
			edges[key] = append(edges[key], halfEdge{face: f, local: k})
		}
	}

	keys := make([][2]int, 0, len(edges))
	for key := range edges {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b [2]int) int {
		if c := cmp.Compare(a[0], b[0]); c != 0 {
			return c
		}
		return cmp.Compare(a[1], b[1])
	})

	t.Edges = make([]EdgeData, 0, len(keys))
	for _, key := range keys {
		hs := edges[key]
		if len(hs) > 2 {
			t.NonManifoldEdges++
		}
		e := t.buildEdge(positions, texCoords, hs)
		if e.HasBend() {
			t.Bends = append(t.Bends, len(t.Edges))
		}
		t.Edges = append(t.Edges, e)
	}

	t.buildVertexFaces()

	return t, nil
}

// ValidateFaces checks that the world and texture faces match and index
// existing vertices. Every problem is reported.
func ValidateFaces(nVerts, nTex int, faces []Face, texFaces []TexFace) error {
	if len(faces) != len(texFaces) {
		return fmt.Errorf("%w: %d world faces but %d texture faces", ErrTopology, len(faces), len(texFaces))
	}

	var err error
	for f := range faces {
		w, tx := faces[f].V, texFaces[f].V
		for k := 0; k < 3; k++ {
			if w[k] < 0 || w[k] >= nVerts {
				err = multierr.Append(err, fmt.Errorf("%w: face %d vertex %d out of range [0,%d)", ErrTopology, f, w[k], nVerts))
			}
			if tx[k] < 0 || tx[k] >= nTex {
				err = multierr.Append(err, fmt.Errorf("%w: tex face %d vertex %d out of range [0,%d)", ErrTopology, f, tx[k], nTex))
			}
		}
		if w[0] == w[1] || w[1] == w[2] || w[0] == w[2] {
			err = multierr.Append(err, fmt.Errorf("%w: face %d repeats a vertex %v", ErrTopology, f, w))
		}
	}
	return err
}

func edgeKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func (t *Topology) buildEdge(x []mgl64.Vec3, uv []mgl64.Vec2, hs []halfEdge) EdgeData {
	h0 := hs[0]
	f0, tf0 := t.Faces[h0.face].V, t.TexFaces[h0.face].V
	a, b, c := f0[h0.local], f0[(h0.local+1)%3], f0[(h0.local+2)%3]
	ta, tb := tf0[h0.local], tf0[(h0.local+1)%3]

	e := EdgeData{
		Verts:    [4]int{a, b, c, -1},
		TexVerts: [2][2]int{{ta, tb}, {ta, tb}},
		Faces:    [2]int{h0.face, NoFace},
	}
	e.RestLengthSqr[0], e.ThetaUV[0] = uvEdge(uv[ta], uv[tb])
	e.RestLengthSqr[1], e.ThetaUV[1] = e.RestLengthSqr[0], e.ThetaUV[0]

	if len(hs) < 2 {
		return e
	}

	h1 := hs[1]
	f1, tf1 := t.Faces[h1.face].V, t.TexFaces[h1.face].V
	p, d := f1[h1.local], f1[(h1.local+2)%3]
	// local positions of a and b in the second face
	la, lb := h1.local, (h1.local+1)%3
	if p != a {
		la, lb = lb, la
	}

	e.Verts[3] = d
	e.Faces[1] = h1.face
	e.TexVerts[1] = [2]int{tf1[la], tf1[lb]}
	e.RestLengthSqr[1], e.ThetaUV[1] = uvEdge(uv[tf1[la]], uv[tf1[lb]])
	e.IdealDihedral = 0
	e.InitialDihedral = DihedralAngle(x[a], x[b], x[c], x[d])

	return e
}

func uvEdge(ua, ub mgl64.Vec2) (lengthSqr, theta float64) {
	d := ub.Sub(ua)
	return d.LenSqr(), math.Atan2(d.Y(), d.X())
}

func (t *Topology) buildVertexFaces() {
	t.VertexFaceStart = make([]int, t.NumVerts+1)
	for _, f := range t.Faces {
		for _, v := range f.V {
			t.VertexFaceStart[v+1]++
		}
	}
	for v := 0; v < t.NumVerts; v++ {
		t.VertexFaceStart[v+1] += t.VertexFaceStart[v]
	}

	t.VertexFaceList = make([]int, t.VertexFaceStart[t.NumVerts])
	fill := slices.Clone(t.VertexFaceStart[:t.NumVerts])
	for f, face := range t.Faces {
		for _, v := range face.V {
			t.VertexFaceList[fill[v]] = f
			fill[v]++
		}
	}
}

// IncidentFaces returns the faces touching vertex v.
func (t *Topology) IncidentFaces(v int) []int {
	return t.VertexFaceList[t.VertexFaceStart[v]:t.VertexFaceStart[v+1]]
}

// FaceIndices returns the world vertex triples of all faces.
func (t *Topology) FaceIndices() [][3]int {
	out := make([][3]int, len(t.Faces))
	for i, f := range t.Faces {
		out[i] = f.V
	}
	return out
}

// BendIndices returns the four vertices of every bend edge, in Bends order.
func (t *Topology) BendIndices() [][4]int {
	out := make([][4]int, len(t.Bends))
	for i, e := range t.Bends {
		out[i] = t.Edges[e].Verts
	}
	return out
}
