package mesh

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/multierr"
)

func TestBuildTopologyEdges(t *testing.T) {
	tests := []struct {
		name      string
		n         int
		edges     int
		bends     int
		boundary  int
	}{
		{"single quad", 1, 5, 1, 4},
		{"2x2", 2, 16, 8, 8},
		{"5x5", 5, 85, 65, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, uv, faces, tex := squareMesh(tt.n, 1)
			topo, err := BuildTopology(x, uv, faces, tex)
			if err != nil {
				t.Fatal(err)
			}
			if len(topo.Edges) != tt.edges {
				t.Errorf("edges = %d, want %d", len(topo.Edges), tt.edges)
			}
			if len(topo.Bends) != tt.bends {
				t.Errorf("bends = %d, want %d", len(topo.Bends), tt.bends)
			}

			boundary := 0
			seen := map[[2]int]int{}
			for _, e := range topo.Edges {
				seen[edgeKey(e.Verts[0], e.Verts[1])]++
				if !e.HasBend() {
					boundary++
					if e.Faces[1] != NoFace || e.Verts[3] != -1 {
						t.Errorf("boundary edge %v lacks the sentinel", e)
					}
				}
			}
			if boundary != tt.boundary {
				t.Errorf("boundary = %d, want %d", boundary, tt.boundary)
			}
			for key, count := range seen {
				if count != 1 {
					t.Errorf("edge %v listed %d times", key, count)
				}
			}
			if topo.NonManifoldEdges != 0 {
				t.Errorf("non-manifold = %d", topo.NonManifoldEdges)
			}
		})
	}
}

func TestBendRecordsFlatMesh(t *testing.T) {
	x, uv, faces, tex := squareMesh(3, 1.5)
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range topo.Bends {
		e := topo.Edges[b]
		if math.Abs(e.InitialDihedral) > 1e-12 {
			t.Errorf("flat mesh edge %v has dihedral %g", e.Verts, e.InitialDihedral)
		}
		want := x[e.Verts[0]].Sub(x[e.Verts[1]]).LenSqr()
		for side := 0; side < 2; side++ {
			if math.Abs(e.RestLengthSqr[side]-want) > 1e-12 {
				t.Errorf("rest length² side %d = %g, want %g", side, e.RestLengthSqr[side], want)
			}
		}
		// wings lie in their own faces
		for side, wing := range []int{e.Verts[2], e.Verts[3]} {
			f := topo.Faces[e.Faces[side]].V
			if f[0] != wing && f[1] != wing && f[2] != wing {
				t.Errorf("wing %d not in face %v", wing, f)
			}
		}
	}
}

func TestVertexFaces(t *testing.T) {
	x, uv, faces, tex := squareMesh(2, 1)
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	// the center vertex of a 2x2 grid touches 6 triangles with this split
	if got := len(topo.IncidentFaces(4)); got != 6 {
		t.Errorf("center incident faces = %d, want 6", got)
	}
	total := 0
	for v := 0; v < topo.NumVerts; v++ {
		for _, f := range topo.IncidentFaces(v) {
			fv := topo.Faces[f].V
			if fv[0] != v && fv[1] != v && fv[2] != v {
				t.Errorf("face %d listed for vertex %d", f, v)
			}
		}
		total += len(topo.IncidentFaces(v))
	}
	if total != 3*len(faces) {
		t.Errorf("adjacency holds %d entries, want %d", total, 3*len(faces))
	}
}

func TestNonManifoldEdge(t *testing.T) {
	x := []mgl64.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}}
	uv := []mgl64.Vec2{{0, 0}, {1, 0}, {0, 1}, {0, -1}, {0.5, 0.5}}
	faces := []Face{{V: [3]int{0, 1, 2}}, {V: [3]int{1, 0, 3}}, {V: [3]int{0, 1, 4}}}
	tex := []TexFace{{V: [3]int{0, 1, 2}}, {V: [3]int{1, 0, 3}}, {V: [3]int{0, 1, 4}}}
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	if topo.NonManifoldEdges != 1 {
		t.Errorf("non-manifold = %d, want 1", topo.NonManifoldEdges)
	}
	e := topo.Edges[0]
	if e.Verts != [4]int{0, 1, 2, 3} {
		t.Errorf("shared edge = %v, want bend between the first two faces", e.Verts)
	}
}

func TestBuildTopologyErrors(t *testing.T) {
	x, uv, faces, tex := squareMesh(1, 1)
	tests := []struct {
		name   string
		faces  []Face
		tex    []TexFace
		errors int
	}{
		{"count mismatch", faces, tex[:1], 1},
		{"world out of range", []Face{{V: [3]int{0, 1, 9}}}, tex[:1], 1},
		{"tex and world out of range", []Face{{V: [3]int{-1, 1, 2}}}, []TexFace{{V: [3]int{0, 7, 2}}}, 2},
		{"repeated vertex", []Face{{V: [3]int{0, 0, 2}}}, tex[:1], 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildTopology(x, uv, tt.faces, tt.tex)
			if !errors.Is(err, ErrTopology) {
				t.Fatalf("got %v, want ErrTopology", err)
			}
			if got := len(multierr.Errors(err)); got != tt.errors {
				t.Errorf("reported %d problems, want %d: %v", got, tt.errors, err)
			}
		})
	}
}

func TestDihedralAngleSign(t *testing.T) {
	a, b := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}
	c := mgl64.Vec3{0.5, 1, 0}
	tests := []struct {
		name string
		d    mgl64.Vec3
		want float64
	}{
		{"flat", mgl64.Vec3{0.5, -1, 0}, 0},
		{"fold up", mgl64.Vec3{0.5, -1, 1}, math.Pi / 4},
		{"fold down", mgl64.Vec3{0.5, -1, -1}, -math.Pi / 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DihedralAngle(a, b, c, tt.d); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
	if got := DihedralAngle(a, a, c, c); got != 0 {
		t.Errorf("degenerate edge gives %g", got)
	}
}

func TestDumpEdgeData(t *testing.T) {
	x, uv, faces, tex := squareMesh(1, 1)
	topo, err := BuildTopology(x, uv, faces, tex)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := DumpEdgeData(&buf, "quad", topo.Edges); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1+len(topo.Edges) || !strings.HasPrefix(lines[0], "quad: 5 edges") {
		t.Errorf("unexpected dump:\n%s", buf.String())
	}
}
