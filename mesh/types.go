// Package mesh builds the static structures of a cloth mesh: bend edges and
// adjacency from faces, stitch constraints and the vertex merge map, and the per
// face / per vertex material records.
package mesh

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
)

// NoFace marks the missing second face of a boundary edge.
const NoFace = -1

var (
	ErrTopology = errors.New("mesh: inconsistent topology")
	ErrStitch   = errors.New("mesh: invalid stitch")
	ErrMaterial = errors.New("mesh: invalid material")
)

// Face is a triangle in world (simulation) space. Piece is the index of the
// cloth piece owning it.
type Face struct {
	V     [3]int
	Piece int
}

// TexFace is the same triangle in texture (material) space. VertStart is the
// index of the first texture vertex of the owning piece.
type TexFace struct {
	V         [3]int
	VertStart int
}

//	     c
//	     /\
//	    /  \
//	  a ---- b
//	    \  /
//	     \/
//	     d
//
// edge ab, wings c (face abc) and d (face bad).

// EdgeData describes one undirected edge. For bend edges Verts is (a, b, c, d) as
// above; for boundary edges Faces[1] is NoFace and Verts[3] is -1. Stitch edges
// reuse the record with Verts[0..1] set and Faces both NoFace.
type EdgeData struct {
	Verts    [4]int
	TexVerts [2][2]int // tex indices of (a, b) seen from each face
	Faces    [2]int
	// RestLengthSqr is the squared tex-space length of the edge on each side.
	// Stitch edges store their initial squared length in [0].
	RestLengthSqr [2]float64
	// ThetaUV is the direction of the edge in uv space on each side.
	ThetaUV         [2]float64
	IdealDihedral   float64
	InitialDihedral float64
}

// HasBend reports whether the edge carries a bending term.
func (e EdgeData) HasBend() bool {
	return e.Faces[0] != NoFace && e.Faces[1] != NoFace
}

// StitchPair asks for vertices A and B to be sewn together.
type StitchPair struct {
	A, B int
}

// Canonical returns the pair with A <= B.
func (p StitchPair) Canonical() StitchPair {
	if p.B < p.A {
		return StitchPair{A: p.B, B: p.A}
	}
	return p
}

// Triangle returns the world positions of a face.
func (f Face) Triangle(x []mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	return x[f.V[0]], x[f.V[1]], x[f.V[2]]
}
