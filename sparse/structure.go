package sparse

// Slots per source in the matrix scratch buffer (full blocks, both triangles).
const (
	FaceBlocks   = 9
	BendBlocks   = 16
	StitchBlocks = 4
	NodeBlocks   = 1
)

// Slots per source in the right-hand side scratch buffer.
const (
	FaceRHS   = 3
	BendRHS   = 4
	StitchRHS = 2
	NodeRHS   = 1
)

// Structure is the assembly layout for one topology: the matrix pattern plus the
// scatter plans reducing per-element contributions into matrix blocks and RHS
// entries. It is built once per topology/stitch change and never mutated.
//
// Scratch layout (matrix): [faces×9][bends×16][stitches×4][vertices×1],
// element e's local block (l, m) lives at offset + e·k² + l·k + m.
// Scratch layout (RHS): [faces×3][bends×4][stitches×2][vertices×1].
type Structure struct {
	N           int
	NumFaces    int
	NumBends    int
	NumStitches int

	Pattern *Matrix
	A       *ScatterPlan
	B       *ScatterPlan
}

// BuildStructure enumerates every (vertex, vertex) interaction of the given
// elements and builds the plans. Each vertex always receives a diagonal block.
func BuildStructure(n int, faces [][3]int, bends [][4]int, stitches [][2]int) *Structure {
	s := &Structure{
		N:           n,
		NumFaces:    len(faces),
		NumBends:    len(bends),
		NumStitches: len(stitches),
	}

	aKeys := make([]uint64, 0, s.NumBlockSlots())
	bKeys := make([]uint64, 0, s.NumRHSSlots())
	for _, f := range faces {
		aKeys = appendPairs(aKeys, f[:], n)
		bKeys = appendVerts(bKeys, f[:])
	}
	for _, e := range bends {
		aKeys = appendPairs(aKeys, e[:], n)
		bKeys = appendVerts(bKeys, e[:])
	}
	for _, st := range stitches {
		aKeys = appendPairs(aKeys, st[:], n)
		bKeys = appendVerts(bKeys, st[:])
	}
	for v := 0; v < n; v++ {
		aKeys = append(aKeys, PairKey(v, v, n))
		bKeys = append(bKeys, uint64(v))
	}

	s.A = BuildScatterPlan(aKeys)
	s.B = BuildScatterPlan(bKeys)
	s.Pattern = NewPattern(n, s.A.Keys)

	return s
}

func appendPairs(keys []uint64, verts []int, n int) []uint64 {
	for _, r := range verts {
		for _, c := range verts {
			keys = append(keys, PairKey(r, c, n))
		}
	}
	return keys
}

func appendVerts(keys []uint64, verts []int) []uint64 {
	for _, v := range verts {
		keys = append(keys, uint64(v))
	}
	return keys
}

// NumBlockSlots returns the size of the matrix scratch buffer.
func (s *Structure) NumBlockSlots() int {
	return s.NumFaces*FaceBlocks + s.NumBends*BendBlocks + s.NumStitches*StitchBlocks + s.N*NodeBlocks
}

// NumRHSSlots returns the size of the RHS scratch buffer.
func (s *Structure) NumRHSSlots() int {
	return s.NumFaces*FaceRHS + s.NumBends*BendRHS + s.NumStitches*StitchRHS + s.N*NodeRHS
}

// FaceBlockSlot returns the matrix scratch slot of local block (l, m) of face f.
func (s *Structure) FaceBlockSlot(f, l, m int) int {
	return f*FaceBlocks + l*3 + m
}

// BendBlockSlot returns the matrix scratch slot of local block (l, m) of bend e.
func (s *Structure) BendBlockSlot(e, l, m int) int {
	return s.NumFaces*FaceBlocks + e*BendBlocks + l*4 + m
}

// StitchBlockSlot returns the matrix scratch slot of local block (l, m) of stitch e.
func (s *Structure) StitchBlockSlot(e, l, m int) int {
	return s.NumFaces*FaceBlocks + s.NumBends*BendBlocks + e*StitchBlocks + l*2 + m
}

// NodeBlockSlot returns the matrix scratch slot of the diagonal term of vertex v.
func (s *Structure) NodeBlockSlot(v int) int {
	return s.NumFaces*FaceBlocks + s.NumBends*BendBlocks + s.NumStitches*StitchBlocks + v
}

// FaceRHSSlot returns the RHS scratch slot of local vertex l of face f.
func (s *Structure) FaceRHSSlot(f, l int) int {
	return f*FaceRHS + l
}

// BendRHSSlot returns the RHS scratch slot of local vertex l of bend e.
func (s *Structure) BendRHSSlot(e, l int) int {
	return s.NumFaces*FaceRHS + e*BendRHS + l
}

// StitchRHSSlot returns the RHS scratch slot of local vertex l of stitch e.
func (s *Structure) StitchRHSSlot(e, l int) int {
	return s.NumFaces*FaceRHS + s.NumBends*BendRHS + e*StitchRHS + l
}

// NodeRHSSlot returns the RHS scratch slot of vertex v.
func (s *Structure) NodeRHSSlot(v int) int {
	return s.NumFaces*FaceRHS + s.NumBends*BendRHS + s.NumStitches*StitchRHS + v
}
