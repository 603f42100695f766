package sparse

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// two triangles sharing edge 1-2, one bend, one stitch between 0 and 3
func quadStructure() *Structure {
	faces := [][3]int{{0, 1, 2}, {2, 1, 3}}
	bends := [][4]int{{1, 2, 0, 3}}
	stitches := [][2]int{{0, 3}}
	return BuildStructure(5, faces, bends, stitches)
}

func TestStructurePatternSymmetric(t *testing.T) {
	s := quadStructure()
	m := s.Pattern
	for r := 0; r < m.N; r++ {
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			if m.Index(m.ColIdx[k], r) < 0 {
				t.Errorf("(%d,%d) present but (%d,%d) missing", r, m.ColIdx[k], m.ColIdx[k], r)
			}
		}
	}
}

func TestStructureDiagonalAlwaysPresent(t *testing.T) {
	s := quadStructure()
	for v := 0; v < s.N; v++ {
		if s.Pattern.DiagIdx[v] < 0 {
			t.Errorf("vertex %d has no diagonal block", v)
		}
	}
	// vertex 4 is isolated: only its diagonal
	if got := s.Pattern.RowPtr[5] - s.Pattern.RowPtr[4]; got != 1 {
		t.Errorf("isolated vertex row has %d blocks, want 1", got)
	}
}

func TestStructureSlotCounts(t *testing.T) {
	s := quadStructure()
	if s.A.NumSlots() != s.NumBlockSlots() {
		t.Errorf("matrix slots = %d, want %d", s.A.NumSlots(), s.NumBlockSlots())
	}
	if s.B.NumSlots() != s.NumRHSSlots() {
		t.Errorf("rhs slots = %d, want %d", s.B.NumSlots(), s.NumRHSSlots())
	}
	if s.B.NumUnique() != s.N {
		t.Errorf("rhs unique = %d, want %d", s.B.NumUnique(), s.N)
	}
	// pairs: full 4x4 coupling among 0..3 (through the bend) + (4,4)
	if s.Pattern.NNZ() != 17 {
		t.Errorf("nnz = %d, want 17", s.Pattern.NNZ())
	}
	if s.NodeBlockSlot(4) != s.NumBlockSlots()-1 {
		t.Errorf("last node slot = %d, want %d", s.NodeBlockSlot(4), s.NumBlockSlots()-1)
	}
	if s.NodeRHSSlot(4) != s.NumRHSSlots()-1 {
		t.Errorf("last node rhs slot = %d, want %d", s.NodeRHSSlot(4), s.NumRHSSlots()-1)
	}
}

func TestStructureSlotsMapToTheirPair(t *testing.T) {
	faces := [][3]int{{0, 1, 2}, {2, 1, 3}}
	bends := [][4]int{{1, 2, 0, 3}}
	stitches := [][2]int{{0, 3}}
	s := BuildStructure(5, faces, bends, stitches)

	check := func(slot, row, col int) {
		t.Helper()
		key := s.A.Keys[s.A.Unique[slot]]
		r, c := PairFromKey(key, s.N)
		if r != row || c != col {
			t.Errorf("slot %d maps to (%d,%d), want (%d,%d)", slot, r, c, row, col)
		}
	}
	check(s.FaceBlockSlot(1, 0, 2), 2, 3)
	check(s.BendBlockSlot(0, 3, 2), 3, 0)
	check(s.StitchBlockSlot(0, 0, 1), 0, 3)
	check(s.NodeBlockSlot(4), 4, 4)

	if v := s.B.Keys[s.B.Unique[s.BendRHSSlot(0, 3)]]; v != 3 {
		t.Errorf("bend rhs slot maps to vertex %d, want 3", v)
	}
}

func TestMatrixMulVec(t *testing.T) {
	s := quadStructure()
	m := s.Pattern.WithSamePattern()
	for k := range m.Blocks {
		m.Blocks[k] = mgl64.Ident3().Mul(float64(k + 1))
	}

	x := make([]float64, 3*m.N)
	for i := range x {
		x[i] = float64(i) * 0.1
	}
	y := make([]float64, 3*m.N)
	m.MulVec(4, x, y)

	for r := 0; r < m.N; r++ {
		var want mgl64.Vec3
		for c := 0; c < m.N; c++ {
			b := m.Block(r, c)
			want = want.Add(b.Mul3x1(mgl64.Vec3{x[3*c], x[3*c+1], x[3*c+2]}))
		}
		for d := 0; d < 3; d++ {
			if math.Abs(y[3*r+d]-want[d]) > 1e-12 {
				t.Errorf("y[%d] = %v, want %v", 3*r+d, y[3*r+d], want[d])
			}
		}
	}
}

func TestMatrixIsSymmetric(t *testing.T) {
	s := quadStructure()
	m := s.Pattern.WithSamePattern()
	if !m.IsSymmetric(1e-12) {
		t.Fatal("zero matrix should be symmetric")
	}
	k := m.Index(0, 1)
	m.Blocks[k] = mgl64.Mat3{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if m.IsSymmetric(1e-12) {
		t.Error("matrix with unmatched off-diagonal block reported symmetric")
	}
	m.Blocks[m.Index(1, 0)] = m.Blocks[k].Transpose()
	if !m.IsSymmetric(1e-12) {
		t.Error("matrix with transposed pair reported asymmetric")
	}
}
