package sparse

import (
	"slices"

	"github.com/akmonengine/weave/parallel"
	"github.com/go-gl/mathgl/mgl64"
)

// Matrix is an N×N matrix of 3×3 blocks in block compressed sparse row layout.
// The pattern (RowPtr, ColIdx, DiagIdx) is immutable once built and may be shared
// between matrices; only Blocks is written during assembly.
type Matrix struct {
	N       int
	RowPtr  []int
	ColIdx  []int
	DiagIdx []int
	Blocks  []mgl64.Mat3
}

// NewPattern builds a matrix from sorted unique pair keys (see PairKey).
// Missing diagonal blocks are reported with DiagIdx = -1.
func NewPattern(n int, keys []uint64) *Matrix {
	m := &Matrix{
		N:       n,
		RowPtr:  make([]int, n+1),
		ColIdx:  make([]int, len(keys)),
		DiagIdx: make([]int, n),
		Blocks:  make([]mgl64.Mat3, len(keys)),
	}
	for i := range m.DiagIdx {
		m.DiagIdx[i] = -1
	}
	for k, key := range keys {
		row, col := PairFromKey(key, n)
		m.RowPtr[row+1]++
		m.ColIdx[k] = col
		if row == col {
			m.DiagIdx[row] = k
		}
	}
	for r := 0; r < n; r++ {
		m.RowPtr[r+1] += m.RowPtr[r]
	}
	return m
}

// WithSamePattern returns a zeroed matrix sharing m's pattern.
func (m *Matrix) WithSamePattern() *Matrix {
	return &Matrix{
		N:       m.N,
		RowPtr:  m.RowPtr,
		ColIdx:  m.ColIdx,
		DiagIdx: m.DiagIdx,
		Blocks:  make([]mgl64.Mat3, len(m.Blocks)),
	}
}

// NNZ returns the number of stored blocks.
func (m *Matrix) NNZ() int {
	return len(m.Blocks)
}

// Index returns the block index of (row, col), or -1 if it is not in the pattern.
func (m *Matrix) Index(row, col int) int {
	cols := m.ColIdx[m.RowPtr[row]:m.RowPtr[row+1]]
	k, ok := slices.BinarySearch(cols, col)
	if !ok {
		return -1
	}
	return m.RowPtr[row] + k
}

// Block returns block (row, col), zero if absent.
func (m *Matrix) Block(row, col int) mgl64.Mat3 {
	if k := m.Index(row, col); k >= 0 {
		return m.Blocks[k]
	}
	return mgl64.Mat3{}
}

// MulVec computes y = m·x for flat vectors of length 3N. One worker per row range,
// so rows are written by a single goroutine.
func (m *Matrix) MulVec(workers int, x, y []float64) {
	parallel.Range(workers, m.N, func(start, end int) {
		for r := start; r < end; r++ {
			var acc mgl64.Vec3
			for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
				c := m.ColIdx[k]
				acc = acc.Add(m.Blocks[k].Mul3x1(mgl64.Vec3{x[3*c], x[3*c+1], x[3*c+2]}))
			}
			y[3*r], y[3*r+1], y[3*r+2] = acc[0], acc[1], acc[2]
		}
	})
}

// IsSymmetric reports whether block (i,j) equals block (j,i) transposed, within eps,
// for every stored block.
func (m *Matrix) IsSymmetric(eps float64) bool {
	for r := 0; r < m.N; r++ {
		for k := m.RowPtr[r]; k < m.RowPtr[r+1]; k++ {
			t := m.Index(m.ColIdx[k], r)
			if t < 0 {
				return false
			}
			if !m.Blocks[k].ApproxEqualThreshold(m.Blocks[t].Transpose(), eps) {
				return false
			}
		}
	}
	return true
}
