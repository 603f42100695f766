package weave

import (
	"slices"
	"sort"
	"testing"

	"github.com/akmonengine/weave/mesh"
	"github.com/go-gl/mathgl/mgl64"
)

func TestWorldToCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16)

	tests := []struct {
		name     string
		position mgl64.Vec3
		expected CellKey
	}{
		{"origin", mgl64.Vec3{0, 0, 0}, CellKey{0, 0, 0}},
		{"positive", mgl64.Vec3{1.5, 2.3, 3.7}, CellKey{1, 2, 3}},
		{"negative", mgl64.Vec3{-1.5, -2.3, -3.7}, CellKey{-2, -3, -4}},
		{"fractional", mgl64.Vec3{0.5, 0.5, 0.5}, CellKey{0, 0, 0}},
		{"large", mgl64.Vec3{100.7, -200.3, 50.1}, CellKey{100, -201, 50}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.worldToCell(tt.position)
			if result != tt.expected {
				t.Errorf("worldToCell(%v) = %v, want %v", tt.position, result, tt.expected)
			}
		})
	}
}

func TestHashCell(t *testing.T) {
	grid := NewSpatialGrid(1.0, 16) // 16 buckets, mask = 15

	tests := []struct {
		name     string
		key      CellKey
		expected int
	}{
		{"origin", CellKey{0, 0, 0}, 0},
		{"simple", CellKey{1, 2, 3}, 6},
		{"negative", CellKey{-1, -2, -3}, 10},
		{"large", CellKey{100, 200, 300}, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := grid.hashCell(tt.key)
			if result < 0 || result > grid.cellMask {
				t.Errorf("hashCell(%v) = %d, out of range [0, %d]", tt.key, result, grid.cellMask)
			}
			if result != tt.expected {
				t.Errorf("hashCell(%v) = %d, want %d", tt.key, result, tt.expected)
			}
		})
	}
}

func TestNextPowerOfTwo(t *testing.T) {
	tests := []struct{ in, want int }{{-3, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 4}, {17, 32}, {1024, 1024}}
	for _, tt := range tests {
		if got := nextPowerOfTwo(tt.in); got != tt.want {
			t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGridCellSize(t *testing.T) {
	x := []mgl64.Vec3{{0, 0, 0}, {2, 1, 0.5}}
	tests := []struct {
		name      string
		maxGrid   int
		thickness float64
		want      float64
	}{
		{"grid bound", 4, 0.01, 0.5},
		{"thickness bound", 100, 0.1, 0.2},
		{"zero grid", 0, 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gridCellSize(x, tt.maxGrid, tt.thickness); got != tt.want {
				t.Errorf("got %g, want %g", got, tt.want)
			}
		})
	}
}

func TestBuildBuckets(t *testing.T) {
	grid := NewSpatialGrid(1.0, 64)
	x := []mgl64.Vec3{{0.5, 0.5, 0.5}, {5.5, 0, 0}, {0.2, 0.9, 0.1}, {-3, -3, -3}, {5.1, 0.3, 0.4}}
	grid.Build(x, 2)

	total := 0
	for b := 0; b <= grid.cellMask; b++ {
		bucket := grid.Bucket(b)
		if !sort.IntsAreSorted(bucket) {
			t.Errorf("bucket %d not sorted: %v", b, bucket)
		}
		for _, v := range bucket {
			if grid.hashCell(grid.worldToCell(x[v])) != b {
				t.Errorf("vertex %d in wrong bucket %d", v, b)
			}
		}
		total += len(bucket)
	}
	if total != len(x) {
		t.Errorf("buckets hold %d vertices, want %d", total, len(x))
	}

	same := grid.Bucket(grid.hashCell(CellKey{0, 0, 0}))
	if !slices.Contains(same, 0) || !slices.Contains(same, 2) {
		t.Errorf("vertices 0 and 2 share a cell, bucket = %v", same)
	}
}

func collectPairs(ch <-chan Pair) []Pair {
	var pairs []Pair
	for p := range ch {
		pairs = append(pairs, p)
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		return compareContactKeys(contactKey{a.Vertex, a.Triangle}, contactKey{b.Vertex, b.Triangle})
	})
	return pairs
}

func TestFindPairsParallel(t *testing.T) {
	x := []mgl64.Vec3{
		{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, // triangle 0
		{0.2, 0.05, 0.2}, // close above triangle 0
		{0.2, 3, 0.2},    // far above
		{5, 0, 5}, {6, 0, 5}, {5, 0, 6}, // triangle 1, far away
	}
	faces := []mesh.Face{{V: [3]int{0, 1, 2}}, {V: [3]int{5, 6, 7}}}

	tests := []struct {
		name    string
		workers int
	}{
		{"single worker", 1},
		{"more workers than faces", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			grid := NewSpatialGrid(gridCellSize(x, 8, 0.1), 2*len(x))
			grid.Build(x, tt.workers)
			pairs := collectPairs(grid.FindPairsParallel(faces, x, 0.1, tt.workers))

			want := []Pair{{Vertex: 3, Triangle: 0}}
			if !slices.Equal(pairs, want) {
				t.Errorf("pairs = %v, want %v", pairs, want)
			}
		})
	}
}

func TestFindPairsParallelNoFaces(t *testing.T) {
	grid := NewSpatialGrid(1, 4)
	grid.Build([]mgl64.Vec3{{0, 0, 0}}, 1)
	if pairs := collectPairs(grid.FindPairsParallel(nil, nil, 0.1, 2)); len(pairs) != 0 {
		t.Errorf("got %v", pairs)
	}
}
