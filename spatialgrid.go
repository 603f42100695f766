package weave

import (
	"math"
	"sync"

	"github.com/akmonengine/weave/levelset"
	"github.com/akmonengine/weave/mesh"
	"github.com/akmonengine/weave/parallel"
	"github.com/akmonengine/weave/sparse"
	"github.com/go-gl/mathgl/mgl64"
)

// CellKey - coordinates of a cell in 3D space
type CellKey struct {
	X, Y, Z int
}

// Pair - a vertex that may touch a triangle
type Pair struct {
	Vertex   int
	Triangle int
}

// SpatialGrid - uniform hashed grid bucketing the cloth vertices. Vertices are
// sorted by bucket, so the vertices of bucket b are a contiguous range.
type SpatialGrid struct {
	cellSize float64
	cellMask int

	keys []uint64
	plan *sparse.ScatterPlan
}

// NewSpatialGrid - creates a grid of at least numCells buckets
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	return &SpatialGrid{
		cellSize: cellSize,
		cellMask: numCells - 1,
	}
}

// gridCellSize picks the cell size for positions x: the bounding box split in
// maxGridSize cells along its longest side, never below 2·thickness.
func gridCellSize(x []mgl64.Vec3, maxGridSize int, thickness float64) float64 {
	box := levelset.BoundsOf(x)
	size := box.Max.Sub(box.Min)
	extent := math.Max(size.X(), math.Max(size.Y(), size.Z()))
	return math.Max(extent/float64(max(maxGridSize, 1)), 2*thickness)
}

// nextPowerOfTwo - rounds up to the next power of two
func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}

// Build buckets every vertex and sorts the vertex ids by bucket.
func (sg *SpatialGrid) Build(x []mgl64.Vec3, workersCount int) {
	if cap(sg.keys) < len(x) {
		sg.keys = make([]uint64, len(x))
	}
	sg.keys = sg.keys[:len(x)]
	parallel.For(workersCount, len(x), func(i int) {
		sg.keys[i] = uint64(sg.hashCell(sg.worldToCell(x[i])))
	})
	sg.plan = sparse.BuildScatterPlan(sg.keys)
}

// Bucket returns the vertices hashed to bucket, in increasing id order.
func (sg *SpatialGrid) Bucket(bucket int) []int {
	u := sg.plan.Find(uint64(bucket))
	if u < 0 {
		return nil
	}
	start, end := sg.plan.Segment(u)
	return sg.plan.Order[start:end]
}

var bucketPool = sync.Pool{
	New: func() any {
		s := make([]int, 0, 64)
		return &s
	},
}

// FindPairsParallel - streams every (vertex, triangle) pair whose vertex lies in
// the triangle box grown by margin. A triangle never pairs with its own vertices.
func (sg *SpatialGrid) FindPairsParallel(faces []mesh.Face, x []mgl64.Vec3, margin float64, numWorkers int) <-chan Pair {
	var wg sync.WaitGroup
	pairsChan := make(chan Pair, numWorkers*64)

	facesPerWorker := (len(faces) + numWorkers - 1) / numWorkers
	if facesPerWorker == 0 {
		facesPerWorker = 1
	}

	for start := 0; start < len(faces); start += facesPerWorker {
		wg.Add(1)

		go func(start, end int) {
			defer wg.Done()

			visited := bucketPool.Get().(*[]int)
			defer bucketPool.Put(visited)

			for t := start; t < end; t++ {
				face := faces[t].V
				box := levelset.BoundsOf([]mgl64.Vec3{x[face[0]], x[face[1]], x[face[2]]}).Expand(margin)
				minCell := sg.worldToCell(box.Min)
				maxCell := sg.worldToCell(box.Max)

				*visited = (*visited)[:0]
				for cx := minCell.X; cx <= maxCell.X; cx++ {
					for cy := minCell.Y; cy <= maxCell.Y; cy++ {
						for cz := minCell.Z; cz <= maxCell.Z; cz++ {
							bucket := sg.hashCell(CellKey{cx, cy, cz})
							if containsInt(*visited, bucket) {
								continue
							}
							*visited = append(*visited, bucket)

							for _, v := range sg.Bucket(bucket) {
								if v == face[0] || v == face[1] || v == face[2] {
									continue
								}
								if box.ContainsPoint(x[v]) {
									pairsChan <- Pair{Vertex: v, Triangle: t}
								}
							}
						}
					}
				}
			}
		}(start, min(start+facesPerWorker, len(faces)))
	}

	go func() {
		wg.Wait()
		close(pairsChan)
	}()

	return pairsChan
}

func containsInt(s []int, v int) bool {
	for _, e := range s {
		if e == v {
			return true
		}
	}
	return false
}

// worldToCell - converts a world position to cell coordinates
func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

// hashCell - hashes a cell to a bucket index
func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
