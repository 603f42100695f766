// Package sparse holds the block-sparse system matrix and the scatter plans used to
// assemble it without locks.
//
// Every physical source (a face, a bend edge, a stitch, a vertex, a collision pair)
// owns a fixed range of "slots" in a scratch buffer. Kernels write their local
// contributions to their own slots in any order, then a ScatterPlan reduces the
// scratch buffer into the destination: slots are visited in key-sorted order and
// each unique key owns one contiguous segment, so the reduction is a segmented sum
// with one writer per destination.
package sparse

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/akmonengine/weave/parallel"
)

// ScatterPlan is the sorted, deduplicated view of a list of destination keys.
type ScatterPlan struct {
	// Keys holds the unique keys in increasing order.
	Keys []uint64
	// Order maps a sorted position to the source slot that produced it.
	Order []int
	// InvOrder maps a source slot to its sorted position.
	InvOrder []int
	// Starts holds, for each unique key u, the first sorted position of its segment.
	// Starts[len(Keys)] == len(Order).
	Starts []int
	// Unique maps a source slot to the index of its key in Keys.
	Unique []int
}

// BuildScatterPlan sorts keys (stable, so equal keys keep slot order), dedups them
// and records the segment boundaries.
func BuildScatterPlan(keys []uint64) *ScatterPlan {
	n := len(keys)
	plan := &ScatterPlan{
		Order:    make([]int, n),
		InvOrder: make([]int, n),
		Unique:   make([]int, n),
	}
	for i := range plan.Order {
		plan.Order[i] = i
	}
	slices.SortStableFunc(plan.Order, func(a, b int) int {
		return cmp.Compare(keys[a], keys[b])
	})

	plan.Keys = make([]uint64, 0, n)
	plan.Starts = make([]int, 0, n+1)
	for p, slot := range plan.Order {
		if p == 0 || keys[slot] != keys[plan.Order[p-1]] {
			plan.Keys = append(plan.Keys, keys[slot])
			plan.Starts = append(plan.Starts, p)
		}
		plan.InvOrder[slot] = p
		plan.Unique[slot] = len(plan.Keys) - 1
	}
	plan.Starts = append(plan.Starts, n)

	return plan
}

// NumSlots returns the number of source slots the plan was built from.
func (p *ScatterPlan) NumSlots() int {
	return len(p.Order)
}

// NumUnique returns the number of distinct keys.
func (p *ScatterPlan) NumUnique() int {
	return len(p.Keys)
}

// Segment returns the sorted-position range [start, end) reducing into key u.
func (p *ScatterPlan) Segment(u int) (start, end int) {
	return p.Starts[u], p.Starts[u+1]
}

// Find returns the unique index of key, or -1.
func (p *ScatterPlan) Find(key uint64) int {
	u, ok := slices.BinarySearch(p.Keys, key)
	if !ok {
		return -1
	}
	return u
}

// Gather reduces scratch (indexed by source slot) into dst (indexed by unique key):
// dst[u] = sum of scratch over the segment of u. Each worker owns whole segments.
func Gather[T any](p *ScatterPlan, workers int, scratch []T, dst []T, add func(a, b T) T) {
	parallel.Range(workers, len(p.Keys), func(start, end int) {
		var zero T
		for u := start; u < end; u++ {
			acc := zero
			for s := p.Starts[u]; s < p.Starts[u+1]; s++ {
				acc = add(acc, scratch[p.Order[s]])
			}
			dst[u] = acc
		}
	})
}

// GatherAdd is Gather but accumulates into dst instead of overwriting it.
func GatherAdd[T any](p *ScatterPlan, workers int, scratch []T, dst []T, add func(a, b T) T) {
	parallel.Range(workers, len(p.Keys), func(start, end int) {
		for u := start; u < end; u++ {
			acc := dst[u]
			for s := p.Starts[u]; s < p.Starts[u+1]; s++ {
				acc = add(acc, scratch[p.Order[s]])
			}
			dst[u] = acc
		}
	})
}

// Dump writes the unique keys as (row, col) pairs with their contribution counts,
// n being the matrix dimension used to encode the keys.
func (p *ScatterPlan) Dump(w io.Writer, name string, n int) error {
	if _, err := fmt.Fprintf(w, "%s: %d slots, %d unique\n", name, len(p.Order), len(p.Keys)); err != nil {
		return err
	}
	for u, key := range p.Keys {
		row, col := PairFromKey(key, n)
		if _, err := fmt.Fprintf(w, "  [%d] (%d, %d) x%d\n", u, row, col, p.Starts[u+1]-p.Starts[u]); err != nil {
			return err
		}
	}
	return nil
}
