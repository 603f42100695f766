// Package parallel fans per-element kernels out over a fixed number of goroutines.
//
// Work is split into contiguous chunks, one per worker, and every call blocks until
// all chunks are done. Kernels must only write to memory owned by their own
// indices; shared destinations go through a sparse.ScatterPlan reduction instead.
package parallel

import "sync"

// DEFAULT_WORKERS is used whenever a caller passes a worker count below 1.
const DEFAULT_WORKERS = 1

// ranges shorter than minChunk per worker run inline
const minChunk = 64

// For calls fn for every index in [0, n).
func For(workersCount int, n int, fn func(i int)) {
	Range(workersCount, n, func(start, end int) {
		for i := start; i < end; i++ {
			fn(i)
		}
	})
}

// Range splits [0, n) into one contiguous chunk per worker and calls fn on each.
func Range(workersCount int, n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workersCount = workers(workersCount, n)
	if workersCount == 1 {
		fn(0, n)
		return
	}

	var wg sync.WaitGroup
	chunkSize := (n + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		start := workerID * chunkSize
		end := min((workerID+1)*chunkSize, n)
		if start >= end {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(start, end)
	}
	wg.Wait()
}

// Sum reduces [0, n) with fn evaluated per chunk; partial sums are added in chunk
// order so the result does not depend on goroutine scheduling.
func Sum(workersCount int, n int, fn func(start, end int) float64) float64 {
	if n <= 0 {
		return 0
	}
	workersCount = workers(workersCount, n)
	chunkSize := (n + workersCount - 1) / workersCount
	partials := make([]float64, workersCount)

	var wg sync.WaitGroup
	for w := 0; w < workersCount; w++ {
		lo := w * chunkSize
		hi := min(lo+chunkSize, n)
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(w, lo, hi int) {
			defer wg.Done()
			partials[w] = fn(lo, hi)
		}(w, lo, hi)
	}
	wg.Wait()

	total := 0.0
	for _, p := range partials {
		total += p
	}
	return total
}

func workers(workersCount int, n int) int {
	workersCount = max(DEFAULT_WORKERS, workersCount)
	if n < minChunk {
		return 1
	}
	return min(workersCount, (n+minChunk-1)/minChunk)
}
