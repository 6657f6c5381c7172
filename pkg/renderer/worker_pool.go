// Package renderer provides the concurrency primitives that drive the
// photon emission and map-construction passes (§4.G): a chunked worker
// pool over a half-open index range, and a throttled progress reporter.
// Both are adapted from the teacher's tile-task channel/sync.WaitGroup
// worker pool, generalized from a fixed TileTask to an arbitrary
// IndexChunk so the same pool drives photon walks, irradiance
// precomputation, or any other embarrassingly-parallel pass over
// [0, n).
package renderer

import "runtime"

// IndexChunk is a contiguous half-open sub-range [Start, End) of the
// index space a WorkerPool partitions work over.
type IndexChunk struct {
	Start, End int
}

// Len returns the number of indices in the chunk.
func (c IndexChunk) Len() int {
	return c.End - c.Start
}

// WorkerPool bounds the number of goroutines RunChunked fans work out
// to. It holds no state beyond the worker count; unlike the tile-task
// pool it replaces, it is not tied to a scene or a channel lifetime,
// so a single pool can be reused across passes.
type WorkerPool struct {
	numWorkers int
}

// NewWorkerPool returns a pool with the given worker count. A
// non-positive count defaults to runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &WorkerPool{numWorkers: numWorkers}
}

// NumWorkers returns the pool's worker count.
func (p *WorkerPool) NumWorkers() int {
	return p.numWorkers
}

// chunkSizeFor returns the chunk size §4.G specifies: max(1, sqrt(n)).
// Small enough that load imbalance across workers stays bounded, large
// enough that per-chunk overhead (shard allocation, goroutine launch)
// doesn't dominate.
func chunkSizeFor(n int) int {
	size := 1
	for size*size < n {
		size++
	}
	if size < 1 {
		size = 1
	}
	return size
}

// chunksFor partitions [0, n) into chunkSizeFor(n)-sized IndexChunks.
func chunksFor(n int) []IndexChunk {
	if n <= 0 {
		return nil
	}
	size := chunkSizeFor(n)
	chunks := make([]IndexChunk, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, IndexChunk{Start: start, End: end})
	}
	return chunks
}
