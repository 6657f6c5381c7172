package renderer

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunChunked partitions [0, n) into IndexChunks and drains them across
// pool.NumWorkers() goroutines, calling process once per chunk. The
// first non-nil error cancels ctx for every other in-flight and queued
// chunk and is returned once all goroutines have stopped; chunks
// already running are not interrupted mid-chunk, matching the
// teacher's worker pool's drain-then-stop shutdown.
func RunChunked(ctx context.Context, pool *WorkerPool, n int, process func(context.Context, IndexChunk) error) error {
	chunks := chunksFor(n)
	if len(chunks) == 0 {
		return nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(pool.NumWorkers())

	for _, chunk := range chunks {
		chunk := chunk
		group.Go(func() error {
			return process(groupCtx, chunk)
		})
	}

	return group.Wait()
}
