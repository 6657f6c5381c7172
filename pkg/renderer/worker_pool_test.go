package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkSizeFor(t *testing.T) {
	assert.Equal(t, 1, chunkSizeFor(0))
	assert.Equal(t, 1, chunkSizeFor(1))
	assert.Equal(t, 2, chunkSizeFor(2))
	assert.Equal(t, 10, chunkSizeFor(100))
	assert.Equal(t, 11, chunkSizeFor(101))
}

func TestChunksFor_CoversRangeExactlyOnce(t *testing.T) {
	const n = 137
	chunks := chunksFor(n)

	covered := make([]bool, n)
	for _, c := range chunks {
		assert.Less(t, c.Start, c.End)
		for i := c.Start; i < c.End; i++ {
			assert.False(t, covered[i], "index %d covered twice", i)
			covered[i] = true
		}
	}
	for i, ok := range covered {
		assert.True(t, ok, "index %d never covered", i)
	}
}

func TestChunksFor_Empty(t *testing.T) {
	assert.Nil(t, chunksFor(0))
	assert.Nil(t, chunksFor(-5))
}

func TestNewWorkerPool_DefaultsOnNonPositive(t *testing.T) {
	p := NewWorkerPool(0)
	assert.Greater(t, p.NumWorkers(), 0)

	p = NewWorkerPool(4)
	assert.Equal(t, 4, p.NumWorkers())
}
