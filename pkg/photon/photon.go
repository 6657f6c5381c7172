// Package photon holds the photon/irradiance record types and the
// append-only buffers that accumulate them during the emission pass
// (spec §3 Data model). Buffers are written concurrently via per-worker
// shards and merged once emission completes; after that they are
// immutable for the lifetime of the render (Invariant I1).
package photon

import (
	"sort"
	"sync"

	"github.com/df07/liar-gi/pkg/core"
)

// Photon is a single deposited unit of radiant flux. OmegaIn points toward
// the light along the path that deposited the photon. Power is scaled once
// after emission by 1/photonsEmitted (§4.E).
type Photon struct {
	Position core.Vec3
	OmegaIn  core.Vec3
	Power    core.Vec3
}

// VolumetricPhoton extends Photon with the per-photon kernel radius used
// by the beam radiance estimate and a flag marking direct (pre-scatter,
// generation-0) deposits, which the direct integrator may want to exclude
// when it estimates single scattering itself (I4).
type VolumetricPhoton struct {
	Photon
	Radius   float64
	IsDirect bool
}

// Irradiance is a precomputed summary of the global map around a surface
// sample, filled in by the irradiance-precomputation worker pool (§4.E).
type Irradiance struct {
	Position   core.Vec3
	Normal     core.Vec3
	Irradiance core.Vec3
	SqrRadius  float64
}

// Shard is one worker's private append target during emission. A Shard
// must never be written from more than one goroutine.
type Shard[T any] struct {
	items []T
}

// Append adds v to this shard.
func (s *Shard[T]) Append(v T) {
	s.items = append(s.items, v)
}

// Len returns the number of items appended to this shard so far.
func (s *Shard[T]) Len() int {
	return len(s.items)
}

// ShardedBuffer is an append-only photon/irradiance buffer built from
// per-worker shards merged once after the emission pass, avoiding a hot
// lock on the common append path (§5 "Thread-safe operations").
type ShardedBuffer[T any] struct {
	mu     sync.Mutex
	shards []*Shard[T]
	merged []T // set by Merge; nil until then
}

// NewShardedBuffer creates an empty sharded buffer.
func NewShardedBuffer[T any]() *ShardedBuffer[T] {
	return &ShardedBuffer[T]{}
}

// NewShard allocates and registers a new shard for one worker. Safe to
// call concurrently with other NewShard calls, but the returned Shard
// itself is not safe for concurrent use.
func (b *ShardedBuffer[T]) NewShard() *Shard[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := &Shard[T]{}
	b.shards = append(b.shards, s)
	return s
}

// Len returns the total number of items appended across all shards so
// far, an approximate running count usable as an early-stop signal during
// emission (exact once no more shards are being appended to).
func (b *ShardedBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.merged != nil {
		return len(b.merged)
	}
	total := 0
	for _, s := range b.shards {
		total += s.Len()
	}
	return total
}

// Merge concatenates every shard into one contiguous, stable-indexed
// slice and freezes the buffer (Invariant I1: indices are stable once
// merged). Calling Merge more than once returns the same slice.
func (b *ShardedBuffer[T]) Merge() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.merged != nil {
		return b.merged
	}
	total := 0
	for _, s := range b.shards {
		total += len(s.items)
	}
	out := make([]T, 0, total)
	for _, s := range b.shards {
		out = append(out, s.items...)
	}
	b.merged = out
	return out
}

// Buffers bundles the four photon-map-era buffers described in §3: the
// three photon buffers plus the irradiance buffer.
type Buffers struct {
	Global     *ShardedBuffer[Photon]
	Caustics   *ShardedBuffer[Photon]
	Volumetric *ShardedBuffer[VolumetricPhoton]
	Irradiance *ShardedBuffer[Irradiance]
}

// NewBuffers constructs the four empty append-only buffers.
func NewBuffers() *Buffers {
	return &Buffers{
		Global:     NewShardedBuffer[Photon](),
		Caustics:   NewShardedBuffer[Photon](),
		Volumetric: NewShardedBuffer[VolumetricPhoton](),
		Irradiance: NewShardedBuffer[Irradiance](),
	}
}

// ScalePower multiplies every photon's power in-place by 1/photonsEmitted,
// the one-time scaling step at the start of map construction (§4.E).
func ScalePower(photons []Photon, photonsEmitted int) {
	if photonsEmitted <= 0 {
		return
	}
	scale := 1.0 / float64(photonsEmitted)
	for i := range photons {
		photons[i].Power = photons[i].Power.Multiply(scale)
	}
}

// ScaleVolumetricPower is ScalePower's counterpart for volumetric photons.
func ScaleVolumetricPower(photons []VolumetricPhoton, photonsEmitted int) {
	if photonsEmitted <= 0 {
		return
	}
	scale := 1.0 / float64(photonsEmitted)
	for i := range photons {
		photons[i].Power = photons[i].Power.Multiply(scale)
	}
}

// MedianPower returns the median luminance of a photon set's Power,
// used to auto-derive estimation radii (§4.E). Returns 0 for an empty
// slice. The input is not mutated; a scratch copy is sorted internally.
func MedianPower(photons []Photon) float64 {
	if len(photons) == 0 {
		return 0
	}
	lum := make([]float64, len(photons))
	for i, p := range photons {
		lum[i] = p.Power.Luminance()
	}
	return medianInPlace(lum)
}

// MedianVolumetricPower is MedianPower's counterpart for volumetric
// photons.
func MedianVolumetricPower(photons []VolumetricPhoton) float64 {
	if len(photons) == 0 {
		return 0
	}
	lum := make([]float64, len(photons))
	for i, p := range photons {
		lum[i] = p.Power.Luminance()
	}
	return medianInPlace(lum)
}

func medianInPlace(xs []float64) float64 {
	n := len(xs)
	sort.Float64s(xs)
	mid := n / 2
	if n%2 == 1 {
		return xs[mid]
	}
	return (xs[mid-1] + xs[mid]) / 2
}
