package kdtree

import (
	"math"

	"github.com/df07/liar-gi/pkg/core"
)

// Neighbourhood is caller-provided scratch for RangeSearch, sized to hold
// at most k results, avoiding per-query allocation (§4.A "Memory"). It is
// a bounded max-heap keyed by squared distance, so entries[0] is always
// the farthest accepted neighbour — exactly the ordering RangeSearch's
// contract requires callers to see in Results().
type Neighbourhood[T any] struct {
	k       int
	entries []entry[T]
}

type entry[T any] struct {
	distSqr float64
	value   T
}

// NewNeighbourhood allocates scratch sized for at most k results.
func NewNeighbourhood[T any](k int) *Neighbourhood[T] {
	return &Neighbourhood[T]{k: k, entries: make([]entry[T], 0, k+1)}
}

// Reset empties the scratch for reuse on the next query.
func (n *Neighbourhood[T]) Reset() {
	n.entries = n.entries[:0]
}

// Len returns the number of accepted neighbours found so far (0..k).
func (n *Neighbourhood[T]) Len() int {
	return len(n.entries)
}

func (n *Neighbourhood[T]) full() bool {
	return len(n.entries) >= n.k
}

func (n *Neighbourhood[T]) worstDistSqr() float64 {
	if len(n.entries) == 0 {
		return math.Inf(1)
	}
	return n.entries[0].distSqr
}

// consider offers a candidate to the bounded neighbourhood. It is dropped
// if the neighbourhood is full and farther than the current worst.
func (n *Neighbourhood[T]) consider(distSqr float64, v T) {
	if !n.full() {
		n.entries = append(n.entries, entry[T]{distSqr: distSqr, value: v})
		n.siftUp(len(n.entries) - 1)
		return
	}
	if distSqr >= n.entries[0].distSqr {
		return
	}
	n.entries[0] = entry[T]{distSqr: distSqr, value: v}
	n.siftDown(0)
}

func (n *Neighbourhood[T]) siftUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if n.entries[parent].distSqr >= n.entries[i].distSqr {
			break
		}
		n.entries[parent], n.entries[i] = n.entries[i], n.entries[parent]
		i = parent
	}
}

func (n *Neighbourhood[T]) siftDown(i int) {
	size := len(n.entries)
	for {
		l, r := 2*i+1, 2*i+2
		largest := i
		if l < size && n.entries[l].distSqr > n.entries[largest].distSqr {
			largest = l
		}
		if r < size && n.entries[r].distSqr > n.entries[largest].distSqr {
			largest = r
		}
		if largest == i {
			return
		}
		n.entries[i], n.entries[largest] = n.entries[largest], n.entries[i]
		i = largest
	}
}

// Results returns the accepted neighbours with entries[0] the farthest
// accepted, per RangeSearch's contract (spec §4.A).
func (n *Neighbourhood[T]) Results() []T {
	out := make([]T, len(n.entries))
	for i, e := range n.entries {
		out[i] = e.value
	}
	return out
}

// SqrRadius returns the squared distance to the farthest accepted
// neighbour — the "achieved squared radius" used throughout §4.F's
// density estimators.
func (n *Neighbourhood[T]) SqrRadius() float64 {
	if len(n.entries) == 0 {
		return 0
	}
	return n.entries[0].distSqr
}

// RangeSearch returns the nearest <=k items within distance r of center,
// writing results into the caller-provided scratch neighbourhood (reused
// across calls to avoid per-query allocation). The returned count may be
//0..k (P2).
func RangeSearch[T any](t *Tree[T], center core.Vec3, r float64, scratch *Neighbourhood[T]) []T {
	scratch.Reset()
	if len(t.nodes) == 0 {
		return nil
	}
	rSqr := r * r
	t.rangeSearchNode(0, center, rSqr, scratch)
	return scratch.Results()
}

func (t *Tree[T]) rangeSearchNode(idx int32, center core.Vec3, rSqr float64, n *Neighbourhood[T]) {
	nd := &t.nodes[idx]

	if nd.axis < 0 {
		for i := nd.start; i < nd.end; i++ {
			p := t.pos(t.items[i])
			d := p.Subtract(center)
			distSqr := d.LengthSquared()
			bound := rSqr
			if n.full() && n.worstDistSqr() < bound {
				bound = n.worstDistSqr()
			}
			if distSqr <= bound {
				n.consider(distSqr, t.items[i])
			}
		}
		return
	}

	diff := axisValue(center, nd.axis) - nd.splitPos
	var near, far int32
	if diff <= 0 {
		near, far = nd.left, nd.right
	} else {
		near, far = nd.right, nd.left
	}

	t.rangeSearchNode(near, center, rSqr, n)

	planeDistSqr := diff * diff
	bound := rSqr
	if n.full() && n.worstDistSqr() < bound {
		bound = n.worstDistSqr()
	}
	if planeDistSqr <= bound {
		t.rangeSearchNode(far, center, rSqr, n)
	}
}
