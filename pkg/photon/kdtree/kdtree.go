// Package kdtree implements the bulk-built point k-d tree used to index
// the global, caustics, and irradiance buffers for k-NN range queries
// (spec §4.A). It generalizes the teacher's pkg/core/bvh.go bulk-build
// idiom (contiguous node arrays, recursive median split, leaf threshold)
// from axis-aligned-box shapes to point records split on the axis of
// greatest variance, the conventional photon-map kd-tree criterion.
package kdtree

import (
	"sort"

	"github.com/df07/liar-gi/pkg/core"
)

// leafThreshold caps the number of points stored directly in a leaf
// node, mirroring the teacher's BVH leaf-threshold idiom.
const leafThreshold = 8

type node struct {
	// internal node
	axis     int
	splitPos float64
	left     int32 // index into Tree.nodes, -1 if absent
	right    int32

	// leaf node (left == -1 && right == -1)
	start, end int32 // half-open range into Tree.items
}

// Tree is a bulk-built point k-d tree over items of type T, indexed by a
// caller-supplied position extractor. Once built it is immutable and safe
// for concurrent read-only queries from any number of goroutines
// (Invariant I1 / §5 immutability contract).
type Tree[T any] struct {
	nodes []node
	items []T
	pos   func(T) core.Vec3
}

// Build bulk-builds a k-d tree over items (which is copied; the caller's
// slice is not mutated or retained). pos extracts the 3D position used
// for splitting and distance queries.
func Build[T any](items []T, pos func(T) core.Vec3) *Tree[T] {
	t := &Tree[T]{
		items: make([]T, len(items)),
		pos:   pos,
	}
	copy(t.items, items)

	if len(t.items) == 0 {
		return t
	}

	t.nodes = make([]node, 0, 2*len(t.items)/leafThreshold+2)
	t.build(0, int32(len(t.items)))
	return t
}

// Len returns the number of items indexed by the tree.
func (t *Tree[T]) Len() int {
	return len(t.items)
}

// build recursively partitions items[start:end] in place, splitting on the
// axis of greatest positional variance and appending node records to
// t.nodes; it returns the index of the node it created.
func (t *Tree[T]) build(start, end int32) int32 {
	n := end - start

	if n <= leafThreshold {
		idx := int32(len(t.nodes))
		t.nodes = append(t.nodes, node{axis: -1, left: -1, right: -1, start: start, end: end})
		return idx
	}

	axis := t.greatestVarianceAxis(start, end)
	items := t.items[start:end]
	sort.Slice(items, func(i, j int) bool {
		return axisValue(t.pos(items[i]), axis) < axisValue(t.pos(items[j]), axis)
	})
	mid := start + n/2
	splitPos := axisValue(t.pos(t.items[mid]), axis)

	idx := int32(len(t.nodes))
	t.nodes = append(t.nodes, node{}) // reserve; filled in below
	left := t.build(start, mid)
	right := t.build(mid, end)
	t.nodes[idx] = node{axis: axis, splitPos: splitPos, left: left, right: right, start: mid, end: mid}
	return idx
}

func (t *Tree[T]) greatestVarianceAxis(start, end int32) int {
	var mean, meanSq core.Vec3
	n := float64(end - start)
	for i := start; i < end; i++ {
		p := t.pos(t.items[i])
		mean = mean.Add(p)
		meanSq = meanSq.Add(p.Square())
	}
	mean = mean.Multiply(1.0 / n)
	meanSq = meanSq.Multiply(1.0 / n)

	varX := meanSq.X - mean.X*mean.X
	varY := meanSq.Y - mean.Y*mean.Y
	varZ := meanSq.Z - mean.Z*mean.Z

	if varX >= varY && varX >= varZ {
		return 0
	}
	if varY >= varZ {
		return 1
	}
	return 2
}

func axisValue(v core.Vec3, axis int) float64 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}
