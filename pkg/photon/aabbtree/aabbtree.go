// Package aabbtree implements the bounding volume hierarchy over photon
// spheres used by the volumetric beam radiance estimate (spec §4.A, §4.F).
// It is grounded on the teacher's pkg/core/bvh.go: a pointer-based binary
// tree, bulk-built by splitting at the midpoint of the bounding box's
// longest axis,
// with a leaf threshold below which shapes are stored directly rather than
// split further. Here the "shapes" are photon spheres (center + radius)
// rather than scene geometry, and the query is a segment sweep rather than
// a single-point ray hit.
package aabbtree

import "github.com/df07/liar-gi/pkg/core"

// leafThreshold mirrors the teacher's BVH leaf-threshold idiom.
const leafThreshold = 8

// Sphere is one photon's bounding volume for the beam radiance estimate:
// a ball of the photon's kernel radius around its position, tagged with
// Index into the caller's volumetric photon slice.
type Sphere struct {
	Center core.Vec3
	Radius float64
	Index  int
}

func (s Sphere) bounds() core.AABB {
	r := core.NewVec3(s.Radius, s.Radius, s.Radius)
	return core.NewAABB(s.Center.Subtract(r), s.Center.Add(r))
}

type node struct {
	bounds core.AABB
	left   *node
	right  *node
	leaf   []Sphere // nil for internal nodes
}

// Tree is a bulk-built BVH over photon spheres, immutable once built and
// safe for concurrent read-only IntersectSegment queries (I1).
type Tree struct {
	root  *node
	count int
}

// Build constructs a BVH over spheres. spheres is copied; the caller's
// slice is not retained.
func Build(spheres []Sphere) *Tree {
	if len(spheres) == 0 {
		return &Tree{}
	}
	cp := make([]Sphere, len(spheres))
	copy(cp, spheres)
	return &Tree{root: build(cp), count: len(cp)}
}

// Len returns the number of spheres indexed by the tree.
func (t *Tree) Len() int {
	return t.count
}

func build(spheres []Sphere) *node {
	bounds := spheres[0].bounds()
	for _, s := range spheres[1:] {
		bounds = bounds.Union(s.bounds())
	}

	if len(spheres) <= leafThreshold {
		return &node{bounds: bounds, leaf: spheres}
	}

	axis := bounds.LongestAxis()
	min, max := axisRange(bounds, axis)
	if max <= min {
		return &node{bounds: bounds, leaf: spheres}
	}
	splitPos := (min + max) * 0.5

	var left, right []Sphere
	for _, s := range spheres {
		if axisValue(s.Center, axis) < splitPos {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &node{bounds: bounds, leaf: spheres}
	}

	return &node{bounds: bounds, left: build(left), right: build(right)}
}

func axisRange(b core.AABB, axis int) (float64, float64) {
	switch axis {
	case 0:
		return b.Min.X, b.Max.X
	case 1:
		return b.Min.Y, b.Max.Y
	default:
		return b.Min.Z, b.Max.Z
	}
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
