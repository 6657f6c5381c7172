package kdtree

import "github.com/df07/liar-gi/pkg/core"

// Nearest finds the closest item to center within maxDistSqr that
// satisfies accept, used by the irradiance cache lookup (§4.F) to gate
// candidates on surface-normal similarity without the kd-tree needing to
// know anything about normals itself. Returns ok=false if nothing in
// range satisfies accept.
func Nearest[T any](t *Tree[T], center core.Vec3, maxDistSqr float64, accept func(T) bool) (best T, bestDistSqr float64, ok bool) {
	if len(t.nodes) == 0 {
		return best, 0, false
	}
	bestDistSqr = maxDistSqr
	t.nearestNode(0, center, accept, &best, &bestDistSqr, &ok)
	return best, bestDistSqr, ok
}

func (t *Tree[T]) nearestNode(idx int32, center core.Vec3, accept func(T) bool, best *T, bestDistSqr *float64, ok *bool) {
	nd := &t.nodes[idx]

	if nd.axis < 0 {
		for i := nd.start; i < nd.end; i++ {
			item := t.items[i]
			if accept != nil && !accept(item) {
				continue
			}
			d := t.pos(item).Subtract(center)
			distSqr := d.LengthSquared()
			if distSqr <= *bestDistSqr {
				*best = item
				*bestDistSqr = distSqr
				*ok = true
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

	t.nearestNode(near, center, accept, best, bestDistSqr, ok)

	planeDistSqr := diff * diff
	if planeDistSqr <= *bestDistSqr {
		t.nearestNode(far, center, accept, best, bestDistSqr, ok)
	}
}
