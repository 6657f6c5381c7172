package aabbtree

import "github.com/df07/liar-gi/pkg/core"

// Hit records one sphere intersected by a segment sweep: T is the ray
// parameter of the closest approach between the segment and the sphere's
// center, clipped to the queried [tNear, tFar] range.
type Hit struct {
	Index    int
	T        float64
	DistSqr  float64 // squared distance from the closest-approach point to the center
	Sphere   Sphere
}

// IntersectSegment finds every sphere whose ball is swept by the segment
// of ray between tNear and tFar — the "closest point on a bounded segment
// to each photon center" test the beam radiance estimate integrates over
// (§4.F). Results are appended to out (reused across calls to avoid
// per-query allocation) and returned; out may be nil.
func IntersectSegment(t *Tree, ray core.Ray, tNear, tFar float64, out []Hit) []Hit {
	if t.root == nil {
		return out
	}
	return intersectNode(t.root, ray, tNear, tFar, out)
}

func intersectNode(n *node, ray core.Ray, tNear, tFar float64, out []Hit) []Hit {
	if !n.bounds.Hit(ray, tNear, tFar) {
		return out
	}

	if n.leaf != nil {
		for _, s := range n.leaf {
			if hit, ok := closestApproach(s, ray, tNear, tFar); ok {
				out = append(out, hit)
			}
		}
		return out
	}

	out = intersectNode(n.left, ray, tNear, tFar, out)
	out = intersectNode(n.right, ray, tNear, tFar, out)
	return out
}

// closestApproach computes the closest point on the ray segment [tNear,
// tFar] to sphere's center and reports a hit if that point lies within
// the sphere's radius.
func closestApproach(s Sphere, ray core.Ray, tNear, tFar float64) (Hit, bool) {
	dirLenSqr := ray.Direction.LengthSquared()
	if dirLenSqr == 0 {
		return Hit{}, false
	}

	toCenter := s.Center.Subtract(ray.Origin)
	tClosest := toCenter.Dot(ray.Direction) / dirLenSqr
	if tClosest < tNear {
		tClosest = tNear
	}
	if tClosest > tFar {
		tClosest = tFar
	}

	p := ray.At(tClosest)
	distSqr := p.Subtract(s.Center).LengthSquared()
	if distSqr > s.Radius*s.Radius {
		return Hit{}, false
	}

	return Hit{Index: s.Index, T: tClosest, DistSqr: distSqr, Sphere: s}, true
}
