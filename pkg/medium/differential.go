package medium

import "github.com/df07/liar-gi/pkg/core"

// DifferentialRay bundles a central ray with two adjacent rays (Rx, Ry)
// carrying positional and directional differentials, one pixel apart in
// each screen axis. Enables texture filtering and adaptive sampling in the
// external shading collaborator; the GI core only propagates them.
type DifferentialRay struct {
	Ray core.Ray

	HasDifferentials bool
	RxOrigin         core.Vec3
	RxDirection      core.Vec3
	RyOrigin         core.Vec3
	RyDirection      core.Vec3
}

// NewDifferentialRay wraps a plain ray with no differentials (e.g. a
// shadow ray or a photon-tracing ray, neither of which needs them).
func NewDifferentialRay(ray core.Ray) DifferentialRay {
	return DifferentialRay{Ray: ray}
}

// ReflectDifferential propagates positional and directional differentials
// across a specular reflection at a surface with normal n and incoming
// direction wIn, following the Igehy formulas (§4.B):
//
//	∂cosθ/∂i = −(∂i·n) − (i·∂n)
//	∂r/∂i    = ∂i + 2·(∂cosθ·n + cosθ·∂n)
//
// dNdx/dNdy approximate ∂n for the two screen-axis differentials; pass the
// zero vector when the surface has no curvature information available.
func (dr DifferentialRay) ReflectDifferential(n, wIn, wOut, dNdx, dNdy core.Vec3, dDdx, dDdy float64) DifferentialRay {
	if !dr.HasDifferentials {
		return dr
	}

	cosTheta := wIn.Negate().Dot(n)

	dIdx := dr.RxDirection.Subtract(dr.Ray.Direction)
	dIdy := dr.RyDirection.Subtract(dr.Ray.Direction)

	reflectDir := func(dI, dN core.Vec3) core.Vec3 {
		dCosTheta := -dI.Dot(n) - wIn.Dot(dN)
		return dI.Add(n.Multiply(2 * dCosTheta).Add(dN.Multiply(2 * cosTheta)))
	}

	out := dr
	out.RxOrigin = dr.RxOrigin // positional differential carries through a reflection unchanged at the point of contact
	out.RyOrigin = dr.RyOrigin
	out.RxDirection = wOut.Add(reflectDir(dIdx, dNdx))
	out.RyDirection = wOut.Add(reflectDir(dIdy, dNdy))
	return out
}

// TransmitDifferential approximates transmission differentials by sharing
// the central direction across both auxiliary rays — a documented
// limitation (§9 Open Questions): acceptable for matte-heavy scenes, a
// latent bias for highly refractive ones.
func (dr DifferentialRay) TransmitDifferential(wOut core.Vec3) DifferentialRay {
	if !dr.HasDifferentials {
		return dr
	}
	out := dr
	out.RxDirection = wOut
	out.RyDirection = wOut
	return out
}
