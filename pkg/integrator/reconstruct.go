package integrator

import (
	"math"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/photon"
	"github.com/df07/liar-gi/pkg/photon/aabbtree"
	"github.com/df07/liar-gi/pkg/photon/kdtree"
)

// causticsBeta/causticsAlpha are the Silverman compensated-kernel
// constants of §4.F.
const (
	causticsBeta  = 1.953
	causticsAlpha = 0.918

	normalSimilarityThreshold = 0.9
)

// scratch bundles the per-goroutine query scratch a PhotonMapIntegrator
// clone owns, avoiding per-query allocation in the hot reconstruction
// path (§4.A "Memory").
type scratch struct {
	globalN     *kdtree.Neighbourhood[photon.Photon]
	causticsN   *kdtree.Neighbourhood[photon.Photon]
	volumetricH []aabbtree.Hit
}

func newScratch(k int) *scratch {
	return &scratch{
		globalN:   kdtree.NewNeighbourhood[photon.Photon](k),
		causticsN: kdtree.NewNeighbourhood[photon.Photon](k),
	}
}

// irradianceEstimate implements §4.F's irradiance estimate: reuse a
// cache hit within radius if its stored normal is within the 0.9
// normal-similarity gate, else perform a fresh global-map range search.
func irradianceEstimate(maps *photonMaps, s *scratch, point, normal core.Vec3) core.Vec3 {
	maxDistSqr := maps.GlobalSqrRadius
	if cached, distSqr, ok := kdtree.Nearest(maps.Irradiance, point, maxDistSqr, func(ir photon.Irradiance) bool {
		return ir.Normal.Dot(normal) > normalSimilarityThreshold
	}); ok {
		_ = distSqr
		return cached.Irradiance
	}

	radius := math.Sqrt(maps.GlobalSqrRadius)
	neighbours := kdtree.RangeSearch(maps.Global, point, radius, s.globalN)
	if len(neighbours) == 0 {
		return core.Vec3{}
	}

	var sum core.Vec3
	for _, p := range neighbours {
		if p.OmegaIn.Dot(normal) > 0 {
			sum = sum.Add(p.Power)
		}
	}

	sqrRadius := s.globalN.SqrRadius()
	if sqrRadius <= 0 {
		return core.Vec3{}
	}
	return sum.Multiply(1.0 / (math.Pi * sqrRadius))
}

// radianceEstimate implements §4.F's global-map kernel radiance
// estimate for final-gather tails: each photon is filtered by the
// local BSDF, the summand is bsdf.value * photon.power, divided by
// pi*sqrRadius. Returns zero if fewer than 2 photons are found (too
// noisy to use).
func radianceEstimate(maps *photonMaps, s *scratch, point, wOut core.Vec3, shader core.Shader) core.Vec3 {
	radius := math.Sqrt(maps.GlobalSqrRadius)
	neighbours := kdtree.RangeSearch(maps.Global, point, radius, s.globalN)
	if len(neighbours) < 2 {
		return core.Vec3{}
	}

	var sum core.Vec3
	for _, p := range neighbours {
		value, _ := shader.Evaluate(wOut, p.OmegaIn, core.CapsAll)
		if value.IsZero() {
			continue
		}
		sum = sum.Add(value.MultiplyVec(p.Power))
	}

	sqrRadius := s.globalN.SqrRadius()
	if sqrRadius <= 0 {
		return core.Vec3{}
	}
	return sum.Multiply(1.0 / (math.Pi * sqrRadius))
}

// causticsEstimate implements §4.F's dedicated caustics map estimate:
// the Silverman-style compensated kernel, with the BSDF capability mask
// restricted to Diffuse.
func causticsEstimate(maps *photonMaps, s *scratch, point, wOut core.Vec3, shader core.Shader) core.Vec3 {
	radius := math.Sqrt(maps.CausticsSqrRadius)
	neighbours := kdtree.RangeSearch(maps.Caustics, point, radius, s.causticsN)
	if len(neighbours) == 0 {
		return core.Vec3{}
	}

	h := radius
	if h <= 0 {
		return core.Vec3{}
	}
	hSqr := h * h
	b1 := -causticsBeta / (2 * hSqr)
	b2 := 1.0 / (1.0 - math.Exp(-causticsBeta))

	var sum core.Vec3
	for _, p := range neighbours {
		value, _ := shader.Evaluate(wOut, p.OmegaIn, core.CapsDiffuse)
		if value.IsZero() {
			continue
		}
		d := p.Position.Subtract(point)
		dSqr := d.LengthSquared()
		weight := causticsAlpha * (1 - b2*(1-math.Exp(b1*dSqr)))
		if weight < 0 {
			weight = 0
		}
		sum = sum.Add(value.MultiplyVec(p.Power).Multiply(weight))
	}

	return sum.Multiply(1.0 / (math.Pi * hSqr))
}

// epanechnikovKernel2D is the 2-D Epanechnikov kernel used by the beam
// radiance estimate: k(d,r) = 2/(pi*r^2) * (1 - d^2/r^2), zero beyond r.
func epanechnikovKernel2D(distSqr, radius float64) float64 {
	if radius <= 0 {
		return 0
	}
	rSqr := radius * radius
	if distSqr >= rSqr {
		return 0
	}
	return (2.0 / (math.Pi * rSqr)) * (1 - distSqr/rSqr)
}

// volumetricEstimate implements §4.F's beam radiance estimate: segment
// query the AABB tree, evaluate the 2-D Epanechnikov kernel at each
// sphere's closest-approach distance using its own bandwidth, and
// accumulate transmittance * phase * power. dropDirectPhotons excludes
// generation-0 (isDirect) photons, used when the direct integrator
// already estimates single scattering itself (I4).
func volumetricEstimate(maps *photonMaps, s *scratch, ray core.Ray, tNear, tFar float64, rayDir core.Vec3, phase func(point, in, out core.Vec3) float64, transmittance func(tFrom, tTo float64) core.Vec3, volumetricPhotons []photon.VolumetricPhoton, dropDirectPhotons bool) core.Vec3 {
	s.volumetricH = aabbtree.IntersectSegment(maps.Volumetric, ray, tNear, tFar, s.volumetricH[:0])
	if len(s.volumetricH) == 0 {
		return core.Vec3{}
	}

	var sum core.Vec3
	for _, h := range s.volumetricH {
		vp := volumetricPhotons[h.Sphere.Index]
		if dropDirectPhotons && vp.IsDirect {
			continue
		}

		kernel := epanechnikovKernel2D(h.DistSqr, vp.Radius)
		if kernel <= 0 {
			continue
		}

		trans := transmittance(tNear, h.T)
		p := ray.At(h.T)
		ph := phase(p, rayDir, vp.OmegaIn.Negate())

		sum = sum.Add(trans.Multiply(kernel * ph).MultiplyVec(vp.Power))
	}

	return sum
}
