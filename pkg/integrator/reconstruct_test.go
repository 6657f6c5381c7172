package integrator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/photon"
	"github.com/df07/liar-gi/pkg/photon/aabbtree"
	"github.com/df07/liar-gi/pkg/photon/kdtree"
)

// lambertianShader is a minimal diffuse-only test double: Evaluate
// returns a constant albedo/pi whenever both directions face the same
// side of the surface.
type lambertianShader struct {
	albedo core.Vec3
	normal core.Vec3
}

func (l lambertianShader) Caps() core.Caps { return core.CapsDiffuse }

func (l lambertianShader) Evaluate(wIn, wOut core.Vec3, caps core.Caps) (core.Vec3, float64) {
	if wIn.Dot(l.normal) <= 0 || wOut.Dot(l.normal) <= 0 {
		return core.Vec3{}, 0
	}
	return l.albedo.Multiply(1 / math.Pi), wOut.Dot(l.normal) / math.Pi
}

func (l lambertianShader) Sample(wIn core.Vec3, u core.Vec2, uComponent float64, caps core.Caps) (core.BSDFSample, bool) {
	return core.BSDFSample{}, false
}

func (l lambertianShader) Emission(ray core.Ray, ctx *core.IntersectionContext, wOut core.Vec3) core.Vec3 {
	return core.Vec3{}
}

func photonsAroundOrigin(n int, power core.Vec3) []photon.Photon {
	photons := make([]photon.Photon, n)
	for i := range photons {
		angle := float64(i) * 2 * math.Pi / float64(n)
		photons[i] = photon.Photon{
			Position: core.NewVec3(0.1*math.Cos(angle), 0.1*math.Sin(angle), 0),
			OmegaIn:  core.NewVec3(0, 0, 1),
			Power:    power,
		}
	}
	return photons
}

func TestIrradianceEstimate_UsesFreshSearchWhenNoCacheHit(t *testing.T) {
	photons := photonsAroundOrigin(20, core.NewVec3(1, 1, 1))
	maps := &photonMaps{
		Global:          buildPhotonKDTree(photons),
		Irradiance:      buildIrradianceKDTree(nil),
		GlobalSqrRadius: 1.0,
	}
	s := newScratch(50)

	result := irradianceEstimate(maps, s, core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1))
	assert.Greater(t, result.X, 0.0)
}

func TestIrradianceEstimate_PrefersCacheHitWithinNormalGate(t *testing.T) {
	maps := &photonMaps{
		Global: buildPhotonKDTree(photonsAroundOrigin(20, core.NewVec3(1, 1, 1))),
		Irradiance: buildIrradianceKDTree([]photon.Irradiance{
			{Position: core.NewVec3(0, 0, 0), Normal: core.NewVec3(0, 0, 1), Irradiance: core.NewVec3(7, 7, 7), SqrRadius: 0.01},
		}),
		GlobalSqrRadius: 1.0,
	}
	s := newScratch(50)

	result := irradianceEstimate(maps, s, core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1))
	assert.Equal(t, core.NewVec3(7, 7, 7), result)
}

func TestRadianceEstimate_FewerThanTwoPhotonsReturnsZero(t *testing.T) {
	maps := &photonMaps{
		Global:          buildPhotonKDTree(photonsAroundOrigin(1, core.NewVec3(1, 1, 1))),
		GlobalSqrRadius: 1.0,
	}
	s := newScratch(50)
	shader := lambertianShader{albedo: core.NewVec3(1, 1, 1), normal: core.NewVec3(0, 0, 1)}

	result := radianceEstimate(maps, s, core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), shader)
	assert.True(t, result.IsZero())
}

func TestRadianceEstimate_PositiveForLitNeighbourhood(t *testing.T) {
	maps := &photonMaps{
		Global:          buildPhotonKDTree(photonsAroundOrigin(20, core.NewVec3(1, 1, 1))),
		GlobalSqrRadius: 1.0,
	}
	s := newScratch(50)
	shader := lambertianShader{albedo: core.NewVec3(1, 1, 1), normal: core.NewVec3(0, 0, 1)}

	result := radianceEstimate(maps, s, core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1), shader)
	assert.Greater(t, result.X, 0.0)
}

// P4: the compensated kernel, including its 1/(pi*h^2) outer
// normalization, integrates to 1 over its disk of support — checked by
// numerical integration over the same formula causticsEstimate uses.
func TestCausticsKernel_IntegratesToOne(t *testing.T) {
	const h = 1.0
	hSqr := h * h
	b1 := -causticsBeta / (2 * hSqr)
	b2 := 1.0 / (1.0 - math.Exp(-causticsBeta))

	const steps = 2000
	dr := h / steps
	var integral float64
	for i := 0; i < steps; i++ {
		d := (float64(i) + 0.5) * dr
		weight := causticsAlpha * (1 - b2*(1-math.Exp(b1*d*d)))
		kernel := weight / (math.Pi * hSqr)
		integral += kernel * 2 * math.Pi * d * dr // ring area element
	}

	assert.InDelta(t, 1.0, integral, 1e-3)
}

func TestVolumetricEstimate_InvariantUnderSegmentReversal(t *testing.T) {
	photons := []photon.VolumetricPhoton{
		{Photon: photon.Photon{Position: core.NewVec3(2, 0.1, 0), OmegaIn: core.NewVec3(0, 0, 1), Power: core.NewVec3(1, 1, 1)}, Radius: 1.0},
		{Photon: photon.Photon{Position: core.NewVec3(5, -0.1, 0), OmegaIn: core.NewVec3(0, 0, 1), Power: core.NewVec3(1, 1, 1)}, Radius: 0.8},
	}
	spheres := make([]aabbtree.Sphere, len(photons))
	for i, p := range photons {
		spheres[i] = aabbtree.Sphere{Center: p.Position, Radius: p.Radius, Index: i}
	}
	maps := &photonMaps{Volumetric: aabbtree.Build(spheres)}

	unitTrans := func(tFrom, tTo float64) core.Vec3 { return core.NewVec3(1, 1, 1) }
	isotropicPhase := func(point, in, out core.Vec3) float64 { return 1 / (4 * math.Pi) }

	origin, far := core.NewVec3(0, 0, 0), core.NewVec3(10, 0, 0)
	forward := core.NewRay(origin, far.Subtract(origin).Normalize())
	length := far.Subtract(origin).Length()

	s1 := newScratch(50)
	fwd := volumetricEstimate(maps, s1, forward, 0, length, forward.Direction, isotropicPhase, unitTrans, photons, false)

	backward := core.NewRay(far, origin.Subtract(far).Normalize())
	s2 := newScratch(50)
	bwd := volumetricEstimate(maps, s2, backward, 0, length, backward.Direction, isotropicPhase, unitTrans, photons, false)

	require.InDelta(t, fwd.X, bwd.X, 1e-9)
}

func buildPhotonKDTree(photons []photon.Photon) *kdtree.Tree[photon.Photon] {
	return kdtree.Build(photons, func(p photon.Photon) core.Vec3 { return p.Position })
}

func buildIrradianceKDTree(entries []photon.Irradiance) *kdtree.Tree[photon.Irradiance] {
	return kdtree.Build(entries, func(ir photon.Irradiance) core.Vec3 { return ir.Position })
}
