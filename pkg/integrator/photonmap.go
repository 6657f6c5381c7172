package integrator

import (
	"context"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/medium"
)

// PhotonMapIntegrator extends DirectIntegrator with the photon-mapping
// estimators of §4.E/§4.F: emission + map construction happen once in
// PreProcess, then every clone shares the resulting *photonMaps
// (reference-counted via Go's garbage collector, not copied — sharing a
// read-only final value is the point of I1's immutability contract) and
// owns its own query scratch. Grounded on the teacher's BDPTIntegrator
// embedding *PathTracingIntegrator in pkg/integrator/bdpt.go: the
// specialization substitutes the direct integrator's shading hooks
// rather than duplicating castRay's recursion.
type PhotonMapIntegrator struct {
	*DirectIntegrator

	maps    *photonMaps
	scratch *scratch
}

// NewPhotonMapIntegrator constructs a PhotonMapIntegrator with its
// shading hooks wired as closures over itself, so the photon maps and
// per-goroutine scratch are reached directly rather than through any
// global registry.
func NewPhotonMapIntegrator(cfg core.TuningConfig, logger core.Logger) *PhotonMapIntegrator {
	pm := &PhotonMapIntegrator{
		DirectIntegrator: NewDirectIntegrator(cfg, logger),
	}
	pm.wireHooks()
	return pm
}

func (pm *PhotonMapIntegrator) wireHooks() {
	pm.ShadeSurface = func(di *DirectIntegrator, sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, ctx *core.IntersectionContext, gen int) core.Vec3 {
		return pm.shadeSurface(sample, stack, dray, ctx, gen)
	}
	pm.ShadeMedia = func(di *DirectIntegrator, stack *medium.Stack, ray core.Ray, tMax float64, sample core.Sampler) (core.Vec3, core.Vec3) {
		return pm.shadeMedia(stack, ray, tMax, sample)
	}
}

// PreProcess runs the emission pass and builds the photon maps (§4.D,
// §4.E), then seeds this integrator's own query scratch. It must run
// exactly once per render; clones share the resulting maps.
func (pm *PhotonMapIntegrator) PreProcess(ctx context.Context, sampler core.Sampler, scene core.Scene, numThreads int) error {
	if err := pm.DirectIntegrator.PreProcess(ctx, sampler, scene, numThreads); err != nil {
		return err
	}

	emission, err := runEmission(ctx, scene, pm.Config, 1, pm.Logger, numThreads)
	if err != nil {
		return err
	}

	maps, err := buildMaps(ctx, pm.Config, emission, pm.Logger, numThreads)
	if err != nil {
		return err
	}

	pm.maps = maps
	pm.scratch = newScratch(pm.Config.Estimation[core.MapGlobal].Size)
	return nil
}

// Clone shares the parent's photon maps and gives the clone its own
// scratch buffers, since the kdtree.Neighbourhood/aabbtree.Hit scratch
// each query reuses is not safe to share across goroutines.
func (pm *PhotonMapIntegrator) Clone() core.Integrator {
	clone := &PhotonMapIntegrator{
		DirectIntegrator: pm.DirectIntegrator.Clone().(*DirectIntegrator),
		maps:             pm.maps,
		scratch:          newScratch(pm.Config.Estimation[core.MapGlobal].Size),
	}
	clone.wireHooks()
	return clone
}

// shadeSurface implements §4.F's full surface estimator: emission,
// direct lighting, the specular/glossy branch, the dedicated caustics
// estimate, and the diffuse indirect term from either the raw photon
// map (IsVisualizingPhotonMap), final gather, or the plain irradiance
// estimate when final gather is disabled.
func (pm *PhotonMapIntegrator) shadeSurface(sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, ctx *core.IntersectionContext, gen int) core.Vec3 {
	if pm.maps == nil {
		return shadeSurfaceDirect(pm.DirectIntegrator, sample, stack, dray, ctx, gen)
	}

	shader := ctx.Shader
	wIn := dray.Ray.Direction.Normalize()
	wOut := wIn.Negate()

	emitted := shader.Emission(dray.Ray, ctx, wOut)

	var direct core.Vec3
	if pm.Config.IsRayTracingDirect {
		direct = pm.directLighting(stack, ctx.Point, ctx.Normal, wIn, shader)
	}

	var branch core.Vec3
	caps := shader.Caps()
	if caps.Any(core.CapsSpecular | core.CapsGlossy) {
		branch = pm.specularGlossyBranch(sample, stack, dray, ctx, wIn, gen)
	}

	var caustics core.Vec3
	if caps.Has(core.CapsDiffuse) {
		caustics = causticsEstimate(pm.maps, pm.scratch, ctx.Point, wOut, shader)
	}

	var indirect core.Vec3
	switch {
	case pm.Config.IsVisualizingPhotonMap:
		indirect = radianceEstimate(pm.maps, pm.scratch, ctx.Point, wOut, shader)
	case caps.Has(core.CapsDiffuse):
		indirect = finalGather(pm.DirectIntegrator, pm.maps, pm.scratch, sample, stack, ctx.Point, ctx.Normal, wIn, shader)
	}

	return emitted.Add(direct).Add(branch).Add(caustics).Add(indirect)
}

// shadeMedia implements §4.F's volumetric shading: the medium's own
// transmittance/emission (and any analytic single scattering) plus the
// volumetric photon map's beam radiance estimate for the indirect
// (multiply-scattered) term. dropDirectPhotons excludes generation-0
// deposits whenever the analytic single-scattering estimator already
// accounts for them (I4).
func (pm *PhotonMapIntegrator) shadeMedia(stack *medium.Stack, ray core.Ray, tMax float64, sample core.Sampler) (core.Vec3, core.Vec3) {
	emission, transmittance := shadeMediaDirect(pm.DirectIntegrator, stack, ray, tMax, sample)

	if pm.maps == nil || len(pm.maps.VolumetricPhotons) == 0 || stack.Current() == nil {
		return emission, transmittance
	}

	beam := volumetricEstimate(pm.maps, pm.scratch, ray, rayEpsilon, tMax, ray.Direction,
		stack.Phase, func(tFrom, tTo float64) core.Vec3 { return stack.Transmittance(ray, tTo) },
		pm.maps.VolumetricPhotons, pm.Config.IsScatteringDirect && pm.Config.NumSecondaryGatherRays > 0)

	return emission.Add(beam), transmittance
}
