// Package integrator implements the two cooperating light-transport
// estimators: a direct-lighting integrator and the photon-mapping
// integrator that extends it. It is grounded on the teacher's
// pkg/integrator/path_tracing.go recursion, generalized to thread a
// participating-media stack through every bounce and to expose the
// specialization points the photon-mapping integrator overrides.
package integrator

import (
	"context"
	"math"
	"math/rand"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/medium"
)

// rayEpsilon offsets rays leaving a surface or a medium boundary to avoid
// immediate self-intersection, the role `liar.tolerance` plays in §4.C.
const rayEpsilon = 1e-4

// DirectIntegrator implements the direct-lighting estimator of §4.C.
// Its shading hook is a field rather than an overridden method — Go has
// no virtual dispatch onto unexported behavior — so PhotonMapIntegrator
// can specialize it without duplicating the surrounding recursion (the
// "cyclic callback" redesign of §9, grounded on BDPTIntegrator embedding
// *PathTracingIntegrator in pkg/integrator/bdpt.go).
type DirectIntegrator struct {
	Config core.TuningConfig
	Logger core.Logger
	Scene  core.Scene

	// ShadeSurface computes the radiance at a shaded surface hit: emission
	// + direct lighting + specular/glossy branch. Defaults to
	// shadeSurfaceDirect; PhotonMapIntegrator substitutes a version that
	// also consults the photon maps for the diffuse term.
	ShadeSurface func(di *DirectIntegrator, sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, ctx *core.IntersectionContext, gen int) core.Vec3

	// ShadeMedia evaluates the current medium along [0, tMax]: emission,
	// transmittance, and (when enabled) single scattering. Defaults to
	// shadeMediaDirect; PhotonMapIntegrator substitutes a version that
	// folds in the volumetric photon map's beam estimate when analytic
	// single scattering is disabled.
	ShadeMedia func(di *DirectIntegrator, stack *medium.Stack, ray core.Ray, tMax float64, sample core.Sampler) (core.Vec3, core.Vec3)

	rng *rand.Rand
}

// NewDirectIntegrator constructs a DirectIntegrator with its default
// shading hook and a freshly seeded per-goroutine random source (used for
// light selection and for the BSDF samples of direct lighting; all other
// draws come from the sampler's Get1D/Get2D).
func NewDirectIntegrator(cfg core.TuningConfig, logger core.Logger) *DirectIntegrator {
	di := &DirectIntegrator{
		Config: cfg,
		Logger: logger,
		rng:    rand.New(rand.NewSource(1)),
	}
	di.ShadeSurface = shadeSurfaceDirect
	di.ShadeMedia = shadeMediaDirect
	return di
}

// RequestSamples pre-declares the sub-sequences this integrator
// consumes. Every draw in this package's recursion is made either through
// the sampler's ad hoc Get1D/Get2D calls (specular/glossy branch,
// gather-ray directions in gather.go, medium scatter distances) or from
// the integrator's own rng (light selection and the BSDF samples of
// direct lighting), never from a pre-declared array, so there is nothing
// to request up front.
func (di *DirectIntegrator) RequestSamples(sampler core.Sampler) {}

// PreProcess is a no-op for the plain direct integrator; it has no
// precomputation pass.
func (di *DirectIntegrator) PreProcess(ctx context.Context, sampler core.Sampler, scene core.Scene, numThreads int) error {
	di.Scene = scene
	return nil
}

// Clone produces a deep copy usable by another render goroutine. Any
// photon maps held by a specialization are reference-counted, not copied
// (see photonmap.go).
func (di *DirectIntegrator) Clone() core.Integrator {
	clone := &DirectIntegrator{
		Config: di.Config,
		Logger: di.Logger,
		Scene:  di.Scene,
		rng:    rand.New(rand.NewSource(di.rng.Int63())),
	}
	clone.ShadeSurface = di.ShadeSurface
	clone.ShadeMedia = di.ShadeMedia
	return clone
}

// GetState/SetState serialize the tuning knobs opaquely (§6, §7).
func (di *DirectIntegrator) GetState() []byte {
	return encodeTuningConfig(di.Config)
}

func (di *DirectIntegrator) SetState(blob []byte) error {
	cfg, err := decodeTuningConfig(blob)
	if err != nil {
		return err
	}
	di.Config = cfg
	return nil
}

// CastRay is the sole per-pixel entry point (§6). It wraps ray in a
// differential ray with no auxiliary offsets — callers that need texture
// filtering go through castRayDifferential directly once differentials
// are threaded in from the camera (an external collaborator, §1).
func (di *DirectIntegrator) CastRay(sample core.Sampler, ray core.Ray, gen int) (core.Vec3, float64, float64) {
	stack := medium.New()
	dray := medium.NewDifferentialRay(ray)
	return di.castRay(sample, stack, dray, gen)
}

// castRay implements the recursive entry of §4.C steps (1)-(5).
func (di *DirectIntegrator) castRay(sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, gen int) (core.Vec3, float64, float64) {
	if gen > di.Config.MaxRayGeneration {
		return core.Vec3{}, math.Inf(1), 0
	}

	ray := dray.Ray
	ctx, hit := di.Scene.Intersect(ray, rayEpsilon, math.Inf(1))
	if !hit {
		return core.Vec3{}, math.Inf(1), 0
	}

	// (2) evaluate media along [0, tHit]
	lMedia, transparency := di.ShadeMedia(di, stack, ray, ctx.T, sample)

	// (3) fully absorbed by the medium before reaching the surface
	if transparency.IsZero() {
		return lMedia, ctx.T, 1
	}

	// (4)/(5) surface hit vs. pure media boundary
	if ctx.Shader != nil {
		surface := di.ShadeSurface(di, sample, stack, dray, ctx, gen)
		return lMedia.Add(surface.MultiplyVec(transparency)), ctx.T, 1
	}

	// media boundary: push/pop and continue past the intersection
	if sc := stack.HandleBoundary(ctx.Event, ctx.Interior); sc != nil {
		defer sc.Close()
	}

	continued := core.NewRay(ray.At(ctx.T+rayEpsilon), ray.Direction)
	nextDray := dray
	nextDray.Ray = continued
	lBeyond, tBeyond, alphaBeyond := di.castRay(sample, stack, nextDray, gen+1)

	return lMedia.Add(lBeyond.MultiplyVec(transparency)), tBeyond, alphaBeyond
}

// shadeMediaDirect is the default ShadeMedia implementation: the
// medium's own transmittance and emission along [0, tMax], the
// "(L_media, transparency)" pair of §4.C step (2). When
// IsScatteringDirect is set, NumSecondaryGatherRays is positive and a
// medium is current, it additionally estimates single scattering
// analytically via TraceSingleScattering, using NumSecondaryGatherRays
// as the step count k, rather than relying on the volumetric photon map
// for the direct (isDirect) term — the two are mutually exclusive per I4.
func shadeMediaDirect(di *DirectIntegrator, stack *medium.Stack, ray core.Ray, tMax float64, sample core.Sampler) (core.Vec3, core.Vec3) {
	emission := stack.Emission(ray, tMax)
	transmittance := stack.Transmittance(ray, tMax)

	if di.Config.IsScatteringDirect && di.Config.NumSecondaryGatherRays > 0 && stack.Current() != nil {
		scattered := di.TraceSingleScattering(stack, ray, tMax, di.Config.NumSecondaryGatherRays, sample)
		emission = emission.Add(scattered)
	}

	return emission, transmittance
}

// shadeSurfaceDirect is the default ShadeSurface implementation: emission
// plus direct lighting plus the recursive specular/glossy branch.
func shadeSurfaceDirect(di *DirectIntegrator, sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, ctx *core.IntersectionContext, gen int) core.Vec3 {
	shader := ctx.Shader
	wIn := dray.Ray.Direction.Normalize()

	emitted := shader.Emission(dray.Ray, ctx, wIn.Negate())

	var direct core.Vec3
	if di.Config.IsRayTracingDirect {
		direct = di.directLighting(stack, ctx.Point, ctx.Normal, wIn, shader)
	}

	var branch core.Vec3
	caps := shader.Caps()
	if caps.Any(core.CapsSpecular | core.CapsGlossy) {
		branch = di.specularGlossyBranch(sample, stack, dray, ctx, wIn, gen)
	}

	return emitted.Add(direct).Add(branch)
}

// directLighting iterates every light in the scene (§4.C: "Direct
// lighting iterates all lights"), each contributing a two-sided
// multiple-importance estimate: one light-position sample
// weighted by PowerHeuristic(lightPDF, bsdfPDF), plus the complementary
// BSDF-sampled term weighted by PowerHeuristic(bsdfPDF, lightPDF) — both
// halves of the estimator, not just the light-sampled one.
func (di *DirectIntegrator) directLighting(stack *medium.Stack, p, n, wIn core.Vec3, shader core.Shader) core.Vec3 {
	var sum core.Vec3
	for _, light := range di.Scene.Lights() {
		sum = sum.Add(di.lightSampledTerm(stack, p, n, wIn, shader, light))
		sum = sum.Add(di.bsdfSampledTerm(stack, p, n, wIn, shader, light))
	}
	return sum
}

// lightSampledTerm draws one light-position sample from di.rng and weighs
// it by PowerHeuristic(lightPDF, bsdfPDF) — the light-sampled half of the
// MIS estimator.
func (di *DirectIntegrator) lightSampledTerm(stack *medium.Stack, p, n, wIn core.Vec3, shader core.Shader, light core.Light) core.Vec3 {
	ls := light.Sample(p, di.rng)
	if ls.PDF <= 0 || ls.Emission.IsZero() {
		return core.Vec3{}
	}
	cosine := ls.Direction.Dot(n)
	if cosine <= 0 {
		return core.Vec3{}
	}

	value, bsdfPDF := shader.Evaluate(wIn.Negate(), ls.Direction, core.CapsAll)
	if value.IsZero() {
		return core.Vec3{}
	}

	shadowRay := core.NewRay(p, ls.Direction)
	if di.Scene.IsIntersecting(shadowRay, rayEpsilon, ls.Distance-rayEpsilon) {
		return core.Vec3{}
	}
	trans := stack.Transmittance(shadowRay, ls.Distance)
	if trans.IsZero() {
		return core.Vec3{}
	}

	misWeight := core.PowerHeuristic(1, ls.PDF, 1, bsdfPDF)
	return value.MultiplyVec(ls.Emission).MultiplyVec(trans).Multiply(cosine * misWeight / ls.PDF)
}

// bsdfSampledTerm draws one 2D + 1D BSDF sample from di.rng and traces it
// toward the light, weighing it by PowerHeuristic(bsdfPDF, lightPDF) — the
// complementary half lightSampledTerm's weight assumes exists. Specular
// samples are excluded: they carry no solid-angle pdf to combine and are
// already handled by the dedicated specular/glossy branch.
func (di *DirectIntegrator) bsdfSampledTerm(stack *medium.Stack, p, n, wIn core.Vec3, shader core.Shader, light core.Light) core.Vec3 {
	u := core.NewVec2(di.rng.Float64(), di.rng.Float64())
	uComp := di.rng.Float64()
	out, ok := shader.Sample(wIn, u, uComp, core.CapsAll)
	if !ok || out.PDF <= 0 || out.Value.IsZero() || out.UsedCaps.Has(core.CapsSpecular) {
		return core.Vec3{}
	}
	cosine := out.Wo.Dot(n)
	if cosine <= 0 {
		return core.Vec3{}
	}

	lightPDF := light.PDF(p, out.Wo)
	if lightPDF <= 0 {
		return core.Vec3{}
	}

	bsdfRay := core.NewRay(p, out.Wo)
	hitCtx, hit := di.Scene.Intersect(bsdfRay, rayEpsilon, math.Inf(1))
	if !hit || hitCtx.Shader == nil {
		return core.Vec3{}
	}
	le := hitCtx.Shader.Emission(bsdfRay, hitCtx, out.Wo.Negate())
	if le.IsZero() {
		return core.Vec3{}
	}
	trans := stack.Transmittance(bsdfRay, hitCtx.T)
	if trans.IsZero() {
		return core.Vec3{}
	}

	misWeight := core.PowerHeuristic(1, out.PDF, 1, lightPDF)
	return out.Value.MultiplyVec(le).MultiplyVec(trans).Multiply(cosine * misWeight / out.PDF)
}

// specularGlossyBranch implements §4.C's specular/glossy branch: n
// secondary samples at generation 0, exactly 1 deeper, differential-ray
// propagation via the Igehy formulas, and a scoped medium change on
// transmission.
func (di *DirectIntegrator) specularGlossyBranch(sample core.Sampler, stack *medium.Stack, dray medium.DifferentialRay, ctx *core.IntersectionContext, wIn core.Vec3, gen int) core.Vec3 {
	shader := ctx.Shader
	n := 1
	if gen == 0 {
		n = numSpecularSamplesGen0
	}

	var sum core.Vec3
	for i := 0; i < n; i++ {
		u := sample.Get2D()
		uComp := sample.Get1D()

		out, ok := shader.Sample(wIn, u, uComp, core.CapsSpecular|core.CapsGlossy)
		if !ok || out.PDF < 0 || out.Value.IsZero() {
			continue
		}

		nextDray := dray.ReflectDifferential(ctx.Normal, wIn, out.Wo, core.Vec3{}, core.Vec3{}, 0, 0)
		nextDray.Ray = core.NewRay(ctx.Point, out.Wo)

		var sc *medium.ScopedChange
		if out.UsedCaps.Has(core.CapsTransmission) {
			nextDray = nextDray.TransmitDifferential(out.Wo)
			sc = stack.Enter(ctx.Interior)
		}

		lBranch, _, _ := di.castRay(sample, stack, nextDray, gen+1)
		if sc != nil {
			sc.Close()
		}

		cosine := math.Abs(out.Wo.Dot(ctx.Normal))
		pdf := out.PDF
		if pdf == 0 {
			pdf = 1 // delta sample: value already includes the 1/pdf normalization
		}
		contribution := out.Value.MultiplyVec(lBranch).Multiply(cosine / (float64(n) * pdf))
		sum = sum.Add(contribution)
	}
	return sum
}

// TraceSingleScattering implements §4.C's single-scattering-in-media
// estimator: k unsorted step samples, each drawing a scatter position
// from the medium and a light picked uniformly from Scene.Lights() (pdf
// 1/len), and combining the two via the Monte-Carlo ratio estimator.
func (di *DirectIntegrator) TraceSingleScattering(stack *medium.Stack, ray core.Ray, tMax float64, k int, sample core.Sampler) core.Vec3 {
	m := stack.Current()
	if m == nil || k <= 0 {
		return core.Vec3{}
	}

	var sum core.Vec3
	for i := 0; i < k; i++ {
		u := sample.Get2D()
		_, tScatter, tPDF := m.SampleScatterOrTransmittance(ray, tMax, u)
		if tScatter >= tMax || tPDF <= 0 {
			continue
		}

		transRay := m.Transmittance(ray, tScatter)
		scatterPoint := ray.At(tScatter)

		lights := di.Scene.Lights()
		if len(lights) == 0 {
			continue
		}
		light := lights[di.rng.Intn(len(lights))]
		lightPDF := 1.0 / float64(len(lights))

		ls := light.Sample(scatterPoint, di.rng)
		if ls.PDF <= 0 || ls.Emission.IsZero() {
			continue
		}

		shadowRay := core.NewRay(scatterPoint, ls.Direction)
		if di.Scene.IsIntersecting(shadowRay, rayEpsilon, ls.Distance-rayEpsilon) {
			continue
		}
		transShadow := m.Transmittance(shadowRay, ls.Distance)

		phase := m.Phase(scatterPoint, ray.Direction.Negate(), ls.Direction)

		term := transRay.MultiplyVec(transShadow).Multiply(phase).MultiplyVec(ls.Emission)
		term = term.Multiply(1.0 / (float64(k) * tPDF * lightPDF * ls.PDF))
		sum = sum.Add(term)
	}
	return sum
}

// numSpecularSamplesGen0 is the fixed fan-out for camera-generation
// specular/glossy branches (§4.C: "n secondary rays when gen==0").
const numSpecularSamplesGen0 = 4
