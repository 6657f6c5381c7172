package integrator

import (
	"math"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/medium"
	"github.com/df07/liar-gi/pkg/photon/kdtree"
)

// histogramAlpha is the uniform-mixing weight of the importance-sampled
// gather distribution (§4.F "Importance-sampled gather"), kept separate
// from the BSDF's own pdf so a handful of bright photons can't starve
// the rest of the hemisphere of samples.
const histogramAlpha = 0.05

const histogramBinsTheta = 8
const histogramBinsPhi = 8
const histogramBins = histogramBinsTheta * histogramBinsPhi

// buildONB constructs an orthonormal basis with n as the up axis, Duff
// et al.'s branchless construction.
func buildONB(n core.Vec3) (tangent, bitangent core.Vec3) {
	sign := math.Copysign(1, n.Z)
	a := -1 / (sign + n.Z)
	b := n.X * n.Y * a
	tangent = core.NewVec3(1+sign*n.X*n.X*a, sign*b, -sign*n.X)
	bitangent = core.NewVec3(b, sign+n.Y*n.Y*a, -n.Y)
	return tangent, bitangent
}

// hemisphereHistogram is the 8x8 incoming-power histogram over
// (cosTheta, phi) bins built from the nearest global photons, used to
// bias gather directions toward bright regions of the hemisphere.
type hemisphereHistogram struct {
	weight             [histogramBins]float64
	cdf                [histogramBins]float64
	total              float64
	tangent, bitangent core.Vec3
	normal             core.Vec3
}

func buildHemisphereHistogram(maps *photonMaps, s *scratch, point, normal core.Vec3) *hemisphereHistogram {
	radius := math.Sqrt(maps.GlobalSqrRadius)
	tangent, bitangent := buildONB(normal)
	h := &hemisphereHistogram{tangent: tangent, bitangent: bitangent, normal: normal}

	if radius <= 0 {
		return h
	}
	neighbours := kdtree.RangeSearch(maps.Global, point, radius, s.globalN)

	for _, p := range neighbours {
		dir := p.OmegaIn
		cosTheta := dir.Dot(normal)
		if cosTheta <= 0 {
			continue
		}
		x := dir.Dot(tangent)
		y := dir.Dot(bitangent)
		phi := math.Atan2(y, x)
		if phi < 0 {
			phi += 2 * math.Pi
		}

		thetaBin := clampBin(int(cosTheta*histogramBinsTheta), histogramBinsTheta)
		phiBin := clampBin(int(phi/(2*math.Pi)*histogramBinsPhi), histogramBinsPhi)

		bin := thetaBin*histogramBinsPhi + phiBin
		h.weight[bin] += p.Power.Luminance()
	}

	cumulative := 0.0
	for i, w := range h.weight {
		cumulative += w
		h.cdf[i] = cumulative
	}
	h.total = cumulative
	return h
}

func clampBin(bin, count int) int {
	if bin < 0 {
		return 0
	}
	if bin >= count {
		return count - 1
	}
	return bin
}

// sample draws a world-space direction and its mixture pdf (solid-angle
// measure): with probability histogramAlpha a uniform hemisphere
// direction, otherwise a direction drawn from the photon-weighted bin
// distribution via inverse-transform sampling. u drives the in-bin
// position and the discrete bin choice; mixSelector drives the
// uniform-vs-weighted branch.
func (h *hemisphereHistogram) sample(u core.Vec2, mixSelector float64) (core.Vec3, float64) {
	var thetaBin, phiBin int
	var thetaFrac, phiFrac float64
	if h.total <= 0 || mixSelector < histogramAlpha {
		thetaBin = clampBin(int(u.X*histogramBinsTheta), histogramBinsTheta)
		phiBin = clampBin(int(u.Y*histogramBinsPhi), histogramBinsPhi)
		thetaFrac = u.X*histogramBinsTheta - float64(thetaBin)
		phiFrac = u.Y*histogramBinsPhi - float64(phiBin)
	} else {
		target := u.X * h.total
		bin := histogramBins - 1
		for i, c := range h.cdf {
			if target <= c {
				bin = i
				break
			}
		}
		thetaBin = bin / histogramBinsPhi
		phiBin = bin % histogramBinsPhi
		if h.weight[bin] > 0 {
			thetaFrac = (target - (h.cdf[bin] - h.weight[bin])) / h.weight[bin]
		}
		phiFrac = u.Y
	}

	cosTheta := (float64(thetaBin) + thetaFrac) / histogramBinsTheta
	sinTheta := math.Sqrt(math.Max(0, 1-cosTheta*cosTheta))
	phi := (float64(phiBin) + phiFrac) / histogramBinsPhi * 2 * math.Pi

	localDir := h.tangent.Multiply(sinTheta * math.Cos(phi)).
		Add(h.bitangent.Multiply(sinTheta * math.Sin(phi))).
		Add(h.normal.Multiply(cosTheta)).Normalize()

	binSolidAngle := (2 * math.Pi / histogramBinsPhi) * (1.0 / histogramBinsTheta)
	uniformPDF := 1.0 / (2 * math.Pi)

	var binPDF float64
	if h.total > 0 {
		bin := thetaBin*histogramBinsPhi + phiBin
		binPDF = (h.weight[bin] / h.total) / binSolidAngle
	}

	pdf := histogramAlpha*uniformPDF + (1-histogramAlpha)*binPDF
	return localDir, pdf
}

// finalGather implements §4.F's final-gather estimator for primary
// diffuse hits. With gather rays disabled, it falls back to the
// irradiance estimate scaled by the surface's diffuse response
// (evaluated at a canonical direction, valid for the Lambertian-style
// BSDFs this estimator assumes — a simplification the pure irradiance
// cache can't avoid without the BSDF's albedo exposed separately).
// Otherwise it draws n directions from the histogram-biased hemisphere
// distribution, traces each to its terminus, and performs a radiance
// estimate there rather than recursing; a stratified
// VolumetricGatherQuality fraction of rays additionally collect an
// inline beam estimate along their segment, scaled by
// 1/VolumetricGatherQuality to remain unbiased.
func finalGather(di *DirectIntegrator, maps *photonMaps, s *scratch, sample core.Sampler, stack *medium.Stack, point, normal, wIn core.Vec3, shader core.Shader) core.Vec3 {
	cfg := di.Config
	n := cfg.NumFinalGatherRays
	if n <= 0 {
		irr := irradianceEstimate(maps, s, point, normal)
		diffuse, _ := shader.Evaluate(normal, normal, core.CapsDiffuse)
		return irr.MultiplyVec(diffuse)
	}

	hist := buildHemisphereHistogram(maps, s, point, normal)

	var sum core.Vec3
	for i := 0; i < n; i++ {
		u := sample.Get2D()
		mixSelector := sample.Get1D()

		dir, pdf := hist.sample(u, mixSelector)
		if pdf <= 0 {
			continue
		}
		cosine := dir.Dot(normal)
		if cosine <= 0 {
			continue
		}

		value, _ := shader.Evaluate(wIn, dir, core.CapsDiffuse)
		if value.IsZero() {
			continue
		}

		gatherRay := core.NewRay(point, dir)
		radiance, hitDistance, hitSurface := traceGatherRay(di, maps, s, stack, gatherRay)
		if hitSurface && cfg.NumSecondaryGatherRays > 0 && hitDistance*hitDistance < maps.GlobalSqrRadius {
			radiance = secondaryGather(di, maps, s, sample, stack, gatherRay, hitDistance)
		}

		if cfg.VolumetricGatherQuality > 0 && len(maps.VolumetricPhotons) > 0 && sample.Get1D() < cfg.VolumetricGatherQuality {
			beam := volumetricEstimate(maps, s, gatherRay, rayEpsilon, hitDistance, gatherRay.Direction,
				stack.Phase, func(tFrom, tTo float64) core.Vec3 { return stack.Transmittance(gatherRay, tTo) },
				maps.VolumetricPhotons, false)
			radiance = radiance.Add(beam.Multiply(1.0 / cfg.VolumetricGatherQuality))
		}

		contribution := value.MultiplyVec(radiance).Multiply(cosine / (float64(n) * pdf))
		sum = sum.Add(contribution)
	}
	return sum
}

// traceGatherRay implements §4.F's gather-ray state machine: push/pop
// media boundaries and tail-advance until a surface is hit or the ray
// escapes, then perform one radiance estimate at that surface instead
// of recursing further. Returns the accumulated radiance, the distance
// traveled to the terminal hit (used by the secondary-gather trigger
// and as the volumetric segment bound), and whether a surface was
// actually hit.
func traceGatherRay(di *DirectIntegrator, maps *photonMaps, s *scratch, stack *medium.Stack, ray core.Ray) (core.Vec3, float64, bool) {
	current := ray
	traveled := 0.0
	for gen := 0; gen <= di.Config.MaxRayGeneration; gen++ {
		ctx, hit := di.Scene.Intersect(current, rayEpsilon, math.Inf(1))
		if !hit {
			return core.Vec3{}, traveled, false
		}
		traveled += ctx.T

		if ctx.Shader != nil {
			radiance := radianceEstimate(maps, s, ctx.Point, current.Direction.Negate(), ctx.Shader)
			return radiance, traveled, true
		}

		if sc := stack.HandleBoundary(ctx.Event, ctx.Interior); sc != nil {
			sc.Close()
		}
		current = core.NewRay(current.At(ctx.T+rayEpsilon), current.Direction)
	}
	return core.Vec3{}, traveled, false
}

// secondaryGather handles §4.F's "close hit" case: the gather ray's
// surface landed nearer than the achieved global-map radius, where a
// single radiance estimate would be unreliably noisy. Instead it
// combines direct lighting at that point with NumSecondaryGatherRays
// fresh gather rays, avoiding the blotchy low-frequency artefact a lone
// estimate would leave at geometry creases.
func secondaryGather(di *DirectIntegrator, maps *photonMaps, s *scratch, sample core.Sampler, stack *medium.Stack, ray core.Ray, hitDistance float64) core.Vec3 {
	ctx, hit := di.Scene.Intersect(ray, rayEpsilon, math.Inf(1))
	if !hit || ctx.Shader == nil {
		return core.Vec3{}
	}

	wIn := ray.Direction
	direct := di.directLighting(stack, ctx.Point, ctx.Normal, wIn, ctx.Shader)

	n := di.Config.NumSecondaryGatherRays
	var indirect core.Vec3
	for i := 0; i < n; i++ {
		u := sample.Get2D()
		uComp := sample.Get1D()
		out, ok := ctx.Shader.Sample(wIn, u, uComp, core.CapsDiffuse)
		if !ok || out.PDF <= 0 || out.Value.IsZero() {
			continue
		}
		cosine := out.Wo.Dot(ctx.Normal)
		if cosine <= 0 {
			continue
		}
		subRay := core.NewRay(ctx.Point, out.Wo)
		radiance, _, _ := traceGatherRay(di, maps, s, stack, subRay)
		indirect = indirect.Add(out.Value.MultiplyVec(radiance).Multiply(cosine / (float64(n) * out.PDF)))
	}

	return direct.Add(indirect)
}
