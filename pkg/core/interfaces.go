package core

import (
	"context"
	"math/rand"
)

// Logger is the injectable sink for diagnostic output. Mirrors the
// single-method logging seam the rest of the renderer uses so the GI core
// never hard-codes stdout.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Sampler is the declarative sub-sequence API consumed by integrators.
// Integrators declare the 1D/2D sub-sequences they need once via
// RequestSamples (see Integrator), then retrieve per-pixel typed spans
// through the handles returned here.
type Sampler interface {
	Get1D() float64
	Get2D() Vec2

	// Request1DArray/Request2DArray pre-declare a stratified sub-sequence of
	// length n and return an opaque handle for later retrieval.
	Request1DArray(n int) int
	Request2DArray(n int) int

	// Array1D/Array2D retrieve the sub-sequence for the current pixel.
	Array1D(handle int) []float64
	Array2D(handle int) []Vec2
}

// SolidEvent classifies a hit topologically for medium-stack maintenance.
type SolidEvent int

const (
	// SolidEventNone marks a hit that isn't a medium boundary at all (a
	// shaded surface).
	SolidEventNone SolidEvent = iota
	// SolidEventEntering marks a hit where the ray is entering the
	// interior medium of the shape it struck.
	SolidEventEntering
	// SolidEventLeaving marks a hit where the ray is leaving the interior
	// medium back out to the ambient medium.
	SolidEventLeaving
)

// Medium is a participating medium: fog, smoke, murky water. The renderer
// never holds a medium directly; it always goes through the per-goroutine
// medium.Stack (see package medium), which is built against this interface.
type Medium interface {
	// Transmittance returns the fraction of radiance that survives travel
	// along ray from t=0 to t=tMax.
	Transmittance(ray Ray, tMax float64) Vec3

	// Emission returns the radiance emitted by the medium itself along the
	// same segment (e.g. a glowing fog).
	Emission(ray Ray, tMax float64) Vec3

	// SampleScatterOrTransmittance draws either a scattering distance within
	// [0, tMax] or a "no scatter, here's the transmittance to tMax" result.
	// tScatter >= tMax signals the latter case.
	SampleScatterOrTransmittance(ray Ray, tMax float64, u Vec2) (trans Vec3, tScatter float64, pdf float64)

	// Phase evaluates the phase function for scattering from wIn to wOut at
	// point.
	Phase(point, wIn, wOut Vec3) float64

	// SamplePhase draws an outgoing direction from the phase function.
	SamplePhase(point, wIn Vec3, u Vec2) (wOut Vec3, pdf float64)
}

// Caps is the bitset of BSDF capabilities a shader may expose.
type Caps uint8

const (
	CapsReflection Caps = 1 << iota
	CapsTransmission
	CapsSpecular
	CapsGlossy
	CapsDiffuse

	CapsAll = CapsReflection | CapsTransmission | CapsSpecular | CapsGlossy | CapsDiffuse
)

// Has reports whether c includes every bit set in flag.
func (c Caps) Has(flag Caps) bool {
	return c&flag == flag
}

// Any reports whether c shares any bit with flag.
func (c Caps) Any(flag Caps) bool {
	return c&flag != 0
}

// BSDFSample is the result of sampling a Shader's BSDF for an outgoing
// direction.
type BSDFSample struct {
	Value    Vec3    // BSDF value for (wIn, Wo)
	Wo       Vec3    // sampled outgoing direction
	PDF      float64 // 0 for a specular/delta sample
	UsedCaps Caps    // which capability bits produced this sample
}

// Shader is the local surface reflectance/transmittance/emission model.
// The GI core only ever queries it; evaluation and importance sampling are
// implemented by the external collaborator (out of scope here, see §6).
type Shader interface {
	Caps() Caps
	Evaluate(wIn, wOut Vec3, caps Caps) (value Vec3, pdf float64)
	Sample(wIn Vec3, u Vec2, uComponent float64, caps Caps) (BSDFSample, bool)
	Emission(ray Ray, ctx *IntersectionContext, wOut Vec3) Vec3
}

// IntersectionContext is the per-hit information a Scene yields. A nil
// Shader means the hit is a pure medium boundary: push/pop the medium
// stack per Event and continue the ray past the intersection.
type IntersectionContext struct {
	Point     Vec3
	Normal    Vec3
	T         float64
	FrontFace bool
	Shader    Shader
	Interior  Medium
	Event     SolidEvent
}

// Shape is the minimal ray-object intersection contract the acceleration
// structures (BVH, kd-tree) are built over. Scene description and concrete
// shapes are external collaborators (§1 Non-goals).
type Shape interface {
	Hit(ray Ray, tMin, tMax float64) (*IntersectionContext, bool)
	BoundingBox() AABB
}

// LightSample is a sampled point on a light for direct-lighting estimation.
type LightSample struct {
	Point     Vec3
	Normal    Vec3
	Direction Vec3 // from the shading point toward the light
	Distance  float64
	Emission  Vec3
	PDF       float64
}

// EmissionSample is a sampled emission ray for photon-shooting / light
// subpath generation. Direction points away from the light surface.
type EmissionSample struct {
	Point        Vec3
	Normal       Vec3
	Direction    Vec3
	Emission     Vec3
	AreaPDF      float64
	DirectionPDF float64
}

// Light is a light source queryable both for direct lighting (Sample) and
// for photon emission (SampleEmission).
type Light interface {
	Sample(point Vec3, random *rand.Rand) LightSample
	PDF(point Vec3, direction Vec3) float64
	SampleEmission(random *rand.Rand) EmissionSample
	EmissionPDF(point Vec3, direction Vec3) float64
}

// LightSampler selects a light from the scene's registry and reports the
// discrete selection pdf, used by both direct lighting and photon emission.
type LightSampler interface {
	SampleLight(point Vec3, u float64) (Light, float64, int)
	SampleLightEmission(u float64) (Light, float64, int)
	LightProbability(lightIndex int, point Vec3) float64
	LightCount() int
}

// Scene is the external collaborator that owns geometry, the BVH, and the
// light registry. The GI core only reads from it.
type Scene interface {
	Intersect(ray Ray, tMin, tMax float64) (*IntersectionContext, bool)
	IsIntersecting(ray Ray, tMin, tMax float64) bool
	Lights() []Light
	LightSampler() LightSampler
}

// Integrator is the sole interface the outer renderer drives per §6.
type Integrator interface {
	// RequestSamples pre-declares the stratified sub-sequences this
	// integrator will consume per pixel.
	RequestSamples(sampler Sampler)

	// PreProcess emits photons and builds maps (a no-op for integrators
	// that need no precomputation). It must honor ctx cancellation between
	// chunks and between photon walks.
	PreProcess(ctx context.Context, sampler Sampler, scene Scene, numThreads int) error

	// CastRay is the sole per-pixel entry point.
	CastRay(sample Sampler, ray Ray, gen int) (radiance Vec3, tHit float64, alpha float64)

	// Clone produces a deep copy usable by another render goroutine; any
	// precomputed photon maps are shared (reference-counted), not copied.
	Clone() Integrator

	// GetState/SetState serialize tuning knobs opaquely.
	GetState() []byte
	SetState(blob []byte) error
}
