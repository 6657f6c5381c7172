package integrator

import (
	"context"
	"math/rand"
	"sync/atomic"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/medium"
	"github.com/df07/liar-gi/pkg/photon"
	"github.com/df07/liar-gi/pkg/renderer"
)

// emissionResult summarizes one emission pass, feeding both map
// construction (mapbuild.go) and the §7 diagnostic on truncation.
type emissionResult struct {
	Buffers        *photon.Buffers
	PhotonsEmitted int
	Truncated      bool
}

// runEmission drives the photon emission/tracing pass of §4.D: walks are
// fanned out across renderer.WorkerPool over the half-open range
// [0, maxNumberOfPhotons), each walk seeded deterministically from
// (primarySeed, walkIndex), until either the global buffer reaches
// globalMapSize or the cumulative emitted count reaches
// maxNumberOfPhotons.
func runEmission(ctx context.Context, scene core.Scene, cfg core.TuningConfig, primarySeed int64, logger core.Logger, numThreads int) (emissionResult, error) {
	buffers := photon.NewBuffers()
	storageProb := cfg.StorageProbability()

	emitted := 0
	truncated := false
	var walked atomic.Int64

	pool := renderer.NewWorkerPool(numThreads)
	reporter := renderer.NewProgressReporter(logger, "photon emission", cfg.MaxNumberOfPhotons)
	defer reporter.Close()

	err := renderer.RunChunked(ctx, pool, cfg.MaxNumberOfPhotons, func(ctx context.Context, chunk renderer.IndexChunk) error {
		global := buffers.Global.NewShard()
		caustics := buffers.Caustics.NewShard()
		volumetric := buffers.Volumetric.NewShard()
		irradiance := buffers.Irradiance.NewShard()

		for i := chunk.Start; i < chunk.End; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if buffers.Global.Len() >= cfg.GlobalMapSize {
				return nil
			}

			rng := core.NewWalkRand(primarySeed, i)
			stack := medium.New()
			tracePhoton(scene, cfg, storageProb, rng, stack, global, caustics, volumetric, irradiance)
			walked.Add(1)
			reporter.Add(1)
		}
		return nil
	})
	if err != nil {
		return emissionResult{}, err
	}

	emitted = int(walked.Load())
	if buffers.Global.Len() < cfg.GlobalMapSize {
		truncated = true
	}

	if truncated && logger != nil {
		warning := &core.ResourceExhaustion{
			Kind:      core.MapGlobal.String(),
			Target:    cfg.GlobalMapSize,
			Attained:  buffers.Global.Len(),
			Attempted: emitted,
		}
		logger.Printf("%s", warning.Error())
	}

	return emissionResult{Buffers: buffers, PhotonsEmitted: emitted, Truncated: truncated}, nil
}

// walkState carries the per-photon-walk accumulators through tracePhoton's
// recursion: current throughput (spectrum), generation, and whether any
// specular/glossy bounce has occurred yet (isCaustic).
type walkState struct {
	throughput core.Vec3
	gen        int
	isCaustic  bool
}

// tracePhoton implements a single photon walk, §4.D steps (1)-(7).
func tracePhoton(
	scene core.Scene,
	cfg core.TuningConfig,
	storageProb [3]float64,
	rng *rand.Rand,
	stack *medium.Stack,
	global, caustics *photon.Shard[photon.Photon],
	volumetric *photon.Shard[photon.VolumetricPhoton],
	irradiance *photon.Shard[photon.Irradiance],
) {
	lights := scene.Lights()
	if len(lights) == 0 {
		return
	}

	// (1) pick a light, sample position + direction
	es, ok := core.SampleLightEmission(lights, rng)
	if !ok || es.AreaPDF <= 0 || es.DirectionPDF <= 0 || es.Emission.IsZero() {
		return
	}

	throughput := es.Emission.Multiply(1.0 / (es.AreaPDF * es.DirectionPDF))
	ray := core.NewRay(es.Point, es.Direction)

	walkPhoton(scene, cfg, storageProb, rng, stack, ray, walkState{throughput: throughput, gen: 0, isCaustic: false},
		global, caustics, volumetric, irradiance)
}

func walkPhoton(
	scene core.Scene,
	cfg core.TuningConfig,
	storageProb [3]float64,
	rng *rand.Rand,
	stack *medium.Stack,
	ray core.Ray,
	state walkState,
	global, caustics *photon.Shard[photon.Photon],
	volumetric *photon.Shard[photon.VolumetricPhoton],
	irradiance *photon.Shard[photon.Irradiance],
) {
	if state.gen > cfg.MaxRayGeneration {
		return
	}

	ctx, hit := scene.Intersect(ray, rayEpsilon, maxPhotonDistance)
	if !hit {
		return
	}

	// (2) sample the current medium for a scatter distance or
	// transmittance-to-hit
	u := core.NewVec2(rng.Float64(), rng.Float64())
	trans, tScatter, tPDF := stack.SampleScatterOrTransmittance(ray, ctx.T, u)
	if tPDF <= 0 {
		return
	}
	throughput := state.throughput.MultiplyVec(trans).Multiply(1.0 / tPDF)

	// (3) Russian roulette (§9 open question: average-absolute, not
	// luminance). A photon surviving RR keeps its pre-attenuation power
	// rather than being scaled up, the classic photon-mapping RR: photons
	// are dropped rather than made disproportionately powerful, keeping
	// per-photon power roughly uniform for density estimation.
	oldAvg := avgAbs(state.throughput)
	newAvg := avgAbs(throughput)
	survival := 1.0
	if oldAvg > 0 {
		survival = newAvg / oldAvg
	}
	if survival > 1 {
		survival = 1
	}
	if survival <= 0 || rng.Float64() > survival {
		return
	}
	throughput = state.throughput

	if tScatter < ctx.T {
		// (4) volumetric deposit, then continue via phase-function sample
		scatterPoint := ray.At(tScatter)
		if rng.Float64() < storageProb[core.MapVolumetric] {
			radius := cfg.Estimation[core.MapVolumetric].Radius
			volumetric.Append(photon.VolumetricPhoton{
				Photon: photon.Photon{
					Position: scatterPoint,
					OmegaIn:  ray.Direction.Negate(),
					Power:    throughput,
				},
				Radius:   radius,
				IsDirect: state.gen == 0,
			})
		}

		wOut, phasePDF := stack.SamplePhase(scatterPoint, ray.Direction, core.NewVec2(rng.Float64(), rng.Float64()))
		if phasePDF <= 0 {
			return
		}
		nextRay := core.NewRay(scatterPoint, wOut)
		walkPhoton(scene, cfg, storageProb, rng, stack, nextRay,
			walkState{throughput: throughput, gen: state.gen + 1, isCaustic: state.isCaustic},
			global, caustics, volumetric, irradiance)
		return
	}

	if ctx.Shader == nil {
		// (5) media boundary: push/pop and continue past the hit
		if sc := stack.HandleBoundary(ctx.Event, ctx.Interior); sc != nil {
			defer sc.Close()
		}
		nextRay := core.NewRay(ray.At(ctx.T+rayEpsilon), ray.Direction)
		walkPhoton(scene, cfg, storageProb, rng, stack, nextRay,
			walkState{throughput: throughput, gen: state.gen + 1, isCaustic: state.isCaustic},
			global, caustics, volumetric, irradiance)
		return
	}

	// (6) surface hit: deposit into global/caustics/irradiance
	caps := ctx.Shader.Caps()
	depositDirect := !cfg.IsRayTracingDirect || cfg.NumFinalGatherRays > 0
	if caps.Has(core.CapsDiffuse) && (state.gen > 0 || depositDirect) {
		if rng.Float64() < storageProb[core.MapGlobal] {
			global.Append(photon.Photon{Position: ctx.Point, OmegaIn: ray.Direction.Negate(), Power: throughput})
		}
		if state.isCaustic && rng.Float64() < storageProb[core.MapCaustics] {
			caustics.Append(photon.Photon{Position: ctx.Point, OmegaIn: ray.Direction.Negate(), Power: throughput})
		}
		if rng.Float64() < cfg.RatioPrecomputedIrradiance {
			irradiance.Append(photon.Irradiance{Position: ctx.Point, Normal: ctx.Normal})
		}
	}

	// (7) sample the BSDF and continue
	wIn := ray.Direction.Negate()
	out, ok := ctx.Shader.Sample(wIn, core.NewVec2(rng.Float64(), rng.Float64()), rng.Float64(), core.CapsAll)
	if !ok || out.PDF < 0 || out.Value.IsZero() {
		return
	}

	cosine := absFloat(out.Wo.Dot(ctx.Normal))
	pdf := out.PDF
	if pdf == 0 {
		pdf = 1
	}
	nextThroughput := throughput.MultiplyVec(out.Value).Multiply(cosine / pdf)

	bsdfSurvival := 1.0
	if oldAvg := avgAbs(throughput); oldAvg > 0 {
		bsdfSurvival = avgAbs(nextThroughput) / oldAvg
	}
	if bsdfSurvival > 1 {
		bsdfSurvival = 1
	}
	if bsdfSurvival <= 0 || rng.Float64() > bsdfSurvival {
		return
	}
	nextThroughput = throughput

	var sc *medium.ScopedChange
	if out.UsedCaps.Has(core.CapsTransmission) {
		sc = stack.Enter(ctx.Interior)
	}

	nextIsCaustic := state.isCaustic || (state.gen == 0 && out.UsedCaps.Any(core.CapsSpecular|core.CapsGlossy))
	nextRay := core.NewRay(ctx.Point, out.Wo)
	walkPhoton(scene, cfg, storageProb, rng, stack, nextRay,
		walkState{throughput: nextThroughput, gen: state.gen + 1, isCaustic: nextIsCaustic},
		global, caustics, volumetric, irradiance)

	if sc != nil {
		sc.Close()
	}
}

const maxPhotonDistance = 1e8

func avgAbs(v core.Vec3) float64 {
	return (absFloat(v.X) + absFloat(v.Y) + absFloat(v.Z)) / 3.0
}

func absFloat(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
