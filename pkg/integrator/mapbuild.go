package integrator

import (
	"context"
	"math"

	"github.com/google/uuid"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/photon"
	"github.com/df07/liar-gi/pkg/photon/aabbtree"
	"github.com/df07/liar-gi/pkg/photon/kdtree"
	"github.com/df07/liar-gi/pkg/renderer"
)

// photonMaps holds every spatial index and auto-derived parameter built
// from one emission pass (§4.E). Once built it is read-only for the
// lifetime of the render (I1, §5 immutability contract) and may be
// shared by any number of cloned integrators (§9 "global shared
// buffers").
type photonMaps struct {
	BuildID uuid.UUID

	Global     *kdtree.Tree[photon.Photon]
	Caustics   *kdtree.Tree[photon.Photon]
	Irradiance *kdtree.Tree[photon.Irradiance]
	Volumetric *aabbtree.Tree

	// VolumetricPhotons backs Volumetric: each aabbtree.Sphere.Index is an
	// index into this slice, looked up by volumetricEstimate to recover
	// the photon's power/direction/IsDirect flag that the sphere itself
	// doesn't carry.
	VolumetricPhotons []photon.VolumetricPhoton

	GlobalSqrRadius   float64
	CausticsSqrRadius float64

	PhotonsEmitted int
}

// buildMaps executes §4.E: scales photon power, builds the three point
// kd-trees, auto-derives radii where the tuning surface leaves them at
// zero, optionally precomputes irradiance, then selects a per-photon
// volumetric radius and builds the final AABB tree. BuildID exists only
// for diagnostic log correlation across concurrent builds; it is never
// interpreted.
func buildMaps(ctx context.Context, cfg core.TuningConfig, emission emissionResult, logger core.Logger, numThreads int) (*photonMaps, error) {
	globalPhotons := emission.Buffers.Global.Merge()
	causticsPhotons := emission.Buffers.Caustics.Merge()
	volumetricPhotons := emission.Buffers.Volumetric.Merge()
	irradianceEntries := emission.Buffers.Irradiance.Merge()

	photon.ScalePower(globalPhotons, emission.PhotonsEmitted)
	photon.ScalePower(causticsPhotons, emission.PhotonsEmitted)
	photon.ScaleVolumetricPower(volumetricPhotons, emission.PhotonsEmitted)

	maps := &photonMaps{
		BuildID:        uuid.New(),
		PhotonsEmitted: emission.PhotonsEmitted,
	}

	photonPos := func(p photon.Photon) core.Vec3 { return p.Position }
	maps.Global = kdtree.Build(globalPhotons, photonPos)
	maps.Caustics = kdtree.Build(causticsPhotons, photonPos)

	globalRadius := cfg.Estimation[core.MapGlobal].Radius
	if globalRadius == 0 {
		globalRadius = derivePlanarRadius(photon.MedianPower(globalPhotons), cfg.Estimation[core.MapGlobal])
	}
	maps.GlobalSqrRadius = globalRadius * globalRadius

	causticsRadius := cfg.Estimation[core.MapCaustics].Radius
	if causticsRadius == 0 {
		causticsRadius = derivePlanarRadius(photon.MedianPower(causticsPhotons), cfg.Estimation[core.MapCaustics])
	}
	maps.CausticsSqrRadius = causticsRadius * causticsRadius

	// Irradiance entries must be filled in before the cache tree is built:
	// RangeSearch/Nearest query copies taken at Build time, so building the
	// tree first would freeze every entry at its pre-precomputation zero
	// value.
	if shouldPrecomputeIrradiance(cfg) && len(irradianceEntries) > 0 {
		if err := precomputeIrradiance(ctx, irradianceEntries, maps.Global, globalRadius, numThreads); err != nil {
			return nil, err
		}
	}
	maps.Irradiance = kdtree.Build(irradianceEntries, func(ir photon.Irradiance) core.Vec3 { return ir.Position })

	volumetricSpheres := deriveVolumetricRadii(volumetricPhotons, cfg.Estimation[core.MapVolumetric])
	maps.Volumetric = aabbtree.Build(volumetricSpheres)
	maps.VolumetricPhotons = volumetricPhotons

	if logger != nil {
		logger.Printf("photon maps built %s: global=%d caustics=%d volumetric=%d irradiance=%d",
			maps.BuildID, maps.Global.Len(), maps.Caustics.Len(), maps.Volumetric.Len(), maps.Irradiance.Len())
	}

	return maps, nil
}

// derivePlanarRadius implements the 2-D auto-derivation formula of §4.E:
// radius = sqrt(k * medianPower / tolerance) / pi, solving "energy per
// unit area contributed by k median-power photons = tolerance."
func derivePlanarRadius(medianPower float64, est core.EstimationConfig) float64 {
	if medianPower <= 0 || est.Tolerance <= 0 {
		return 0
	}
	return math.Sqrt(float64(est.Size)*medianPower/est.Tolerance) / math.Pi
}

// deriveVolumetricRadiusScale implements the 3-D auto-derivation formula:
// radius = cbrt(3*k*medianPower / (16*tolerance)) / pi.
func deriveVolumetricRadiusScale(medianPower float64, est core.EstimationConfig) float64 {
	if medianPower <= 0 || est.Tolerance <= 0 {
		return 0
	}
	return math.Cbrt(3*float64(est.Size)*medianPower/(16*est.Tolerance)) / math.Pi
}

func shouldPrecomputeIrradiance(cfg core.TuningConfig) bool {
	return cfg.NumFinalGatherRays > 0 && cfg.RatioPrecomputedIrradiance > 0 && cfg.IsRayTracingDirect
}

// precomputeIrradiance fills each Irradiance entry's value and achieved
// radius by range-searching the global map at that point's normal
// (§4.E "Irradiance precomputation"), fanned out across
// renderer.RunChunked.
func precomputeIrradiance(ctx context.Context, entries []photon.Irradiance, global *kdtree.Tree[photon.Photon], searchRadius float64, numThreads int) error {
	pool := renderer.NewWorkerPool(numThreads)
	k := 50

	return renderer.RunChunked(ctx, pool, len(entries), func(ctx context.Context, chunk renderer.IndexChunk) error {
		scratch := kdtree.NewNeighbourhood[photon.Photon](k)
		for i := chunk.Start; i < chunk.End; i++ {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e := &entries[i]
			neighbours := kdtree.RangeSearch(global, e.Position, searchRadius, scratch)
			if len(neighbours) == 0 {
				continue
			}

			var sum core.Vec3
			for _, p := range neighbours {
				if p.OmegaIn.Dot(e.Normal) > 0 {
					sum = sum.Add(p.Power)
				}
			}

			sqrRadius := scratch.SqrRadius()
			if sqrRadius <= 0 {
				continue
			}
			e.Irradiance = sum.Multiply(1.0 / (math.Pi * sqrRadius))
			e.SqrRadius = sqrRadius
		}
		return nil
	})
}

// deriveVolumetricRadii implements §4.E's Jarosz-Zwicker-Jensen
// bandwidth selection: a temporary kd-tree over the volumetric buffer
// finds up to m = max(5, ceil(sqrt(k))) neighbours within radiusMax for
// each photon, then scales the achieved radius by (k/m)^(1/3) to
// approximate the radius that would contain k neighbours. The temporary
// tree is discarded once every photon's radius has been assigned.
func deriveVolumetricRadii(photons []photon.VolumetricPhoton, est core.EstimationConfig) []aabbtree.Sphere {
	if len(photons) == 0 {
		return nil
	}

	k := est.Size
	if k <= 0 {
		k = 50
	}
	m := int(math.Ceil(math.Sqrt(float64(k))))
	if m < 5 {
		m = 5
	}
	scale := math.Cbrt(float64(k) / float64(m))

	radiusMax := est.Radius
	if radiusMax == 0 {
		radiusMax = deriveVolumetricRadiusScale(photon.MedianVolumetricPower(photons), est)
	}
	if radiusMax <= 0 {
		radiusMax = 1
	}

	tmp := kdtree.Build(photons, func(p photon.VolumetricPhoton) core.Vec3 { return p.Position })
	scratch := kdtree.NewNeighbourhood[photon.VolumetricPhoton](m)

	spheres := make([]aabbtree.Sphere, len(photons))
	for i, p := range photons {
		kdtree.RangeSearch(tmp, p.Position, radiusMax, scratch)
		achieved := math.Sqrt(scratch.SqrRadius())
		if achieved <= 0 {
			achieved = radiusMax
		}
		radius := achieved * scale
		if radius > radiusMax {
			radius = radiusMax
		}
		spheres[i] = aabbtree.Sphere{Center: p.Position, Radius: radius, Index: i}
		photons[i].Radius = radius
	}

	return spheres
}
