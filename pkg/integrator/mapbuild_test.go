package integrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/photon"
	"github.com/df07/liar-gi/pkg/photon/kdtree"
)

func gridEmission(n int) emissionResult {
	buffers := photon.NewBuffers()
	global := buffers.Global.NewShard()
	irr := buffers.Irradiance.NewShard()
	for i := 0; i < n; i++ {
		p := core.NewVec3(float64(i%10), float64(i/10), 0)
		global.Append(photon.Photon{Position: p, OmegaIn: core.NewVec3(0, 0, 1), Power: core.NewVec3(1, 1, 1)})
		if i%5 == 0 {
			irr.Append(photon.Irradiance{Position: p, Normal: core.NewVec3(0, 0, 1)})
		}
	}
	return emissionResult{Buffers: buffers, PhotonsEmitted: n}
}

func TestBuildMaps_ScalesPowerAndBuildsTrees(t *testing.T) {
	cfg := core.DefaultTuningConfig()
	emission := gridEmission(40)

	maps, err := buildMaps(context.Background(), cfg, emission, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, 40, maps.Global.Len())
	assert.Greater(t, maps.GlobalSqrRadius, 0.0)
}

func TestDerivePlanarRadius_ZeroMedianPowerIsZero(t *testing.T) {
	est := core.EstimationConfig{Tolerance: 0.05, Size: 50}
	assert.Equal(t, 0.0, derivePlanarRadius(0, est))
}

func TestDerivePlanarRadius_PositiveInputsYieldPositiveRadius(t *testing.T) {
	est := core.EstimationConfig{Tolerance: 0.05, Size: 50}
	r := derivePlanarRadius(1.0, est)
	assert.Greater(t, r, 0.0)
}

func TestDeriveVolumetricRadii_EveryPhotonGetsAPositiveFiniteRadius(t *testing.T) {
	photons := make([]photon.VolumetricPhoton, 30)
	for i := range photons {
		photons[i] = photon.VolumetricPhoton{
			Photon: photon.Photon{
				Position: core.NewVec3(float64(i), 0, 0),
				Power:    core.NewVec3(1, 1, 1),
			},
		}
	}
	est := core.EstimationConfig{Radius: 2.0, Tolerance: 0.05, Size: 10}

	spheres := deriveVolumetricRadii(photons, est)
	require.Len(t, spheres, len(photons))
	for i, s := range spheres {
		assert.Greater(t, s.Radius, 0.0)
		assert.LessOrEqual(t, s.Radius, est.Radius)
		assert.Equal(t, i, s.Index)
	}
}

func TestDeriveVolumetricRadii_EmptyInputReturnsNil(t *testing.T) {
	assert.Nil(t, deriveVolumetricRadii(nil, core.EstimationConfig{Size: 10}))
}

func TestBuildMaps_PrecomputesIrradianceWhenEnabled(t *testing.T) {
	cfg := core.DefaultTuningConfig()
	cfg.NumFinalGatherRays = 4
	cfg.IsRayTracingDirect = true
	cfg.RatioPrecomputedIrradiance = 1.0
	cfg.Estimation[core.MapGlobal].Radius = 5.0

	emission := gridEmission(60)

	maps, err := buildMaps(context.Background(), cfg, emission, nil, 2)
	require.NoError(t, err)
	require.Greater(t, maps.Irradiance.Len(), 0)

	entry, _, ok := kdtree.Nearest(maps.Irradiance, core.NewVec3(0, 0, 0), 1e-6, nil)
	require.True(t, ok)
	assert.Greater(t, entry.Irradiance.X, 0.0)
	assert.Greater(t, entry.SqrRadius, 0.0)
}
