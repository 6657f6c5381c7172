package integrator

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/df07/liar-gi/pkg/photon"
)

// capturingLogger records every Printf call for assertion, rather than
// writing to a stream a test would need to intercept.
type capturingLogger struct {
	lines []string
}

func (l *capturingLogger) Printf(format string, args ...interface{}) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func TestRunEmission_TruncatesWhenGlobalMapNeverFilled(t *testing.T) {
	cfg := testTuningConfig()
	cfg.MaxNumberOfPhotons = 100
	cfg.GlobalMapSize = 10_000

	scene := floorSceneFixture{shader: diffuseTestShader{albedo: core.NewVec3(0.8, 0.8, 0.8), normal: core.NewVec3(0, 0, 1)}}
	logger := &capturingLogger{}

	result, err := runEmission(context.Background(), scene, cfg, 1, logger, 2)
	require.NoError(t, err)

	assert.True(t, result.Truncated)
	assert.Equal(t, 100, result.PhotonsEmitted)
	assert.Less(t, result.Buffers.Global.Len(), cfg.GlobalMapSize)
	require.Len(t, logger.lines, 1)
	assert.Contains(t, logger.lines[0], "emission truncated")

	photons := result.Buffers.Global.Merge()
	photon.ScalePower(photons, result.PhotonsEmitted)
	for _, p := range photons {
		assert.False(t, math.IsNaN(p.Power.X))
		assert.GreaterOrEqual(t, p.Power.X, 0.0)
	}
}

func TestRunEmission_NilLoggerDoesNotPanicOnTruncation(t *testing.T) {
	cfg := testTuningConfig()
	cfg.MaxNumberOfPhotons = 50
	cfg.GlobalMapSize = 10_000

	scene := floorSceneFixture{shader: diffuseTestShader{albedo: core.NewVec3(0.8, 0.8, 0.8), normal: core.NewVec3(0, 0, 1)}}

	assert.NotPanics(t, func() {
		result, err := runEmission(context.Background(), scene, cfg, 2, nil, 1)
		require.NoError(t, err)
		assert.True(t, result.Truncated)
	})
}
