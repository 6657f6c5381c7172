package medium

import (
	"testing"

	"github.com/df07/liar-gi/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fogMedium struct {
	name string
}

func (f *fogMedium) Transmittance(ray core.Ray, tMax float64) core.Vec3 {
	return core.Vec3{X: 0.5, Y: 0.5, Z: 0.5}
}
func (f *fogMedium) Emission(ray core.Ray, tMax float64) core.Vec3 { return core.Vec3{} }
func (f *fogMedium) SampleScatterOrTransmittance(ray core.Ray, tMax float64, u core.Vec2) (core.Vec3, float64, float64) {
	return core.Vec3{X: 1, Y: 1, Z: 1}, tMax, 1.0
}
func (f *fogMedium) Phase(point, in, out core.Vec3) float64 { return 1.0 / (4 * 3.14159265) }
func (f *fogMedium) SamplePhase(point, in core.Vec3, u core.Vec2) (core.Vec3, float64) {
	return in.Negate(), 1.0 / (4 * 3.14159265)
}

func TestStack_EmptyIsVacuum(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Depth())
	assert.Nil(t, s.Current())

	ray := core.NewRay(core.NewVec3(0, 0, 0), core.NewVec3(0, 0, 1))
	trans := s.Transmittance(ray, 10)
	assert.Equal(t, core.Vec3{X: 1, Y: 1, Z: 1}, trans)
}

func TestStack_EnterLeaveBalance(t *testing.T) {
	s := New()
	outer := &fogMedium{name: "outer"}
	inner := &fogMedium{name: "inner"}

	scOuter := s.Enter(outer)
	require.Equal(t, 1, s.Depth())
	require.Same(t, outer, s.Current().(*fogMedium))

	scInner := s.Enter(inner)
	require.Equal(t, 2, s.Depth())
	require.Same(t, inner, s.Current().(*fogMedium))

	scInner.Close()
	assert.Equal(t, 1, s.Depth())
	assert.Same(t, outer, s.Current().(*fogMedium))

	scOuter.Close()
	assert.Equal(t, 0, s.Depth())
	assert.Nil(t, s.Current())
}

// P6: medium stack depth at any castRay exit equals the depth at entry,
// on every path including a panic mid-recursion.
func TestStack_BalancedAcrossPanic(t *testing.T) {
	s := New()

	func() {
		defer func() {
			recover()
		}()
		sc := s.Enter(&fogMedium{name: "interior"})
		defer sc.Close()
		panic("simulated recursion failure")
	}()

	assert.Equal(t, 0, s.Depth(), "stack must unwind even when the recursion panics")
}

func TestStack_LeaveOnEmptyStackIsNoop(t *testing.T) {
	s := New()
	sc := s.Leave()
	defer sc.Close()
	assert.Equal(t, 0, s.Depth())
}

func TestStack_HandleBoundary(t *testing.T) {
	s := New()
	m := &fogMedium{name: "glass interior"}

	scEnter := s.HandleBoundary(core.SolidEventEntering, m)
	require.NotNil(t, scEnter)
	assert.Equal(t, 1, s.Depth())

	scLeave := s.HandleBoundary(core.SolidEventLeaving, nil)
	require.NotNil(t, scLeave)
	assert.Equal(t, 0, s.Depth())

	scNone := s.HandleBoundary(core.SolidEventNone, nil)
	assert.Nil(t, scNone)

	scEnter.Close()
	scLeave.Close()
}
