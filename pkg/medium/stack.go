// Package medium implements the ordered participating-media stack and the
// differential-ray plumbing threaded through the transport recursion
// (spec §4.B). Geometry with no surface shader is interpreted as a pure
// media boundary; entering/leaving it pushes or pops this stack.
package medium

import "github.com/df07/liar-gi/pkg/core"

// Stack is a per-goroutine LIFO of participating media. It must never be
// shared across goroutines: each render/emission worker owns one. The zero
// value is an empty stack (the ambient/vacuum medium).
type Stack struct {
	media []core.Medium
}

// New creates an empty medium stack.
func New() *Stack {
	return &Stack{}
}

// Depth returns the current stack depth (I5: net count of enter minus
// leave events along the current recursion path).
func (s *Stack) Depth() int {
	return len(s.media)
}

// Current returns the medium the ray is currently traveling through, or
// nil for vacuum.
func (s *Stack) Current() core.Medium {
	if len(s.media) == 0 {
		return nil
	}
	return s.media[len(s.media)-1]
}

// ScopedChange is a scoped acquisition record: its Close method restores
// the stack to the depth it had when Enter/Leave was called, regardless of
// how control leaves the scope (normal return, cancellation, or a
// recovered panic). This replaces the source's exception-based unwind
// with Go's defer/Close idiom (§9 "Exceptions for medium-stack unwind").
type ScopedChange struct {
	stack     *Stack
	prevDepth int
	popped    core.Medium // medium removed by Leave, pushed back on Close
}

// Close restores the stack to its depth at the time of acquisition.
// Calling it more than once is a no-op.
func (sc *ScopedChange) Close() {
	if sc.stack == nil {
		return
	}
	if len(sc.stack.media) > sc.prevDepth {
		sc.stack.media = sc.stack.media[:sc.prevDepth]
	} else if len(sc.stack.media) < sc.prevDepth && sc.popped != nil {
		sc.stack.media = append(sc.stack.media, sc.popped)
	}
	sc.stack = nil
}

// Enter pushes m onto the stack and returns a ScopedChange that must be
// closed (typically via defer) when the recursion that entered the medium
// returns. Used on SolidEventEntering.
func (s *Stack) Enter(m core.Medium) *ScopedChange {
	sc := &ScopedChange{stack: s, prevDepth: len(s.media)}
	s.media = append(s.media, m)
	return sc
}

// Leave pops the top medium and returns a ScopedChange symmetric with
// Enter: closing it pushes the popped medium back, so the stack regains
// the depth it had before Leave. Used on SolidEventLeaving.
// It is a no-op (but still returns a valid, restorable ScopedChange) if
// the stack is already empty — a ray may "leave" a medium it started
// inside without a matching push recorded in this recursion.
func (s *Stack) Leave() *ScopedChange {
	sc := &ScopedChange{stack: s, prevDepth: len(s.media)}
	if len(s.media) > 0 {
		sc.popped = s.media[len(s.media)-1]
		s.media = s.media[:len(s.media)-1]
	}
	return sc
}

// Transmittance returns the transmittance along ray up to tMax, using the
// current top-of-stack medium (vacuum, i.e. unit transmittance, if empty).
func (s *Stack) Transmittance(ray core.Ray, tMax float64) core.Vec3 {
	m := s.Current()
	if m == nil {
		return core.Vec3{X: 1, Y: 1, Z: 1}
	}
	return m.Transmittance(ray, tMax)
}

// Emission returns the medium's own emitted radiance along the segment.
func (s *Stack) Emission(ray core.Ray, tMax float64) core.Vec3 {
	m := s.Current()
	if m == nil {
		return core.Vec3{}
	}
	return m.Emission(ray, tMax)
}

// SampleScatterOrTransmittance draws a scattering distance or a
// transmittance-to-tMax result from the current medium. With no medium on
// the stack the ray travels unimpeded: transmittance 1, no scatter.
func (s *Stack) SampleScatterOrTransmittance(ray core.Ray, tMax float64, u core.Vec2) (trans core.Vec3, tScatter float64, pdf float64) {
	m := s.Current()
	if m == nil {
		return core.Vec3{X: 1, Y: 1, Z: 1}, tMax, 1.0
	}
	return m.SampleScatterOrTransmittance(ray, tMax, u)
}

// Phase evaluates the current medium's phase function.
func (s *Stack) Phase(point, in, out core.Vec3) float64 {
	m := s.Current()
	if m == nil {
		return 0
	}
	return m.Phase(point, in, out)
}

// SamplePhase draws an outgoing direction from the current medium's phase
// function.
func (s *Stack) SamplePhase(point, in core.Vec3, u core.Vec2) (core.Vec3, float64) {
	m := s.Current()
	if m == nil {
		return in, 0
	}
	return m.SamplePhase(point, in, u)
}

// HandleBoundary pushes or pops the stack according to the solid event
// reported for a shader-less intersection, and returns the ScopedChange to
// defer-close when the recursion past this boundary returns. A
// SolidEventNone hit is not a boundary at all and returns nil.
func (s *Stack) HandleBoundary(event core.SolidEvent, interior core.Medium) *ScopedChange {
	switch event {
	case core.SolidEventEntering:
		return s.Enter(interior)
	case core.SolidEventLeaving:
		return s.Leave()
	default:
		return nil
	}
}
