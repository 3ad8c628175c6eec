package motion

import (
	"math"
	"testing"
)

func TestSegmentsFor(t *testing.T) {
	cases := []struct {
		dur  float64
		want int
	}{
		{0, 0},
		{-1, 0},
		{NomSegmentTime * 0.5, 1},
		{NomSegmentTime, 1},
		{NomSegmentTime * 2.5, 3},
	}
	for _, c := range cases {
		if got := segmentsFor(c.dur); got != c.want {
			t.Errorf("segmentsFor(%v) = %v, want %v", c.dur, got, c.want)
		}
	}
}

func TestForwardDiffEndpointVelocities(t *testing.T) {
	r := Ramp{V0: 0, V1: 100, A0: 0, A1: 0, J0: 1e6, J1: 0, T: rampTime(0, 100, 1e6)}
	segments := 8
	fd := NewForwardDiff(r, segments)

	// The first segment's sampled (midpoint) velocity must be close to v0
	// for a ramp starting at rest, and walking the accumulator chain for
	// the remaining segments must land near v1 by the last segment.
	if fd.SegmentVelocity < -1e-6 {
		t.Errorf("initial segment velocity = %v, want >= 0", fd.SegmentVelocity)
	}

	v := fd.SegmentVelocity
	for i := 1; i < segments; i++ {
		fd.AdvanceSecondHalf()
		v = fd.SegmentVelocity
	}
	if math.Abs(v-r.V1) > r.V1*0.15 {
		t.Errorf("last segment velocity = %v, want close to V1=%v", v, r.V1)
	}
}

func TestForwardDiffMonotoneForPureAcceleration(t *testing.T) {
	r := Ramp{V0: 0, V1: 50, A0: 0, A1: 0, J0: 1e6, J1: 0, T: rampTime(0, 50, 1e6)}
	segments := 6
	fd := NewForwardDiff(r, segments)

	prev := fd.SegmentVelocity
	for i := 1; i < segments; i++ {
		fd.AdvanceSecondHalf()
		if fd.SegmentVelocity < prev-1e-9 {
			t.Fatalf("segment velocity decreased at step %d: %v < %v", i, fd.SegmentVelocity, prev)
		}
		prev = fd.SegmentVelocity
	}
}

func TestBezierMonomialEndpointContinuity(t *testing.T) {
	r := Ramp{V0: 10, V1: 90, A0: 0, A1: 0, J0: 2e6, J1: 2e6, T: rampTime(10, 90, 2e6)}
	a, b, c, d, e, f := bezierMonomial(r)
	v0 := f
	v1 := a + b + c + d + e + f
	if math.Abs(v0-r.V0) > 1e-9 {
		t.Errorf("V(0) = %v, want V0=%v", v0, r.V0)
	}
	if math.Abs(v1-r.V1) > 1e-6 {
		t.Errorf("V(1) = %v, want V1=%v", v1, r.V1)
	}
}
