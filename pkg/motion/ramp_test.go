package motion

import (
	"math"
	"testing"
)

func TestRampTimeAndLength(t *testing.T) {
	cases := []struct {
		v0, v1, j float64
	}{
		{0, 100, 1e6},
		{100, 0, 1e6},
		{50, 150, 5e5},
		{10, 10, 1e6},
	}
	for _, c := range cases {
		T := rampTime(c.v0, c.v1, c.j)
		L := rampLength(c.v0, c.v1, c.j)
		if T < 0 {
			t.Fatalf("rampTime(%v,%v,%v) = %v, want >= 0", c.v0, c.v1, c.j, T)
		}
		wantL := 0.5 * (c.v0 + c.v1) * T
		if math.Abs(L-wantL) > 1e-9 {
			t.Errorf("rampLength(%v,%v,%v) = %v, want %v", c.v0, c.v1, c.j, L, wantL)
		}
	}
}

func TestRampTimeZeroForEqualVelocities(t *testing.T) {
	if got := rampTime(42, 42, 1e6); got != 0 {
		t.Errorf("rampTime with equal velocities = %v, want 0", got)
	}
}

func TestRampVelocityAtLengthEndpoints(t *testing.T) {
	v0, v1, j := 0.0, 100.0, 1e6
	total := rampLength(v0, v1, j)

	if got := rampVelocityAtLength(v0, v1, j, 0); math.Abs(got-v0) > 1e-6 {
		t.Errorf("at length 0, velocity = %v, want v0=%v", got, v0)
	}
	if got := rampVelocityAtLength(v0, v1, j, total); math.Abs(got-v1) > 1e-6 {
		t.Errorf("at full length, velocity = %v, want v1=%v", got, v1)
	}
}

func TestRampVelocityAtLengthMonotoneAccelerating(t *testing.T) {
	v0, v1, j := 0.0, 200.0, 2e6
	total := rampLength(v0, v1, j)

	prev := v0
	for frac := 0.1; frac <= 1.0; frac += 0.1 {
		v := rampVelocityAtLength(v0, v1, j, total*frac)
		if v < prev-1e-6 {
			t.Fatalf("velocity not monotone increasing at frac=%.1f: %v < %v", frac, v, prev)
		}
		prev = v
	}
}

func TestRampVelocityAtLengthSplitIsConsistent(t *testing.T) {
	// Splitting a ramp at an intermediate length and re-deriving the time
	// from rampTime(v0, vm, j) should cover exactly that length.
	v0, v1, j := 0.0, 300.0, 1e6
	total := rampLength(v0, v1, j)
	partial := total * 0.37

	vm := rampVelocityAtLength(v0, v1, j, partial)
	gotLen := rampLength(v0, vm, j)
	if math.Abs(gotLen-partial) > 1e-3 {
		t.Errorf("partial ramp length = %v, want %v (vm=%v)", gotLen, partial, vm)
	}
}

func TestSolveCruiseVelocityTrapezoidCase(t *testing.T) {
	// Plenty of length: cruiseVmax is reachable with room for a body.
	entryV, exitV, cruiseVmax, j := 0.0, 0.0, 100.0, 1e6
	length := rampLength(entryV, cruiseVmax, j) + rampLength(cruiseVmax, exitV, j) + 1000
	vc := solveCruiseVelocity(entryV, exitV, cruiseVmax, length, j)
	if math.Abs(vc-cruiseVmax) > 1e-9 {
		t.Errorf("solveCruiseVelocity trapezoid case = %v, want cruiseVmax=%v", vc, cruiseVmax)
	}
}

func TestSolveCruiseVelocityTriangleCase(t *testing.T) {
	entryV, exitV, cruiseVmax, j := 0.0, 0.0, 200.0, 1e6
	full := rampLength(entryV, cruiseVmax, j) + rampLength(cruiseVmax, exitV, j)
	length := full * 0.5 // too short to reach cruiseVmax

	vc := solveCruiseVelocity(entryV, exitV, cruiseVmax, length, j)
	if vc >= cruiseVmax {
		t.Fatalf("triangle case should resolve below cruiseVmax, got %v", vc)
	}
	gotLen := rampLength(entryV, vc, j) + rampLength(vc, exitV, j)
	if math.Abs(gotLen-length) > 1e-2 {
		t.Errorf("resolved cruise velocity %v gives head+tail length %v, want %v", vc, gotLen, length)
	}
}
