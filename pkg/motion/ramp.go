package motion

import "math"

// rampTime returns the duration of a jerk-limited triangular-jerk ramp
// (no constant-acceleration phase) that changes velocity from v0 to v1
// under jerk magnitude bound j. Grounded on the closed-form jerk-ramp
// algebra of other_examples/pfeiferj-mapd__jerk_calc.go's phase1/phase2
// velocity-time relations, specialised to the symmetric (no plateau)
// case used by the quintic head/tail ramps of spec.md §4.4.
func rampTime(v0, v1, j float64) float64 {
	dv := math.Abs(v1 - v0)
	if dv <= 0 || j <= 0 {
		return 0
	}
	return 2.0 * math.Sqrt(dv/j)
}

// rampLength returns the distance covered by the same ramp. For a
// triangular-jerk profile the distance is exactly the mean of entry and
// exit velocity times the ramp's duration (derivable from integrating
// the two symmetric jerk phases; verified algebraically against
// rampTime's T = 2*sqrt(dv/j)).
func rampLength(v0, v1, j float64) float64 {
	t := rampTime(v0, v1, j)
	return 0.5 * (v0 + v1) * t
}

// rampVelocityAtLength solves, by bisection, for the intermediate
// velocity vm reached after covering exactly `length` of a ramp from v0
// toward vTarget under jerk j. Used by the block preparer when a head or
// tail section must be split across a buffer boundary: the remaining
// physics (time at that point) follows directly from rampTime(v0, vm, j).
// A numeric solve is used rather than an inverted closed form because
// length is cubic in ramp duration; no library in the pack offers a
// jerk-ramp root finder, so this is deliberately plain stdlib math.
func rampVelocityAtLength(v0, vTarget, j, length float64) float64 {
	total := rampLength(v0, vTarget, j)
	if total <= 0 {
		return v0
	}
	if length >= total {
		return vTarget
	}
	if length <= 0 {
		return v0
	}
	lo, hi := v0, vTarget
	if lo > hi {
		lo, hi = hi, lo
	}
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2.0
		l := rampLength(v0, mid, j)
		if l < length {
			if vTarget > v0 {
				lo = mid
			} else {
				hi = mid
			}
		} else {
			if vTarget > v0 {
				hi = mid
			} else {
				lo = mid
			}
		}
	}
	return (lo + hi) / 2.0
}

// rampAccelerationAtVelocity returns the signed acceleration a triangular-
// jerk ramp from v0 to v1 (under jerk magnitude j) has at the instant its
// velocity passes through v. The ramp's acceleration rises linearly
// (a(t)=j*t) over the first half of its duration and falls linearly back
// to zero (a(t)=j*(T-t)) over the second half; inverting velocity for
// time on each half and substituting gives the closed form used here,
// a(v) = sqrt(2*j*min(v-v0, v1-v)), which is exactly 0 at the ramp's true
// endpoints (v==v0 or v==v1) and peaks at the ramp's velocity midpoint.
// Used by calculate_block to give a head or tail split across a buffer
// boundary its true interior acceleration, rather than the 0 that only
// holds at the full ramp's own start/end.
func rampAccelerationAtVelocity(v0, v1, j, v float64) float64 {
	if j <= 0 || v0 == v1 {
		return 0
	}
	toStart := math.Abs(v - v0)
	toEnd := math.Abs(v1 - v)
	d := toStart
	if toEnd < d {
		d = toEnd
	}
	if d <= 0 {
		return 0
	}
	mag := math.Sqrt(2.0 * j * d)
	if v1 < v0 {
		return -mag
	}
	return mag
}

// solveCruiseVelocity finds the highest velocity reachable, no greater
// than cruiseVmax, such that the head ramp (entryV -> vc) plus the tail
// ramp (vc -> exitV) fit within length. If the full head+tail at
// cruiseVmax already fits, cruiseVmax itself is returned (trapezoid
// case, body absorbs the remainder); otherwise the unique vc making
// headLen(vc)+tailLen(vc) == length is found by bisection (the
// "symmetric triangle" case of spec.md §8 scenario 2).
func solveCruiseVelocity(entryV, exitV, cruiseVmax, length, j float64) float64 {
	fit := func(vc float64) float64 {
		return rampLength(entryV, vc, j) + rampLength(vc, exitV, j)
	}
	if j <= 0 {
		return cruiseVmax
	}
	if fit(cruiseVmax) <= length {
		return cruiseVmax
	}
	lo := math.Max(entryV, exitV)
	hi := cruiseVmax
	if fit(lo) > length {
		// Even the minimal (no-body, no-overshoot) profile doesn't fit;
		// clamp to the floor — the caller will see head+tail exceed
		// length slightly and this is reported via the block-sum
		// invariant check rather than refused here.
		return lo
	}
	for i := 0; i < 60; i++ {
		mid := (lo + hi) / 2.0
		if fit(mid) > length {
			hi = mid
		} else {
			lo = mid
		}
	}
	return (lo + hi) / 2.0
}
