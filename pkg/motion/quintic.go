package motion

import "math"

// Ramp holds the degree-5 Bezier ramp parameters for one head or tail
// section: entry/exit velocity, entry/exit acceleration and jerk, and the
// section's duration. It is the input to NewForwardDiff.
type Ramp struct {
	V0, V1 float64
	A0, A1 float64
	J0, J1 float64
	T      float64
}

// bezierMonomial expands the degree-5 Bezier control points of spec.md
// §4.4 into the monomial basis V(t) = A t^5 + B t^4 + C t^3 + D t^2 + E t + F,
// grounded on the teacher-adjacent jerk-ramp polynomial evaluation in
// other_examples/pfeiferj-mapd__jerk_calc.go, generalized from a single
// ramp-up phase to the symmetric entry/exit control-point form.
func bezierMonomial(r Ramp) (a, b, c, d, e, f float64) {
	T := r.T
	p0 := r.V0
	p1 := r.V0 + (1.0/5.0)*T*r.A0
	p2 := r.V0 + (2.0/5.0)*T*r.A0 + (1.0/20.0)*T*T*r.J0
	p3 := r.V1 - (2.0/5.0)*T*r.A1 + (1.0/20.0)*T*T*r.J1
	p4 := r.V1 - (1.0/5.0)*T*r.A1
	p5 := r.V1

	// Degree-5 Bezier to monomial coefficient matrix (binomial expansion
	// of sum_k C(5,k) P_k (1-t)^(5-k) t^k).
	a = -p0 + 5*p1 - 10*p2 + 10*p3 - 5*p4 + p5
	b = 5*p0 - 20*p1 + 30*p2 - 20*p3 + 5*p4
	c = -10*p0 + 30*p1 - 30*p2 + 10*p3
	d = 10*p0 - 20*p1 + 10*p2
	e = -5*p0 + 5*p1
	f = p0
	return
}

// ForwardDiff is the set of forward-difference accumulators used to walk
// a head/tail velocity profile segment-by-segment in O(1) per segment,
// per spec.md §4.4.
type ForwardDiff struct {
	SegmentVelocity float64
	fd1, fd2, fd3, fd4, fd5 float64
}

// NewForwardDiff computes the initial segment_velocity (the midpoint
// sample V(h/2) of the first segment) and the five forward-difference
// accumulators for a ramp divided into segments segments of width h = 1/segments.
//
// The accumulator initialisers are the fixed linear combinations of
// A*h^5, B*h^4, C*h^3, D*h^2, E*h given in spec.md §4.4; they are exact
// for a quintic, so no polynomial evaluation is needed once primed.
func NewForwardDiff(r Ramp, segments int) ForwardDiff {
	a, b, c, d, e, f := bezierMonomial(r)
	h := 1.0 / float64(segments)

	h2 := h * h
	h3 := h2 * h
	h4 := h3 * h
	h5 := h4 * h

	ah5 := a * h5
	bh4 := b * h4
	ch3 := c * h3
	dh2 := d * h2
	eh := e * h

	fd := ForwardDiff{}
	fd.fd5 = (121.0/16.0)*ah5 + 5*bh4 + (13.0/4.0)*ch3 + 2*dh2 + eh
	fd.fd4 = (165.0/2.0)*ah5 + 29*bh4 + 9*ch3 + 2*dh2
	fd.fd3 = 255*ah5 + 48*bh4 + 6*ch3
	fd.fd2 = 300*ah5 + 24*bh4
	fd.fd1 = 120 * ah5

	// V(h/2) evaluated directly; only needed once, so a plain Horner
	// evaluation is fine here (not on the per-segment hot path).
	t := h / 2.0
	fd.SegmentVelocity = a*t*t*t*t*t + b*t*t*t*t + c*t*t*t + d*t*t + e*t + f
	return fd
}

// AdvanceSecondHalf applies the per-segment update rule of spec.md §4.4,
// used once per segment starting at the second segment of a section's
// second half: segment_velocity += fd5, then fd5..fd2 absorb the next
// accumulator down the chain.
func (fd *ForwardDiff) AdvanceSecondHalf() {
	fd.SegmentVelocity += fd.fd5
	fd.fd5 += fd.fd4
	fd.fd4 += fd.fd3
	fd.fd3 += fd.fd2
	fd.fd2 += fd.fd1
}

// segmentsFor returns the number of fixed-duration segments a section of
// the given duration (seconds) should be divided into, sized toward
// NomSegmentTime, per spec.md §4.4's "NEW" head/tail state.
func segmentsFor(duration float64) int {
	if duration <= 0 {
		return 0
	}
	n := int(math.Ceil(duration / NomSegmentTime))
	if n < 1 {
		n = 1
	}
	return n
}
