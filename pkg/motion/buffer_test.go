package motion

import (
	"math"
	"testing"
)

func TestBufRingPrepareAdvancesState(t *testing.T) {
	r := NewBufRing()
	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 10

	idx, err := r.Prepare(10, unit, target, 1e6, 100, 0)
	if err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	buf := r.Buf(idx)
	if buf.State != BufferPrepped {
		t.Errorf("buffer state = %v, want PREPPED", buf.State)
	}
	if buf.Length != 10 {
		t.Errorf("buffer length = %v, want 10", buf.Length)
	}
	if !buf.Plannable {
		t.Errorf("freshly prepared buffer should be Plannable")
	}

	got, ok := r.GetRunBuffer()
	if !ok || got.Index() != idx {
		t.Errorf("GetRunBuffer should return the first prepared buffer")
	}
}

func TestBufRingPrepareFillsRing(t *testing.T) {
	r := NewBufRing()
	var unit, target [Axes]float64
	unit[0] = 1

	count := 0
	for {
		_, err := r.Prepare(1, unit, target, 1e6, 10, 0)
		if err != nil {
			break
		}
		count++
	}
	if count != RingSize {
		t.Errorf("prepared %d buffers before ring full, want %d", count, RingSize)
	}
}

func TestBufRingDemoteOnlyAffectsPlanned(t *testing.T) {
	r := NewBufRing()
	var unit, target [Axes]float64
	idx, _ := r.Prepare(5, unit, target, 1e6, 50, 0)

	r.Demote(idx) // still PREPPED, no-op
	if r.Buf(idx).State != BufferPrepped {
		t.Errorf("Demote on a PREPPED buffer should be a no-op")
	}

	r.Buf(idx).State = BufferPlanned
	r.Demote(idx)
	if r.Buf(idx).State != BufferPrepped {
		t.Errorf("Demote on a PLANNED buffer should revert to PREPPED")
	}
}

func TestBufRingFreeRunBufferRequiresRunning(t *testing.T) {
	r := NewBufRing()
	if _, err := r.FreeRunBuffer(); err == nil {
		t.Errorf("FreeRunBuffer on an empty ring should error")
	}
}

func TestBufRingStatsHistogram(t *testing.T) {
	r := NewBufRing()
	var unit, target [Axes]float64
	r.Prepare(1, unit, target, 1e6, 10, 0)
	r.Prepare(1, unit, target, 1e6, 10, 0)

	stats := r.Stats()
	if stats[BufferPrepped] != 2 {
		t.Errorf("stats[PREPPED] = %d, want 2", stats[BufferPrepped])
	}
	if stats[BufferEmpty] != RingSize-2 {
		t.Errorf("stats[EMPTY] = %d, want %d", stats[BufferEmpty], RingSize-2)
	}
}

func TestComputeJerkDerivations(t *testing.T) {
	b := Buffer{Jerk: 4}
	b.computeJerkDerivations()
	if b.JerkSq != 16 {
		t.Errorf("JerkSq = %v, want 16", b.JerkSq)
	}
	if math.Abs(b.SqrtJerk-2) > 1e-9 {
		t.Errorf("SqrtJerk = %v, want 2", b.SqrtJerk)
	}
	if math.Abs(b.RecipJerk-0.25) > 1e-9 {
		t.Errorf("RecipJerk = %v, want 0.25", b.RecipJerk)
	}
}

func TestComputeJerkDerivationsZeroJerk(t *testing.T) {
	b := Buffer{Jerk: 0}
	b.computeJerkDerivations()
	if b.RecipJerk != 0 || b.SqrtJerk != 0 || b.QRecip2SqJ != 0 {
		t.Errorf("zero jerk should leave derived reciprocal fields at 0")
	}
}
