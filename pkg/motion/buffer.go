package motion

import (
	"math"

	herr "github.com/kcant/g2/pkg/errors"
)

// GCodeSnapshot is an opaque, back-planner-owned snapshot of canonical
// machine state carried along with a buffer purely for pass-through to the
// stepper/status layers. The core never interprets it.
type GCodeSnapshot struct {
	LineNumber int64
	Flags      uint32
}

// Buffer is one prepared linear move: a straight line in N-dimensional
// axis space with a target, a unit vector, velocity bounds and a jerk
// bound. Immutable-from-producer fields are set once at Prepare time;
// planning fields are mutated by the group planner and block preparer.
type Buffer struct {
	// Immutable inputs from the producer (back-planner), set at Prepare.
	Length     float64         // arc-length along Unit, mm
	Unit       [Axes]float64   // direction
	Target     [Axes]float64   // end position
	Jerk       float64         // mm/s^3 bound
	JerkSq     float64         // cached Jerk^2
	RecipJerk  float64         // cached 1/Jerk
	SqrtJerk   float64         // cached sqrt(Jerk)
	QRecip2SqJ float64         // cached 1/(2*sqrt(Jerk))
	CruiseVmax float64         // mm/s
	ExitVmax   float64         // mm/s
	AxisFlags  uint32          // per-axis active flags
	GCode      GCodeSnapshot

	// Mutable planning fields.
	EntryVelocity  float64
	CruiseVelocity float64
	ExitVelocity   float64
	GroupLength    float64
	Plannable      bool

	// Ring linkage (arena + stable indices, per spec.md design notes).
	idx       int
	nx        int
	pv        int
	nxGroup   int
	pvGroup   int
	hasNX     bool
	hasPV     bool
	hasNXGrp  bool
	hasPVGrp  bool

	State BufferState

	// Planned slice of this buffer (two-instance rotation lives on the
	// Executor; this flag just records whether Block has been filled in
	// since the last (re)plan).
	planned bool
}

// Index returns this buffer's stable slot index in its ring.
func (b *Buffer) Index() int { return b.idx }

// computeJerkDerivations caches the jerk-derived quantities used
// repeatedly by ramp design, at prepare time rather than per plan call
// (grounded on original_source/g2core's mp_calculate_jerk).
func (b *Buffer) computeJerkDerivations() {
	b.JerkSq = b.Jerk * b.Jerk
	if b.Jerk > 0 {
		b.RecipJerk = 1.0 / b.Jerk
		b.SqrtJerk = math.Sqrt(b.Jerk)
		b.QRecip2SqJ = 1.0 / (2.0 * b.SqrtJerk)
	} else {
		b.RecipJerk = 0
		b.SqrtJerk = 0
		b.QRecip2SqJ = 0
	}
}

// BufRing is the fixed-size circular doubly-linked ring of move buffers.
// Represented as an arena (fixed-size slice) with integer neighbour
// indices rather than pointers, per spec.md §9's design note — this keeps
// the whole ring in one allocation (no allocator calls from interrupt
// context) and avoids ownership cycles.
type BufRing struct {
	bufs    [RingSize]Buffer
	runIdx  int
	hasRun  bool
	nextIdx int // next EMPTY slot a producer should fill
}

// NewBufRing creates an empty ring with all buffers EMPTY and linked in
// slot order.
func NewBufRing() *BufRing {
	r := &BufRing{}
	for i := range r.bufs {
		r.bufs[i].idx = i
		r.bufs[i].nx = (i + 1) % RingSize
		r.bufs[i].pv = (i - 1 + RingSize) % RingSize
		r.bufs[i].hasNX = true
		r.bufs[i].hasPV = true
		r.bufs[i].State = BufferEmpty
	}
	return r
}

// Buf returns a pointer to the buffer at the given stable index.
func (r *BufRing) Buf(idx int) *Buffer { return &r.bufs[idx] }

// Advance returns the index of buf's ring-order successor.
func (r *BufRing) Advance(idx int) int { return r.bufs[idx].nx }

// Retreat returns the index of buf's ring-order predecessor.
func (r *BufRing) Retreat(idx int) int { return r.bufs[idx].pv }

// GetRunBuffer returns the current running cursor, or (0, false) if the
// ring is empty (no buffer past EMPTY).
func (r *BufRing) GetRunBuffer() (*Buffer, bool) {
	if !r.hasRun {
		return nil, false
	}
	return &r.bufs[r.runIdx], true
}

// FreeRunBuffer marks the current running buffer EMPTY and advances the
// run cursor. Returns true if the ring is now fully empty of work (next
// buffer in ring order is also EMPTY).
func (r *BufRing) FreeRunBuffer() (empty bool, err error) {
	if !r.hasRun {
		return true, herr.MotionQueueError("free_run_buffer", "no running buffer")
	}
	cur := &r.bufs[r.runIdx]
	cur.State = BufferEmpty
	cur.planned = false
	next := cur.nx
	if r.bufs[next].State == BufferEmpty {
		r.hasRun = false
		return true, nil
	}
	r.runIdx = next
	return false, nil
}

// Prepare allocates the next EMPTY slot to the producer, caches jerk
// derivations, and marks it PREPPED. Returns the buffer's index.
func (r *BufRing) Prepare(length float64, unit, target [Axes]float64, jerk, cruiseVmax, exitVmax float64) (int, error) {
	start := r.nextIdx
	for i := 0; i < RingSize; i++ {
		idx := (start + i) % RingSize
		b := &r.bufs[idx]
		if b.State != BufferEmpty {
			continue
		}
		b.Length = length
		b.Unit = unit
		b.Target = target
		b.Jerk = jerk
		b.computeJerkDerivations()
		b.CruiseVmax = cruiseVmax
		b.ExitVmax = exitVmax
		b.EntryVelocity = 0
		b.CruiseVelocity = 0
		b.ExitVelocity = 0
		b.GroupLength = length
		b.Plannable = true
		b.planned = false
		b.State = BufferPrepped
		if !b.hasPVGrp {
			b.pvGroup = idx
			b.hasPVGrp = true
		} else {
			b.pvGroup = idx
		}
		r.nextIdx = (idx + 1) % RingSize
		if !r.hasRun {
			r.hasRun = true
			r.runIdx = idx
		}
		logger.Debug("buffer %d prepared, length=%.4f", idx, length)
		return idx, nil
	}
	return -1, herr.MotionQueueError("prepare", "ring full")
}

// Demote forces a PLANNED buffer back to PREPPED, the one permitted
// demotion in the buffer state machine, used when re-planning must
// invalidate downstream block math.
func (r *BufRing) Demote(idx int) {
	b := &r.bufs[idx]
	if b.State == BufferPlanned {
		b.State = BufferPrepped
		b.planned = false
	}
}

// Stats returns a histogram of buffer states across the ring, the status
// counter surfaced by pkg/motionstatus (supplemented from
// original_source/g2core's $ status report buffer_state histogram).
func (r *BufRing) Stats() map[BufferState]int {
	out := map[BufferState]int{}
	for i := range r.bufs {
		out[r.bufs[i].State]++
	}
	return out
}
