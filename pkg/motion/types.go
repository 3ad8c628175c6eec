// Package motion implements the jerk-limited trajectory planner and
// segment executor for a multi-axis CNC/3D-printer motion controller:
// a ring of prepared move buffers, a group planner that designs
// S-curve ramps and disperses them across buffers, and a segment
// executor that walks the resulting curve via quintic-Bezier forward
// differencing.
package motion

import "github.com/kcant/g2/pkg/log"

// Axes is the number of machine coordinates a Buffer carries (X, Y, Z, A,
// B, C). Motors is the number of physical steppers the kinematic
// transform maps to; it may differ from Axes (e.g. delta, corexy).
const (
	Axes   = 6
	Motors = 6
)

// RingSize is the number of buffers in the move ring.
const RingSize = 48

// MinSegmentTime is the minimum duration, in seconds, a dispatched segment
// may have. Sections shorter than this are fused into neighbours before
// execution begins (spec invariant: segment duration >= MinSegmentTime).
const MinSegmentTime = 0.0001 // 100us

// NomSegmentTime is the nominal (target) segment duration, in seconds,
// used to size the segment count for a head/tail/body section.
const NomSegmentTime = 0.00075 // 750us, matches typical stepper tick budgets

// Stat is the non-error result of a core operation: OK, EAGAIN, NOOP, and
// the minimum-time-move warning are not failures and are returned
// alongside a nil error. Failures are *errors.HostError values: planner
// assertion failures, internal dispatcher errors, and ring/queue
// operation errors (see pkg/errors).
type Stat int

const (
	// StatOK means the operation completed.
	StatOK Stat = iota
	// StatEAgain means more work remains; call again soon.
	StatEAgain
	// StatNoop means no work was possible (not an error).
	StatNoop
	// StatMinimumTimeMove means a buffer's body is shorter than
	// MinSegmentTime after fusion, with no head or tail to absorb it.
	// ExecMove reports it once on buffer init; later calls dispatch the
	// buffer with the undersized body as-is.
	StatMinimumTimeMove
)

func (s Stat) String() string {
	switch s {
	case StatOK:
		return "OK"
	case StatEAgain:
		return "EAGAIN"
	case StatNoop:
		return "NOOP"
	case StatMinimumTimeMove:
		return "MINIMUM_TIME_MOVE"
	default:
		return "UNKNOWN"
	}
}

// BufferState is the lifecycle state of a move buffer.
//
//	EMPTY -> PREPPED -> PLANNED -> RUNNING -> EMPTY
//
// with one permitted demotion: PLANNED -> PREPPED on re-plan.
type BufferState int

const (
	BufferEmpty BufferState = iota
	BufferPrepped
	BufferPlanned
	BufferRunning
)

func (s BufferState) String() string {
	switch s {
	case BufferEmpty:
		return "EMPTY"
	case BufferPrepped:
		return "PREPPED"
	case BufferPlanned:
		return "PLANNED"
	case BufferRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// GroupState is the lifecycle state of a group's planned envelope.
type GroupState int

const (
	GroupOff GroupState = iota
	GroupRamped
	GroupHead
	GroupBody
	GroupTail
	GroupDone
)

func (s GroupState) String() string {
	switch s {
	case GroupOff:
		return "OFF"
	case GroupRamped:
		return "RAMPED"
	case GroupHead:
		return "HEAD"
	case GroupBody:
		return "BODY"
	case GroupTail:
		return "TAIL"
	case GroupDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Section identifies the currently executing part of a block.
type Section int

const (
	SectionOff Section = iota
	SectionHead
	SectionBody
	SectionTail
)

func (s Section) String() string {
	switch s {
	case SectionOff:
		return "OFF"
	case SectionHead:
		return "HEAD"
	case SectionBody:
		return "BODY"
	case SectionTail:
		return "TAIL"
	default:
		return "UNKNOWN"
	}
}

// SectionState tracks progress within the currently executing section.
type SectionState int

const (
	SectionStateOff SectionState = iota
	SectionStateNew
	SectionStateRun1stHalf
	SectionStateRun2ndHalf
)

func (s SectionState) String() string {
	switch s {
	case SectionStateOff:
		return "OFF"
	case SectionStateNew:
		return "NEW"
	case SectionStateRun1stHalf:
		return "RUN_1ST_HALF"
	case SectionStateRun2ndHalf:
		return "RUN_2ND_HALF"
	default:
		return "UNKNOWN"
	}
}

// logger is the package-level structured logger, matching the teacher's
// per-component named-logger convention (hosth4, mcu, moonraker each grab
// their own child logger).
var logger = log.New("motion")
