// Package motioniface defines the interfaces the motion core consumes
// from its collaborators (kinematic transform, encoder reader, stepper
// preparer, plan/status request sinks) per spec.md §6. The teacher
// wraps the equivalent C library (trapq/stepper_kinematics) via cgo in
// pkg/chelper; this core stays pure Go, so these are plain interfaces
// rather than cgo bindings — callers may implement them directly in Go
// or behind their own cgo/FFI boundary, which is none of this core's
// concern.
package motioniface

// Axes and Motors mirror pkg/motion's constants; duplicated here (not
// imported) so motioniface has no dependency on pkg/motion, keeping the
// interface boundary one-directional.
const (
	Axes   = 6
	Motors = 6
)

// Kinematics performs the target-vector to per-motor step-count
// transform. Grounded on pkg/chelper.go's StepperKinematics.Calc /
// itersolve shape, reimplemented without cgo.
type Kinematics interface {
	// Inverse maps an absolute axis-space target to absolute motor step
	// counts. Must be a pure function of target (and any kinematics
	// configuration baked in at construction time).
	Inverse(target [Axes]float64) ([Motors]int64, error)
}

// EncoderReader returns the current encoder count for one motor,
// time-aligned to the most recent step output. Grounded on
// other_examples/amken3d-gopper__stepper.go's GetPosition shape.
type EncoderReader interface {
	ReadEncoder(motor int) int64
}

// StepperPreparer consumes one prepared segment per call. Grounded on
// pkg/chelper.go's Stepcompress/TrapQ append shape and
// other_examples/amken3d-gopper__stepper.go's QueueMove.
type StepperPreparer interface {
	// PrepLine enqueues one segment of travel. travelSteps is the
	// per-motor delta since the last segment; followingError is the
	// signed encoder/commanded discrepancy carried for closed-loop
	// correction; segmentTime is the segment's duration in seconds.
	PrepLine(travelSteps [Motors]int64, followingError [Motors]int64, segmentTime float64) error
	// PrepNull signals no motion this tick.
	PrepNull() error
}

// PlanRequester is the fire-and-forget signalling interface the
// executor uses to wake the planning context and to publish status
// report requests, per spec.md §6's request_exec_plan/
// request_status_report.
type PlanRequester interface {
	RequestExecPlan()
	RequestStatusReport(kind string)
}
