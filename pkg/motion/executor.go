package motion

import (
	"gonum.org/v1/gonum/floats"

	herr "github.com/kcant/g2/pkg/errors"
	"github.com/kcant/g2/pkg/motioniface"
)

// Executor is the MR singleton of spec.md §3/§4.4: the segment
// dispatcher that walks the currently running buffer's planned block
// one fixed-duration segment at a time via quintic-Bezier forward
// differencing, emitting step deltas and following errors to the
// stepper preparer. Grounded on hosth3/runtime.go's
// toolhead.processLookahead/handleStepFlush (single, non-blocking,
// bounded-work dispatch invoked per tick) and on
// other_examples/amken3d-gopper__stepper.go's stepperEventHandler
// bucket-brigade step bookkeeping.
type Executor struct {
	ring        *BufRing
	groupSlots  *GroupSlots
	blockSlots  *BlockSlots
	planner     *GroupPlanner
	kinematics  motioniface.Kinematics
	encoder     motioniface.EncoderReader
	stepper     motioniface.StepperPreparer
	requester   motioniface.PlanRequester

	curBufIdx int
	hasCurBuf bool

	section      Section
	sectionState SectionState

	fd              ForwardDiff
	segmentVelocity float64
	segmentTime     float64
	segmentCount    int
	segments        int

	// minimumTimeMove latches when fuseSegments finds a body too short
	// to meet MinSegmentTime with no head or tail to absorb it into
	// (spec.md §9 open question): ExecMove surfaces this once as
	// StatMinimumTimeMove before dispatching the buffer normally.
	minimumTimeMove bool

	currentRamp Ramp

	position       [Axes]float64
	positionSteps  [Motors]int64
	targetSteps    [Motors]int64
	commandedSteps [Motors]int64
	encoderSteps   [Motors]int64
	followingError [Motors]int64

	waypointHead [Axes]float64
	waypointBody [Axes]float64
	waypointTail [Axes]float64

	entryVelocity     float64
	entryAcceleration float64
	entryJerk         float64

	// remainingBodyLength/remainingBodyTime support mid-flight body
	// extension (spec.md §4.4 Body section).
	remainingBodyLength float64
	remainingBodyTime   float64
}

// NewExecutor wires an Executor to its ring, shared group/block slots,
// group planner, and external collaborators.
func NewExecutor(ring *BufRing, groupSlots *GroupSlots, blockSlots *BlockSlots, planner *GroupPlanner,
	kin motioniface.Kinematics, enc motioniface.EncoderReader, stepper motioniface.StepperPreparer, req motioniface.PlanRequester) *Executor {
	return &Executor{
		ring:       ring,
		groupSlots: groupSlots,
		blockSlots: blockSlots,
		planner:    planner,
		kinematics: kin,
		encoder:    enc,
		stepper:    stepper,
		requester:  req,
	}
}

// ExecMove is exec_move(): the high-priority-context entry point,
// called once per stepper tick.
func (e *Executor) ExecMove() (Stat, error) {
	buf, ok := e.ring.GetRunBuffer()
	if !ok {
		// No buffer is ready to run this tick: tell the stepper preparer
		// to hold its current step rate rather than leaving it starved
		// of a call, per spec.md §6's stepper.prep_null(), and ask the
		// planner to run so prepared buffers get planned.
		if e.requester != nil {
			e.requester.RequestExecPlan()
		}
		if e.stepper != nil {
			if err := e.stepper.PrepNull(); err != nil {
				return StatOK, err
			}
		}
		return StatNoop, nil
	}

	if !e.hasCurBuf || e.curBufIdx != buf.Index() {
		if buf.State != BufferPlanned {
			// Not planned yet: ask the planner to run.
			if e.requester != nil {
				e.requester.RequestExecPlan()
			}
			return StatNoop, nil
		}
		e.initNewBuffer(buf)
		if e.minimumTimeMove {
			e.minimumTimeMove = false
			return StatMinimumTimeMove, nil
		}
	}

	if buf.State != BufferRunning {
		return StatNoop, nil
	}

	return e.execAline(buf)
}

// initNewBuffer implements the "new-buffer initialization" rule of
// spec.md §4.4: promote PLANNED to RUNNING, reset section state, and
// rotate the group/block double-buffer slots if the previous buffer was
// the last of its group.
func (e *Executor) initNewBuffer(buf *Buffer) {
	buf.State = BufferRunning

	if e.hasCurBuf {
		prevGroupDone := e.groupSlots.R().State == GroupDone
		if prevGroupDone {
			e.groupSlots.Swap()
		}
	}

	e.blockSlots.Swap()
	*e.blockSlots.R() = PlannedBlock(buf.Index())

	e.curBufIdx = buf.Index()
	e.hasCurBuf = true

	e.section = SectionHead
	e.sectionState = SectionStateNew

	// e.position carries forward from the previous buffer's exit (or
	// from wherever the caller primed it before the first ExecMove
	// call); it is the entry point of this buffer's head. e.entryVelocity
	// and e.entryAcceleration are likewise left as completeBuffer set
	// them (or their zero value, for the very first buffer ever run) —
	// a split head/tail's nonzero boundary acceleration must carry
	// forward into the next buffer's ramp construction, not reset here.
	block := e.blockSlots.R()
	e.entryJerk = block.CruiseJerk

	e.minimumTimeMove = e.fuseSegments(block)
	e.computeWaypoints(buf, block)

	g := e.groupSlots.R()
	if g.State == GroupOff {
		g.State = GroupHead
	}
	if g.HasFirstBlock && g.FirstBlockIdx != buf.Index() {
		prevFirst := e.ring.Buf(g.FirstBlockIdx)
		if prevFirst.State == BufferEmpty {
			g.FirstBlockIdx = buf.Index()
		}
	}

	if e.requester != nil {
		e.requester.RequestExecPlan()
	}
}

// computeWaypoints sets the three exact end-of-section positions used
// to snap out accumulated forward-difference drift (spec.md §9).
func (e *Executor) computeWaypoints(buf *Buffer, block *Block) {
	floats.AddScaledTo(e.waypointHead[:], e.position[:], block.HeadLength, buf.Unit[:])
	floats.AddScaledTo(e.waypointBody[:], e.waypointHead[:], block.BodyLength, buf.Unit[:])
	floats.AddScaledTo(e.waypointTail[:], e.waypointBody[:], block.TailLength, buf.Unit[:])
}

// fuseSegments implements spec.md §4.4's segment-fusion pass: ensure
// every non-zero section has duration >= MinSegmentTime before any
// segment of this buffer runs. Returns true if a too-short body
// survived fusion with no head or tail to absorb it into.
func (e *Executor) fuseSegments(block *Block) bool {
	if block.HeadLength > 0 && block.HeadTime < MinSegmentTime {
		block.BodyLength += block.HeadLength
		block.BodyTime += block.HeadLength / nonZero(block.CruiseVelocity)
		block.HeadLength = 0
		block.HeadTime = 0
	}
	if block.TailLength > 0 && block.TailTime < MinSegmentTime {
		block.BodyLength += block.TailLength
		block.BodyTime += block.TailLength / nonZero(block.CruiseVelocity)
		block.TailLength = 0
		block.TailTime = 0
	}
	if block.BodyLength > 0 && block.BodyTime < MinSegmentTime && block.CruiseJerk == 0 {
		switch {
		case block.HeadLength > 0 && block.TailLength > 0:
			half := block.BodyLength / 2
			block.HeadLength += half
			block.TailLength += block.BodyLength - half
			block.BodyLength = 0
			block.BodyTime = 0
		case block.HeadLength > 0:
			block.HeadLength += block.BodyLength
			block.BodyLength = 0
			block.BodyTime = 0
		case block.TailLength > 0:
			block.TailLength += block.BodyLength
			block.BodyLength = 0
			block.BodyTime = 0
		default:
			// No head or tail to absorb this too-short body into: the
			// caller surfaces StatMinimumTimeMove once, then dispatch
			// proceeds with the undersized body as-is.
			return true
		}
	}
	return false
}

func nonZero(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// execAline is exec_aline(): dispatch to the section handler.
func (e *Executor) execAline(buf *Buffer) (Stat, error) {
	block := e.blockSlots.R()
	switch e.section {
	case SectionHead:
		if block.HeadLength == 0 {
			e.section = SectionBody
			e.sectionState = SectionStateNew
			return e.execAline(buf)
		}
		return e.runRampSection(buf, block, SectionHead)
	case SectionBody:
		if block.BodyLength == 0 {
			e.section = SectionTail
			e.sectionState = SectionStateNew
			return e.execAline(buf)
		}
		return e.runBody(buf, block)
	case SectionTail:
		if block.TailLength == 0 {
			return e.completeBuffer(buf)
		}
		return e.runRampSection(buf, block, SectionTail)
	default:
		return StatOK, herr.MotionInternalError("dispatcher reached an impossible section")
	}
}

// runRampSection drives the head or tail state machine of spec.md
// §4.4 via quintic-Bezier forward differencing.
func (e *Executor) runRampSection(buf *Buffer, block *Block, sec Section) (Stat, error) {
	switch e.sectionState {
	case SectionStateOff, SectionStateNew:
		var dur, v0, v1, a0, a1, j0, j1 float64
		if sec == SectionHead {
			dur = block.HeadTime
			v0, v1 = e.entryVelocity, block.CruiseVelocity
			a0, a1 = e.entryAcceleration, block.CruiseAcceleration
			j0, j1 = e.entryJerk, block.CruiseJerk
		} else {
			dur = block.TailTime
			v0, v1 = block.CruiseVelocity, block.ExitVelocity
			a0, a1 = block.CruiseAcceleration, block.ExitAcceleration
			j0, j1 = block.CruiseJerk, block.ExitJerk
		}

		e.segments = segmentsFor(dur)
		if e.segments <= 0 {
			e.segments = 1
		}
		e.segmentTime = dur / float64(e.segments)
		e.segmentCount = e.segments
		e.currentRamp = Ramp{V0: v0, V1: v1, A0: a0, A1: a1, J0: j0, J1: j1, T: dur}

		if e.segments == 1 {
			e.segmentVelocity = (v0 + v1) / 2.0
			e.sectionState = SectionStateRun2ndHalf
		} else {
			e.fd = NewForwardDiff(e.currentRamp, e.segments)
			e.segmentVelocity = e.fd.SegmentVelocity
			e.sectionState = SectionStateRun1stHalf
		}

		if sec == SectionTail {
			// Plannability gate (spec.md §4.4): once the tail starts,
			// the back-planner may no longer mutate this buffer.
			buf.Plannable = false
		}

	case SectionStateRun1stHalf:
		e.sectionState = SectionStateRun2ndHalf
		e.fd.AdvanceSecondHalf()
	case SectionStateRun2ndHalf:
		if e.segmentCount < e.segments {
			e.fd.AdvanceSecondHalf()
		}
	}

	isLast := e.segmentCount == 1
	var waypoint *[Axes]float64
	if sec == SectionHead {
		waypoint = &e.waypointHead
	} else {
		waypoint = &e.waypointTail
	}

	if _, err := e.emitSegment(buf, isLast && e.sectionState == SectionStateRun2ndHalf, waypoint); err != nil {
		return StatOK, err
	}

	e.segmentCount--
	if e.segmentCount <= 0 {
		e.sectionState = SectionStateNew
		if sec == SectionHead {
			e.section = SectionBody
			return StatEAgain, nil
		}
		return e.completeBuffer(buf)
	}

	return StatEAgain, nil
}

// runBody drives the constant-velocity plateau, including mid-flight
// extension (the body growing because the planner revised the group).
func (e *Executor) runBody(buf *Buffer, block *Block) (Stat, error) {
	if e.sectionState == SectionStateOff || e.sectionState == SectionStateNew {
		e.segmentVelocity = block.CruiseVelocity
		e.remainingBodyLength = block.BodyLength
		e.remainingBodyTime = block.BodyTime
		e.segments = segmentsFor(e.remainingBodyTime)
		if e.segments <= 0 {
			e.segments = 1
		}
		e.segmentCount = e.segments
		e.segmentTime = e.remainingBodyTime / float64(e.segments)
		e.sectionState = SectionStateRun2ndHalf
	}

	// Body extension: if the group revised the block's body length
	// upward while this section is live, absorb the growth.
	if block.BodyLength > e.remainingBodyLength {
		grown := block.BodyLength - e.remainingBodyLength
		e.remainingBodyLength = block.BodyLength
		extraSegments := segmentsFor(grown / nonZero(block.CruiseVelocity))
		e.segments += extraSegments
		e.segmentCount += extraSegments
	}

	isLast := e.segmentCount == 1
	if _, err := e.emitSegment(buf, isLast, &e.waypointBody); err != nil {
		return StatOK, err
	}

	e.segmentCount--
	if e.segmentCount <= 0 {
		e.section = SectionTail
		e.sectionState = SectionStateNew
		if block.TailLength == 0 {
			return e.completeBuffer(buf)
		}
		return StatEAgain, nil
	}

	if e.segmentCount < 3 {
		buf.Plannable = false
	}
	return StatEAgain, nil
}

// emitSegment implements the per-segment emission contract of
// spec.md §4.4 step "Segment emission": advance target, bucket-brigade
// step bookkeeping, kinematic transform, stepper hand-off.
func (e *Executor) emitSegment(buf *Buffer, snap bool, waypoint *[Axes]float64) (Stat, error) {
	if e.segmentVelocity < 0 {
		return StatOK, herr.MotionAssertionError("negative segment velocity")
	}

	var target [Axes]float64
	if snap {
		target = *waypoint
	} else {
		floats.AddScaledTo(target[:], e.position[:], e.segmentVelocity*e.segmentTime, buf.Unit[:])
	}

	e.commandedSteps = e.positionSteps
	e.positionSteps = e.targetSteps
	for m := 0; m < Motors; m++ {
		if e.encoder != nil {
			e.encoderSteps[m] = e.encoder.ReadEncoder(m)
		}
		e.followingError[m] = e.encoderSteps[m] - e.commandedSteps[m]
	}

	var newTargetSteps [Motors]int64
	if e.kinematics != nil {
		var err error
		newTargetSteps, err = e.kinematics.Inverse(target)
		if err != nil {
			return StatOK, err
		}
	} else {
		newTargetSteps = e.targetSteps
	}

	var travelSteps [Motors]int64
	for m := 0; m < Motors; m++ {
		travelSteps[m] = newTargetSteps[m] - e.positionSteps[m]
	}
	e.targetSteps = newTargetSteps

	if e.stepper != nil {
		if err := e.stepper.PrepLine(travelSteps, e.followingError, e.segmentTime); err != nil {
			return StatOK, err
		}
	}

	e.position = target

	if e.segmentCount == 1 {
		return StatOK, nil
	}
	return StatEAgain, nil
}

// completeBuffer implements spec.md §4.4's "Completion" rule: hand off
// exit kinematic state to the next buffer's entry state, retire the
// group if it is DONE and this was its last buffer, and free the
// buffer.
func (e *Executor) completeBuffer(buf *Buffer) (Stat, error) {
	block := e.blockSlots.R()
	e.entryVelocity = block.ExitVelocity
	e.entryAcceleration = block.ExitAcceleration
	e.entryJerk = block.ExitJerk

	e.section = SectionOff
	e.sectionState = SectionStateOff

	g := e.groupSlots.R()
	if g.State == GroupDone {
		g.State = GroupOff
	}

	_, err := e.ring.FreeRunBuffer()
	e.hasCurBuf = false
	if err != nil {
		return StatOK, err
	}

	if e.requester != nil {
		e.requester.RequestExecPlan()
	}

	return StatOK, nil
}
