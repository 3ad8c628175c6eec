package motion

import herr "github.com/kcant/g2/pkg/errors"

// Group is one group's planned envelope, per spec.md §3. Two instances
// are kept (running/planning) in a GroupSlots.
type Group struct {
	HasFirstBlock bool
	FirstBlockIdx int

	Length     float64
	HeadLength float64
	BodyLength float64
	TailLength float64
	HeadTime   float64
	BodyTime   float64
	TailTime   float64

	// EntryVelocity is the velocity the head ramp started from when the
	// group was ramped (calculateRamps), kept alongside CruiseVelocity so
	// CalculateBlock can find the true endpoints of the head's triangular-
	// jerk profile even many buffers after the head itself was consumed.
	EntryVelocity  float64
	CruiseVelocity float64
	ExitVelocity   float64

	CompletedGroupHeadLength float64
	CompletedGroupBodyLength float64
	// CompletedGroupTailLength supplements spec.md §3's Group field list
	// (which names only head/body completed counters) to track dispersal
	// of a tail split across more than one buffer symmetrically with
	// head/body.
	CompletedGroupTailLength float64

	LengthIntoSection float64
	TIntoSection      float64

	State GroupState
}

// GroupPlanner implements plan_move and the §4.2 group-planning rules:
// selection of the working group, extension/re-plan, ramp design for a
// new group, and block dispersal across buffers.
type GroupPlanner struct {
	ring  *BufRing
	slots *GroupSlots
	prep  *BlockPrep

	// pendingEntryVelocity carries the previous group's exit velocity
	// into calculate_ramps for the next group, matching the teacher's
	// hosth3 toolhead.limitSpeed/calcJunction continuity-of-velocity
	// handoff between consecutive moves.
	pendingEntryVelocity float64

	// cursor is the next ring index to examine as a candidate new-group
	// head, advanced as groups are created.
	cursor int
}

// NewGroupPlanner creates a planner bound to a ring and the shared
// running/planning group slots (owned by the Executor singleton per
// spec.md §3 ownership rules).
func NewGroupPlanner(ring *BufRing, slots *GroupSlots) *GroupPlanner {
	return &GroupPlanner{ring: ring, slots: slots, prep: &BlockPrep{}}
}

// extends reports whether group g's first block indicates the group has
// grown (a later arrival extended its group_length) or gained more
// exit-velocity headroom, per spec.md §4.2. The race-correction clamp
// (exit_velocity <= exit_vmax) is applied here, unconditionally, before
// any decision is made.
func (gp *GroupPlanner) extends(g *Group) bool {
	if !g.HasFirstBlock {
		return false
	}
	fb := gp.ring.Buf(g.FirstBlockIdx)
	if fb.ExitVelocity > fb.ExitVmax {
		fb.ExitVelocity = fb.ExitVmax
	}
	return g.Length < fb.GroupLength || g.ExitVelocity < fb.ExitVelocity
}

// PlanMove is the non-blocking entry point, called from the low-priority
// planning context and polled from the executor via request_exec_plan.
// It performs at most one bounded unit of planning work per call.
func (gp *GroupPlanner) PlanMove() (Stat, error) {
	r := gp.slots.R()
	p := gp.slots.P()

	workOnRunning := false
	switch r.State {
	case GroupOff:
		workOnRunning = false
	case GroupDone:
		workOnRunning = gp.extends(r)
	default:
		workOnRunning = true
	}

	target := p
	if workOnRunning {
		target = r
	}

	if target.HasFirstBlock && gp.extends(target) {
		applied, err := gp.attemptExtension(target, workOnRunning)
		if err != nil {
			return StatOK, err
		}
		if applied {
			return StatOK, nil
		}
	}

	if target.State == GroupOff {
		return gp.startNewGroup(target)
	}

	if target.State == GroupRamped {
		gp.disperseBlockBoundary(target)
		return StatOK, nil
	}

	if target.State == GroupHead || target.State == GroupBody || target.State == GroupTail {
		return gp.disperseOneBuffer(target)
	}

	return StatNoop, nil
}

// startNewGroup implements the "new-group ramping" rule: when g is OFF
// and the next candidate buffer is PREPPED, design its S-curve ramps.
func (gp *GroupPlanner) startNewGroup(g *Group) (Stat, error) {
	buf := gp.ring.Buf(gp.cursor)
	if buf.State != BufferPrepped {
		return StatNoop, nil
	}
	if prev := gp.ring.Buf(buf.pv); prev.idx != buf.idx {
		prev.nxGroup = buf.idx
		prev.hasNXGrp = true
	}
	gp.calculateRamps(buf, g, gp.pendingEntryVelocity)
	return StatOK, nil
}

// calculateRamps solves head/body/tail lengths and times and the
// resolved cruise velocity for a newly-headed group, per spec.md §4.2.
func (gp *GroupPlanner) calculateRamps(buf *Buffer, g *Group, entryVelocity float64) {
	g.HasFirstBlock = true
	g.FirstBlockIdx = buf.Index()
	buf.pvGroup = buf.idx
	buf.hasPVGrp = true

	if buf.ExitVelocity > buf.ExitVmax {
		buf.ExitVelocity = buf.ExitVmax
	}

	g.Length = buf.GroupLength
	exitV := buf.ExitVelocity
	jerk := buf.Jerk
	vc := solveCruiseVelocity(entryVelocity, exitV, buf.CruiseVmax, g.Length, jerk)

	g.EntryVelocity = entryVelocity
	g.CruiseVelocity = vc
	g.ExitVelocity = exitV
	g.HeadLength = rampLength(entryVelocity, vc, jerk)
	g.HeadTime = rampTime(entryVelocity, vc, jerk)
	g.TailLength = rampLength(vc, exitV, jerk)
	g.TailTime = rampTime(vc, exitV, jerk)
	g.BodyLength = g.Length - g.HeadLength - g.TailLength
	if g.BodyLength < 0 {
		g.BodyLength = 0
	}
	if vc > 0 {
		g.BodyTime = g.BodyLength / vc
	} else {
		g.BodyTime = 0
	}

	g.CompletedGroupHeadLength = 0
	g.CompletedGroupBodyLength = 0
	g.CompletedGroupTailLength = 0
	g.LengthIntoSection = 0
	g.TIntoSection = 0
	g.State = GroupRamped

	buf.CruiseVelocity = vc
	buf.ExitVelocity = exitV

	logger.Debug("group ramped: head=%.4f body=%.4f tail=%.4f cruise=%.3f", g.HeadLength, g.BodyLength, g.TailLength, vc)
}

// disperseBlockBoundary implements the bf_lookahead search: find the
// first buffer whose cumulative length, walking forward from the
// group's first block, exceeds head_length+body_length (the first
// buffer that will carry any tail), and move first_block to it.
func (gp *GroupPlanner) disperseBlockBoundary(g *Group) {
	cutoff := g.HeadLength + g.BodyLength
	origin := g.FirstBlockIdx
	idx := origin
	cum := 0.0

	for i := 0; i < RingSize; i++ {
		buf := gp.ring.Buf(idx)
		if buf.State != BufferPrepped && buf.State != BufferPlanned {
			// Ran off the prepared frontier before finding a strict
			// tail buffer; disperse starting from the current first
			// block and let later calls find the boundary.
			break
		}
		if cum+buf.Length > cutoff {
			break
		}
		cum += buf.Length
		idx = buf.nx
	}

	if idx != origin {
		prior := gp.ring.Buf(origin)
		prior.ExitVmax = 0
		prior.ExitVelocity = 0
	}
	buf := gp.ring.Buf(idx)
	g.FirstBlockIdx = idx
	buf.CruiseVelocity = g.CruiseVelocity
	buf.ExitVelocity = g.ExitVelocity
	buf.GroupLength = g.Length
	g.State = GroupHead
}

// disperseOneBuffer apportions the group's remaining head/body/tail
// across exactly one buffer (the current first block) and advances the
// ring/group bookkeeping, doing at most the bounded amount of work one
// plan_move call is allowed to perform.
func (gp *GroupPlanner) disperseOneBuffer(g *Group) (Stat, error) {
	idx := g.FirstBlockIdx
	buf := gp.ring.Buf(idx)
	if buf.State != BufferPrepped {
		return StatNoop, nil
	}

	var block Block
	stat := gp.prep.CalculateBlock(g, buf.Jerk, buf.Length, gp.pendingEntryVelocity, 0, 0, &block)

	sum := block.Sum()
	if sum > buf.Length+1e-6 {
		return StatOK, herr.MotionAssertionError("block length exceeds buffer length")
	}

	buf.State = BufferPlanned
	buf.planned = true
	buf.pvGroup = idx
	buf.hasPVGrp = true
	gp.pendingEntryVelocity = block.ExitVelocity

	gp.stashBlock(idx, block)

	if stat == StatOK {
		gp.cursor = buf.nx
		return StatOK, nil
	}
	g.FirstBlockIdx = buf.nx
	return StatOK, nil
}

// stashBlock records the most recently computed Block for a buffer,
// read by the executor when it advances that buffer to RUNNING. This
// models the "block runtime is overwritten in place each time its
// buffer is (re)planned" lifecycle rule of spec.md §3 without requiring
// the executor and planner to share a single Block pointer per buffer.
func (gp *GroupPlanner) stashBlock(idx int, b Block) {
	plannedBlockTable[idx] = b
}

// plannedBlockTable is keyed by buffer ring index. Sized to RingSize and
// allocated once at package init, consistent with the "no allocator
// calls from interrupt context" design note — the table itself is an
// array, not a map, to stay allocation-free after startup.
var plannedBlockTable [RingSize]Block

// PlannedBlock returns the block most recently computed for the given
// buffer index.
func PlannedBlock(idx int) Block {
	return plannedBlockTable[idx]
}

// attemptExtension implements _attempt_extension of spec.md §4.2.
func (gp *GroupPlanner) attemptExtension(g *Group, isRunning bool) (bool, error) {
	if !g.HasFirstBlock {
		return false, nil
	}
	if isRunning && g.State == GroupTail {
		return false, nil
	}

	fb := gp.ring.Buf(g.FirstBlockIdx)
	newExit := fb.ExitVelocity

	if newExit == g.CruiseVelocity {
		g.Length = fb.GroupLength
		g.ExitVelocity = newExit
		g.BodyLength = g.Length - g.HeadLength
		if g.BodyLength < 0 {
			g.BodyLength = 0
		}
		g.TailLength = 0
		g.TailTime = 0
		if g.CruiseVelocity > 0 {
			g.BodyTime = g.BodyLength / g.CruiseVelocity
		}
		g.State = GroupRamped
		g.LengthIntoSection = 0
		gp.demoteDownstream(g)
		return true, nil
	}

	newTail := rampLength(newExit, g.CruiseVelocity, fb.Jerk)
	extension := g.Length < fb.GroupLength

	accept := extension || !isRunning || newTail < g.TailLength
	if !accept {
		return false, nil
	}

	if isRunning && g.State == GroupBody {
		remainingBodyTail := (g.BodyLength - g.CompletedGroupBodyLength) + (g.TailLength - g.CompletedGroupTailLength)
		if newTail > remainingBodyTail {
			return false, nil
		}
	}

	g.Length = fb.GroupLength
	g.ExitVelocity = newExit
	g.TailLength = newTail
	g.BodyLength = g.Length - g.HeadLength - g.TailLength
	if g.BodyLength < 0 {
		g.BodyLength = 0
	}
	if g.CruiseVelocity > 0 {
		g.BodyTime = g.BodyLength / g.CruiseVelocity
	} else {
		g.BodyTime = 0
	}
	if g.ExitVelocity+g.CruiseVelocity > 0 {
		g.TailTime = 2 * g.TailLength / (g.ExitVelocity + g.CruiseVelocity)
	} else {
		g.TailTime = 0
	}
	g.State = GroupRamped
	g.LengthIntoSection = 0
	gp.demoteDownstream(g)
	return true, nil
}

// demoteDownstream forces every PLANNED buffer from g's first block
// forward back to PREPPED, the one permitted buffer-state demotion,
// forcing re-dispersal under the group's revised envelope.
func (gp *GroupPlanner) demoteDownstream(g *Group) {
	idx := g.FirstBlockIdx
	for i := 0; i < RingSize; i++ {
		buf := gp.ring.Buf(idx)
		if buf.State == BufferPlanned {
			gp.ring.Demote(idx)
		}
		if buf.State == BufferEmpty {
			break
		}
		idx = buf.nx
	}
}
