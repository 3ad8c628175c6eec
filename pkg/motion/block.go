package motion

// Block is one buffer's planned slice of a group's head/body/tail,
// per spec.md §3. Two instances are kept by the executor (running/
// planning); see GroupSlots/BlockSlots in runtime.go.
type Block struct {
	HeadLength, BodyLength, TailLength float64
	HeadTime, BodyTime, TailTime       float64
	CruiseVelocity                     float64
	ExitVelocity                       float64
	CruiseAcceleration                 float64
	ExitAcceleration                   float64
	CruiseJerk                         float64
	ExitJerk                           float64
	Planned                            bool
}

// Sum returns head+body+tail length, for the block-length invariant
// check (spec.md §3 invariant 4, §8 property test).
func (b *Block) Sum() float64 {
	return b.HeadLength + b.BodyLength + b.TailLength
}

// BlockPrep implements calculate_block: apportioning a group's remaining
// head/body/tail pools across one buffer's length. Grounded on the
// teacher's move.setJunction apportionment style (hosth3/runtime.go),
// generalized from a single accel/cruise/decel split per move to a
// pool that may span multiple buffers.
type BlockPrep struct{}

// CalculateBlock fills out, apportioning buffer length lengthAvail
// (normally buffer.Length) across the group's remaining head/body/tail
// pools. entryV/entryA/entryJ are the kinematic state the block starts
// from (continuity from the previous buffer's exit, or the group's own
// entry on the first buffer). It mutates the group's completed-length
// counters and returns StatOK when the group's remainder is fully
// consumed by this buffer (it then also sets group.State to DONE) or
// StatEAgain when more buffers are still needed (group.State is then set
// to HEAD, BODY or TAIL from what remains).
func (bp *BlockPrep) CalculateBlock(g *Group, jerk float64, lengthAvail, entryV, entryA, entryJ float64, out *Block) Stat {
	*out = Block{}
	remaining := lengthAvail
	entry := entryV
	_, _ = entryA, entryJ // kept for interface symmetry with spec.md §4.2's calculate_block signature

	headPool := g.HeadLength - g.CompletedGroupHeadLength
	if headPool < 0 {
		headPool = 0
	}
	bodyPool := g.BodyLength - g.CompletedGroupBodyLength
	if bodyPool < 0 {
		bodyPool = 0
	}
	tailPool := g.TailLength - g.CompletedGroupTailLength
	if tailPool < 0 {
		tailPool = 0
	}

	out.CruiseVelocity = g.CruiseVelocity
	out.CruiseAcceleration = 0
	out.CruiseJerk = jerk
	out.ExitJerk = jerk

	// Head.
	if headPool > 0 && remaining > 0 {
		take := headPool
		if take > remaining {
			take = remaining
		}
		var vAtTake float64
		if take >= headPool {
			vAtTake = g.CruiseVelocity
		} else {
			vAtTake = rampVelocityAtLength(entry, g.CruiseVelocity, jerk, take)
		}
		out.HeadLength = take
		out.HeadTime = rampTime(entry, vAtTake, jerk)
		// The head ramp's true endpoints are g.EntryVelocity (where it
		// started, possibly buffers ago) and g.CruiseVelocity (where it
		// finishes); vAtTake is a point strictly between them whenever
		// this buffer only carries part of the head. CruiseVelocity and
		// CruiseAcceleration both describe this buffer's own head-end
		// (consumed by the quintic ramp built for *this* buffer), so
		// they take vAtTake/the true interior acceleration rather than
		// the group's eventual cruise value whenever the head is split
		// here; on full completion vAtTake==g.CruiseVelocity and the
		// closed form already evaluates to 0, so no separate case is
		// needed for that branch.
		out.CruiseVelocity = vAtTake
		out.CruiseAcceleration = rampAccelerationAtVelocity(g.EntryVelocity, g.CruiseVelocity, jerk, vAtTake)
		g.CompletedGroupHeadLength += take
		remaining -= take
		entry = vAtTake
	}

	// Body.
	if bodyPool > 0 && remaining > 0 {
		take := bodyPool
		if take > remaining {
			take = remaining
		}
		out.BodyLength = take
		if g.CruiseVelocity > 0 {
			out.BodyTime = take / g.CruiseVelocity
		}
		g.CompletedGroupBodyLength += take
		remaining -= take
	}

	// Tail.
	if tailPool > 0 && remaining > 0 {
		// The tail's true start is always the group's cruise velocity
		// (the tail only ever begins once the head+body have brought the
		// group up to cruise), so entry here is either exactly that
		// (first tail buffer) or a carried-forward interior point of the
		// same tail ramp (a later split buffer); either way it is the
		// correct v0 to report as this buffer's own cruise/tail-start
		// boundary, mirroring the head's CruiseVelocity override above.
		out.CruiseVelocity = entry
		take := tailPool
		if take > remaining {
			take = remaining
		}
		var vAtTake float64
		if take >= tailPool {
			vAtTake = g.ExitVelocity
		} else {
			vAtTake = rampVelocityAtLength(entry, g.ExitVelocity, jerk, take)
		}
		out.TailLength = take
		out.TailTime = rampTime(entry, vAtTake, jerk)
		out.ExitAcceleration = rampAccelerationAtVelocity(g.CruiseVelocity, g.ExitVelocity, jerk, vAtTake)
		g.CompletedGroupTailLength += take
		remaining -= take
		entry = vAtTake
	}

	out.ExitVelocity = entry
	out.Planned = true

	headLeft := g.HeadLength - g.CompletedGroupHeadLength
	bodyLeft := g.BodyLength - g.CompletedGroupBodyLength
	tailLeft := g.TailLength - g.CompletedGroupTailLength

	switch {
	case tailLeft > 1e-9:
		g.State = GroupTail
	case bodyLeft > 1e-9:
		g.State = GroupBody
	case headLeft > 1e-9:
		g.State = GroupHead
	default:
		g.State = GroupDone
		return StatOK
	}
	return StatEAgain
}
