package motion

import (
	"math"
	"testing"
)

func TestGroupPlannerStartNewGroupRampsBuffer(t *testing.T) {
	ring := NewBufRing()
	slots := NewGroupSlots()
	gp := NewGroupPlanner(ring, slots)

	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 100
	ring.Prepare(100, unit, target, 1e6, 200, 0)

	stat, err := gp.PlanMove()
	if err != nil {
		t.Fatalf("PlanMove error: %v", err)
	}
	if stat != StatOK {
		t.Fatalf("PlanMove stat = %v, want StatOK after ramping a new group", stat)
	}

	g := slots.P()
	if g.State != GroupRamped {
		t.Fatalf("group state = %v, want RAMPED", g.State)
	}
	if math.Abs(g.HeadLength+g.BodyLength+g.TailLength-g.Length) > 1e-6 {
		t.Errorf("head+body+tail = %v, want group length %v", g.HeadLength+g.BodyLength+g.TailLength, g.Length)
	}
}

func TestGroupPlannerDispersalConsumesWholeGroup(t *testing.T) {
	ring := NewBufRing()
	slots := NewGroupSlots()
	gp := NewGroupPlanner(ring, slots)

	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 60
	idx, _ := ring.Prepare(60, unit, target, 1e6, 200, 0)

	// Ramp.
	if _, err := gp.PlanMove(); err != nil {
		t.Fatalf("PlanMove (ramp) error: %v", err)
	}
	// Block boundary dispersal.
	if _, err := gp.PlanMove(); err != nil {
		t.Fatalf("PlanMove (boundary) error: %v", err)
	}
	g := slots.P()
	if g.State != GroupHead {
		t.Fatalf("group state after boundary dispersal = %v, want HEAD", g.State)
	}

	// Disperse into the single buffer.
	stat, err := gp.PlanMove()
	if err != nil {
		t.Fatalf("PlanMove (disperse) error: %v", err)
	}
	if stat != StatOK {
		t.Fatalf("disperse stat = %v, want StatOK (whole group fits one buffer)", stat)
	}
	if g.State != GroupDone {
		t.Fatalf("group state after full dispersal = %v, want DONE", g.State)
	}

	buf := ring.Buf(idx)
	if buf.State != BufferPlanned {
		t.Errorf("buffer state = %v, want PLANNED", buf.State)
	}
	block := PlannedBlock(idx)
	if math.Abs(block.Sum()-60) > 1e-6 {
		t.Errorf("planned block sum = %v, want 60", block.Sum())
	}
}

func TestGroupPlannerExtendsDetectsGrowth(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{HasFirstBlock: true, FirstBlockIdx: 0, Length: 10, ExitVelocity: 0}
	buf := gp.ring.Buf(0)
	buf.GroupLength = 10
	buf.ExitVelocity = 0
	buf.ExitVmax = 100

	if gp.extends(g) {
		t.Errorf("extends() should be false when nothing changed")
	}

	buf.GroupLength = 20
	if !gp.extends(g) {
		t.Errorf("extends() should be true when GroupLength grew")
	}
}

func TestGroupPlannerExtendsClampsExitVelocityToVmax(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{HasFirstBlock: true, FirstBlockIdx: 0, Length: 10, ExitVelocity: 50}
	buf := gp.ring.Buf(0)
	buf.GroupLength = 10
	buf.ExitVmax = 30
	buf.ExitVelocity = 200 // a race: exceeds its own vmax

	gp.extends(g)
	if buf.ExitVelocity != 30 {
		t.Errorf("extends() should clamp buffer ExitVelocity to ExitVmax, got %v", buf.ExitVelocity)
	}
}

func TestAttemptExtensionRejectsWhenTailLocked(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{
		HasFirstBlock:  true,
		FirstBlockIdx:  0,
		State:          GroupTail,
		CruiseVelocity: 100,
		TailLength:     5,
	}
	buf := gp.ring.Buf(0)
	buf.ExitVelocity = 0
	buf.GroupLength = 50

	applied, err := gp.attemptExtension(g, true)
	if err != nil {
		t.Fatalf("attemptExtension error: %v", err)
	}
	if applied {
		t.Errorf("attemptExtension should reject a running group already in its tail")
	}
	if g.TailLength != 5 {
		t.Errorf("rejected extension mutated group: TailLength = %v, want unchanged 5", g.TailLength)
	}
}

func TestAttemptExtensionCruiseToEndCase(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{
		HasFirstBlock:  true,
		FirstBlockIdx:  0,
		State:          GroupRamped,
		Length:         40,
		HeadLength:     10,
		CruiseVelocity: 100,
		ExitVelocity:   0,
		TailLength:     30,
	}
	buf := gp.ring.Buf(0)
	buf.ExitVelocity = 100 // equals g.CruiseVelocity: the group now cruises to its end
	buf.GroupLength = 50

	applied, err := gp.attemptExtension(g, false)
	if err != nil {
		t.Fatalf("attemptExtension error: %v", err)
	}
	if !applied {
		t.Fatalf("attemptExtension should accept the cruise-to-end case")
	}
	if g.TailLength != 0 || g.TailTime != 0 {
		t.Errorf("cruise-to-end extension: TailLength=%v TailTime=%v, want 0,0", g.TailLength, g.TailTime)
	}
	if g.Length != 50 {
		t.Errorf("cruise-to-end extension: Length = %v, want 50", g.Length)
	}
	if g.BodyLength != 40 {
		t.Errorf("cruise-to-end extension: BodyLength = %v, want 40 (Length-HeadLength)", g.BodyLength)
	}
	if g.State != GroupRamped {
		t.Errorf("cruise-to-end extension: State = %v, want GroupRamped", g.State)
	}
}

func TestAttemptExtensionRejectsWhenNotExtensionAndTailNotShorter(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{
		HasFirstBlock:  true,
		FirstBlockIdx:  0,
		State:          GroupHead,
		Length:         50,
		HeadLength:     10,
		CruiseVelocity: 100,
		ExitVelocity:   0,
		TailLength:     0.3,
	}
	buf := gp.ring.Buf(0)
	buf.ExitVelocity = 0 // unchanged exit velocity
	buf.GroupLength = 50 // no growth: g.Length is already 50
	buf.Jerk = 1e6

	// newTail for entry 0 -> cruise 100 at this jerk (1mm) is longer
	// than the group's current 0.3mm tail, so the "tail got shorter"
	// acceptance path does not apply either.
	applied, err := gp.attemptExtension(g, true)
	if err != nil {
		t.Fatalf("attemptExtension error: %v", err)
	}
	if applied {
		t.Errorf("attemptExtension should reject: no growth, running, and the tail did not shrink")
	}
}

func TestAttemptExtensionAcceptsWhenTailShrinks(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{
		HasFirstBlock:  true,
		FirstBlockIdx:  0,
		State:          GroupHead,
		Length:         50,
		HeadLength:     10,
		CruiseVelocity: 100,
		ExitVelocity:   50,
		TailLength:     500, // deliberately oversized so the new tail is shorter
	}
	buf := gp.ring.Buf(0)
	buf.ExitVelocity = 90 // closer to cruise: a much shorter tail
	buf.GroupLength = 50
	buf.Jerk = 1e6

	applied, err := gp.attemptExtension(g, true)
	if err != nil {
		t.Fatalf("attemptExtension error: %v", err)
	}
	if !applied {
		t.Fatalf("attemptExtension should accept when the recomputed tail is shorter than the current one")
	}
	if g.ExitVelocity != 90 {
		t.Errorf("accepted extension: ExitVelocity = %v, want 90", g.ExitVelocity)
	}
	if g.State != GroupRamped {
		t.Errorf("accepted extension: State = %v, want GroupRamped", g.State)
	}
}

func TestAttemptExtensionRejectsAlreadyDispatchedBody(t *testing.T) {
	gp := &GroupPlanner{ring: NewBufRing()}
	g := &Group{
		HasFirstBlock:            true,
		FirstBlockIdx:            0,
		State:                    GroupBody,
		Length:                   40,
		HeadLength:               10,
		BodyLength:               25,
		TailLength:               5,
		CompletedGroupBodyLength: 24, // almost all of the body already dispatched
		CompletedGroupTailLength: 0,
		CruiseVelocity:           500,
		ExitVelocity:             50,
	}
	buf := gp.ring.Buf(0)
	buf.ExitVelocity = 0 // a much bigger braking tail than what is left to run
	buf.GroupLength = 60 // extension: accept's first condition is met...
	buf.Jerk = 1e6

	// ...but the recomputed tail (~11mm at this jerk/velocity) exceeds
	// what remains of the body+tail already dispatched (1+5=6mm), so
	// the already-running-body guard must still reject it.
	applied, err := gp.attemptExtension(g, true)
	if err != nil {
		t.Fatalf("attemptExtension error: %v", err)
	}
	if applied {
		t.Errorf("attemptExtension should reject a recomputed tail longer than what remains to dispatch")
	}
	if g.TailLength != 5 {
		t.Errorf("rejected extension mutated group: TailLength = %v, want unchanged 5", g.TailLength)
	}
}

func TestGroupPlannerPlanMoveNoopOnEmptyRing(t *testing.T) {
	ring := NewBufRing()
	slots := NewGroupSlots()
	gp := NewGroupPlanner(ring, slots)

	stat, err := gp.PlanMove()
	if err != nil {
		t.Fatalf("PlanMove on empty ring error: %v", err)
	}
	if stat != StatNoop {
		t.Errorf("PlanMove on empty ring = %v, want StatNoop", stat)
	}
}
