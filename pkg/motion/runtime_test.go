package motion

import "testing"

func TestGroupSlotsSwap(t *testing.T) {
	gs := NewGroupSlots()
	r := gs.R()
	p := gs.P()
	r.State = GroupDone
	p.State = GroupOff

	gs.Swap()

	if gs.R() != p {
		t.Errorf("after Swap, R() should be the old P()")
	}
	if gs.P() != r {
		t.Errorf("after Swap, P() should be the old R()")
	}
	if gs.R().State != GroupOff {
		t.Errorf("after Swap, running state = %v, want OFF", gs.R().State)
	}
}

func TestBlockSlotsSwap(t *testing.T) {
	bs := NewBlockSlots()
	bs.R().CruiseVelocity = 1
	bs.P().CruiseVelocity = 2

	bs.Swap()

	if bs.R().CruiseVelocity != 2 {
		t.Errorf("after Swap, running CruiseVelocity = %v, want 2", bs.R().CruiseVelocity)
	}
	if bs.P().CruiseVelocity != 1 {
		t.Errorf("after Swap, planning CruiseVelocity = %v, want 1", bs.P().CruiseVelocity)
	}
}

func TestGroupSlotsSwapIsIndexExchangeNotCopy(t *testing.T) {
	gs := NewGroupSlots()
	rPtrBefore := gs.R()
	pPtrBefore := gs.P()
	gs.Swap()
	if gs.R() != pPtrBefore || gs.P() != rPtrBefore {
		t.Errorf("Swap must exchange which backing slot is running/planning, not copy values")
	}
}
