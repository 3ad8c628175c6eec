package motion

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCorePrepareMoveAndTickRunsToCompletion(t *testing.T) {
	core := NewCore(nil, nil, nil)

	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 40
	idx, err := core.PrepareMove(40, unit, target, 1e6, 150, 0)
	if err != nil {
		t.Fatalf("PrepareMove failed: %v", err)
	}

	sawOK := false
	for i := 0; i < 10000; i++ {
		stat, err := core.Tick()
		if err != nil {
			t.Fatalf("Tick error: %v", err)
		}
		if stat == StatOK && core.Ring.Buf(idx).State == BufferEmpty {
			sawOK = true
			break
		}
	}
	if !sawOK {
		t.Fatalf("core never drained the prepared buffer to completion")
	}
}

func TestCoreRunTickingDrainsPreparedBuffer(t *testing.T) {
	core := NewCore(nil, nil, nil)

	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 10
	idx, err := core.PrepareMove(10, unit, target, 1e6, 150, 0)
	if err != nil {
		t.Fatalf("PrepareMove failed: %v", err)
	}

	var ticks int64
	core.RunTicking(time.Millisecond, func(stat Stat, err error) {
		if err != nil {
			t.Errorf("Tick error from RunTicking: %v", err)
		}
		atomic.AddInt64(&ticks, 1)
	})
	defer core.StopTicking()

	deadline := time.After(2 * time.Second)
	for {
		if core.Ring.Buf(idx).State == BufferEmpty {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("reactor-driven ticking never drained the prepared buffer")
		case <-time.After(time.Millisecond):
		}
	}
	if atomic.LoadInt64(&ticks) == 0 {
		t.Errorf("RunTicking's onTick callback was never invoked")
	}
}

func TestCoreDisableMotorsHaltsTickAndPrepareMove(t *testing.T) {
	core := NewCore(nil, nil, nil)

	var unit, target [Axes]float64
	unit[0] = 1
	target[0] = 40
	idx, err := core.PrepareMove(40, unit, target, 1e6, 150, 0)
	if err != nil {
		t.Fatalf("PrepareMove failed: %v", err)
	}

	if err := core.DisableMotors(); err != nil {
		t.Fatalf("DisableMotors failed: %v", err)
	}
	if !core.Halted() {
		t.Errorf("Halted() = false after DisableMotors, want true")
	}

	stat, err := core.Tick()
	if err != nil {
		t.Fatalf("Tick error after halt: %v", err)
	}
	if stat != StatOK {
		t.Errorf("Tick() after halt = %v, want StatOK (no-op)", stat)
	}
	if core.Ring.Buf(idx).State == BufferEmpty {
		t.Errorf("halted Tick should not have dispatched the prepared buffer")
	}

	if _, err := core.PrepareMove(10, unit, target, 1e6, 150, 0); err == nil {
		t.Errorf("PrepareMove after halt should be rejected")
	}
}

func TestCoreImplementsMotionStatusSource(t *testing.T) {
	core := NewCore(nil, nil, nil)

	stats := core.BufferStats()
	if stats[BufferEmpty] != RingSize {
		t.Errorf("BufferStats on an empty core = %v, want all EMPTY", stats)
	}
	if core.RunningGroupState() != GroupOff {
		t.Errorf("RunningGroupState on a fresh core = %v, want OFF", core.RunningGroupState())
	}
	if core.RunningBlockPlanned() {
		t.Errorf("RunningBlockPlanned on a fresh core should be false")
	}
	if core.CurrentSection() != SectionOff {
		t.Errorf("CurrentSection on a fresh core = %v, want OFF", core.CurrentSection())
	}
}
