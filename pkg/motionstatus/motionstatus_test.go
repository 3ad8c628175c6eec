package motionstatus

import (
	"testing"

	"github.com/kcant/g2/pkg/clocksync"
	"github.com/kcant/g2/pkg/motion"
	"github.com/kcant/g2/pkg/printtime"
)

type fakeSource struct {
	stats   map[motion.BufferState]int
	group   motion.GroupState
	planned bool
	section motion.Section
}

func (f *fakeSource) BufferStats() map[motion.BufferState]int { return f.stats }
func (f *fakeSource) RunningGroupState() motion.GroupState     { return f.group }
func (f *fakeSource) RunningBlockPlanned() bool                { return f.planned }
func (f *fakeSource) CurrentSection() motion.Section           { return f.section }

func TestBuildSnapshot(t *testing.T) {
	src := &fakeSource{
		stats: map[motion.BufferState]int{
			motion.BufferEmpty:   40,
			motion.BufferPrepped: 5,
			motion.BufferPlanned: 2,
			motion.BufferRunning: 1,
		},
		group:   motion.GroupBody,
		planned: true,
		section: motion.SectionBody,
	}
	srv := New(":0", src)
	snap := srv.buildSnapshot()

	if snap.GroupState != "BODY" {
		t.Errorf("GroupState = %q, want BODY", snap.GroupState)
	}
	if snap.Section != "BODY" {
		t.Errorf("Section = %q, want BODY", snap.Section)
	}
	if !snap.BlockPlanned {
		t.Errorf("BlockPlanned = false, want true")
	}
	if snap.BufferStates["EMPTY"] != 40 {
		t.Errorf("BufferStates[EMPTY] = %d, want 40", snap.BufferStates["EMPTY"])
	}
	if snap.BufferStates["RUNNING"] != 1 {
		t.Errorf("BufferStates[RUNNING] = %d, want 1", snap.BufferStates["RUNNING"])
	}
}

// fakeSourceWithPrintTime adds the optional PrintTimeSource extension to
// fakeSource, exercising buildSnapshot's type-assertion branch.
type fakeSourceWithPrintTime struct {
	fakeSource
	printTime *printtime.Manager
}

func (f *fakeSourceWithPrintTime) PrintTimeStatus() printtime.Status {
	return f.printTime.GetStatus(0)
}

func TestBuildSnapshotIncludesPrintTimeWhenSourceSupportsIt(t *testing.T) {
	printMgr := printtime.New(clocksync.New(1e6))
	printMgr.AdvanceMoveTime(2.5)

	src := &fakeSourceWithPrintTime{printTime: printMgr}
	srv := New(":0", src)
	snap := srv.buildSnapshot()

	if snap.PrintTime != 2.5 {
		t.Errorf("PrintTime = %v, want 2.5", snap.PrintTime)
	}
}

func TestBroadcastOnceSkipsWithNilSource(t *testing.T) {
	srv := New(":0", nil)
	// Must not panic with no source and no clients.
	srv.broadcastOnce()
}

var _ Source = (*fakeSource)(nil)
