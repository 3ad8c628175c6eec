package motion

import (
	"sync/atomic"
	"time"

	herr "github.com/kcant/g2/pkg/errors"
	"github.com/kcant/g2/pkg/motioniface"
	"github.com/kcant/g2/pkg/reactor"
)

// planFlag is the one-bit "request exec plan" signal of spec.md §5,
// set by the executor's high-priority context and polled by the
// low-priority planning context. Modeled with an atomic flag rather
// than a channel so ExecMove (which must never block) can set it
// unconditionally.
type planFlag struct {
	requested atomic.Bool
}

func (f *planFlag) RequestExecPlan()                { f.requested.Store(true) }
func (f *planFlag) RequestStatusReport(kind string) { logger.Debug("status report requested: %s", kind) }
func (f *planFlag) take() bool                      { return f.requested.Swap(false) }

// Core wires BufRing, GroupSlots/BlockSlots, GroupPlanner and Executor
// into the two-cooperating-contexts model of spec.md §5: Tick plays
// the role of the high-priority stepper-tick interrupt (always calls
// ExecMove) and, when the executor has requested it, the low-priority
// planner interrupt (PlanMove) in the same call. Tick can be driven
// directly by a caller's own loop (as the tests do) or scheduled by the
// core's own `pkg/reactor.Reactor` via RunTicking, the same cooperative
// timer/callback dispatch the teacher's hosth3 uses to drive klippy's
// periodic host-side work.
type Core struct {
	Ring     *BufRing
	Groups   *GroupSlots
	Blocks   *BlockSlots
	Planner  *GroupPlanner
	Executor *Executor

	flag    *planFlag
	reactor *reactor.Reactor

	// halted latches once DisableMotors is called. It exists so a
	// daemon-level safety manager (pkg/safety's Manager, which a
	// Core satisfies the MotorDisabler interface of by structural
	// typing alone) can stop Tick from dispatching further segments on
	// an emergency stop without pkg/motion importing pkg/safety.
	halted atomic.Bool
}

// NewCore builds a fully wired motion core around the given external
// collaborators (kinematics, encoder, stepper transport).
func NewCore(kin motioniface.Kinematics, enc motioniface.EncoderReader, stepper motioniface.StepperPreparer) *Core {
	ring := NewBufRing()
	groups := NewGroupSlots()
	blocks := NewBlockSlots()
	planner := NewGroupPlanner(ring, groups)
	flag := &planFlag{}
	exec := NewExecutor(ring, groups, blocks, planner, kin, enc, stepper, flag)

	return &Core{
		Ring:     ring,
		Groups:   groups,
		Blocks:   blocks,
		Planner:  planner,
		Executor: exec,
		flag:     flag,
		reactor:  reactor.New(),
	}
}

// PrepareMove places a new buffer in the PREPPED state, the external
// producer's only permitted ring operation (spec.md §5).
func (c *Core) PrepareMove(length float64, unit, target [Axes]float64, jerk, cruiseVmax, exitVmax float64) (int, error) {
	if c.halted.Load() {
		return 0, herr.MotionQueueError("prepare_move", "motors disabled by safety shutdown")
	}
	return c.Ring.Prepare(length, unit, target, jerk, cruiseVmax, exitVmax)
}

// DisableMotors implements the MotorDisabler interface a safety manager
// registers against (pkg/safety's Manager.RegisterMotor), satisfied here
// structurally so pkg/motion needn't import pkg/safety. Once called,
// Tick stops dispatching segments; PrepareMove stops admitting new ones.
func (c *Core) DisableMotors() error {
	c.halted.Store(true)
	return nil
}

// Halted reports whether DisableMotors has latched a stop.
func (c *Core) Halted() bool { return c.halted.Load() }

// Tick drives one high-priority step: exec_move, then plan_move if
// requested.
func (c *Core) Tick() (Stat, error) {
	if c.halted.Load() {
		return StatOK, nil
	}
	stat, err := c.Executor.ExecMove()
	if err != nil {
		return stat, err
	}
	if c.flag.take() {
		if _, perr := c.Planner.PlanMove(); perr != nil {
			return stat, perr
		}
	}
	return stat, nil
}

// RunTicking registers a recurring reactor timer that calls Tick every
// period, then starts the reactor's dispatch loop in its own goroutine.
// onTick, if non-nil, is called with each Tick's result; it must not
// block, since it runs on the reactor's dispatch goroutine. Call
// StopTicking to halt the loop.
func (c *Core) RunTicking(period time.Duration, onTick func(Stat, error)) {
	seconds := period.Seconds()
	c.reactor.RegisterTimer(func(eventtime float64) float64 {
		stat, err := c.Tick()
		if onTick != nil {
			onTick(stat, err)
		}
		return eventtime + seconds
	}, reactor.NOW)
	c.reactor.Run()
}

// StopTicking ends the reactor's dispatch loop started by RunTicking and
// waits for it to exit.
func (c *Core) StopTicking() {
	c.reactor.End()
	c.reactor.Wait()
}

// BufferStats implements motionstatus.Source.
func (c *Core) BufferStats() map[BufferState]int { return c.Ring.Stats() }

// RunningGroupState implements motionstatus.Source.
func (c *Core) RunningGroupState() GroupState { return c.Groups.R().State }

// RunningBlockPlanned implements motionstatus.Source.
func (c *Core) RunningBlockPlanned() bool { return c.Blocks.R().Planned }

// CurrentSection implements motionstatus.Source.
func (c *Core) CurrentSection() Section { return c.Executor.section }
