// motiond is a minimal daemon wiring the motion planning/execution core
// to a serial stepper transport and a websocket status feed. It exists
// to exercise pkg/motion end to end; a real printer host would drive
// PrepareMove from its G-code layer instead of the synthetic demo move
// generated here.
//
// Usage:
//
//	motiond -device /dev/ttyACM0 [options]
//
// Options:
//
//	-device string   Serial device to send prepared segments to (required)
//	-baud int        Serial baud rate (default 250000)
//	-config string   Printer config file to read a [motion] section from
//	-status string   Status websocket listen address (default ":7780")
//	-tick duration   Stepper tick period (default 1ms)
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kcant/g2/pkg/clocksync"
	pconfig "github.com/kcant/g2/pkg/config"
	"github.com/kcant/g2/pkg/motion"
	"github.com/kcant/g2/pkg/motionstatus"
	"github.com/kcant/g2/pkg/motionwire"
	"github.com/kcant/g2/pkg/printtime"
	"github.com/kcant/g2/pkg/safety"
	"github.com/kcant/g2/pkg/serial"
)

// mcuClockHz is the nominal MCU clock frequency used for the daemon's
// own print-time accounting (pkg/clocksync/pkg/printtime). It is not
// synchronized against a real MCU clock response the way the teacher's
// klippy host does, since this transport's wire protocol (pkg/motionwire)
// is one-way; it anchors the buffer/stall bookkeeping that status
// reporting exposes.
const mcuClockHz = 1e6

// statusSource adapts *motion.Core plus a print-time manager to
// motionstatus.Source and motionstatus.PrintTimeSource.
type statusSource struct {
	*motion.Core
	printTime *printtime.Manager
	mono      *clocksync.MonotonicTime
}

func (s statusSource) PrintTimeStatus() printtime.Status {
	return s.printTime.GetStatus(s.mono.Now())
}

func main() {
	device := flag.String("device", "", "Serial device to send prepared segments to (required)")
	baud := flag.Int("baud", 250000, "Serial baud rate")
	configFile := flag.String("config", "", "Printer config file to read a [motion] section from")
	statusAddr := flag.String("status", ":7780", "Status websocket listen address")
	tick := flag.Duration("tick", time.Millisecond, "Stepper tick period")
	flag.Parse()

	if *device == "" {
		fmt.Fprintf(os.Stderr, "Error: -device is required\n")
		flag.Usage()
		os.Exit(1)
	}

	runtimeCfg := motion.DefaultRuntimeConfig()
	if *configFile != "" {
		printerCfg, err := pconfig.Load(*configFile)
		if err != nil {
			log.Fatalf("Error reading config: %v", err)
		}
		runtimeCfg, err = motion.LoadRuntimeConfig(printerCfg)
		if err != nil {
			log.Fatalf("Error reading [motion] section: %v", err)
		}
	}

	cfg := serial.DefaultConfig()
	cfg.Device = *device
	cfg.BaudRate = *baud

	port, err := serial.Open(cfg)
	if err != nil {
		log.Fatalf("Error opening serial device: %v", err)
	}
	defer port.Close()

	stepper := motionwire.NewSerialStepperPreparer(port)

	// No kinematics/encoder collaborators are wired for this demo
	// daemon: emitSegment treats both as optional. Without kinematics the
	// step targets never change, so every segment reaches the stepper
	// transport with zero travel steps and zero following error.
	core := motion.NewCore(nil, nil, stepper)

	safetyMgr := safety.New()
	safetyMgr.RegisterMotor(core)
	safetyMgr.OnShutdown(func(reason safety.ShutdownReason, msg string) {
		log.Printf("safety shutdown: %s: %s", reason, msg)
	})
	safetyMgr.StartWatchdog()
	defer safetyMgr.StopWatchdog()

	mono := clocksync.NewMonotonicTime()
	printMgr := printtime.New(clocksync.New(mcuClockHz))
	source := statusSource{Core: core, printTime: printMgr, mono: mono}

	statusSrv := motionstatus.New(*statusAddr, source)
	go func() {
		if err := statusSrv.Start(); err != nil {
			log.Printf("status server stopped: %v", err)
		}
	}()
	defer statusSrv.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("motiond ready: device=%s status=%s tick=%s", *device, *statusAddr, *tick)

	seedDemoMove(core, runtimeCfg)

	core.RunTicking(*tick, func(stat motion.Stat, err error) {
		safetyMgr.Heartbeat()
		printMgr.AdvanceMoveTime(printMgr.GetPrintTime() + tick.Seconds())
		if err != nil {
			log.Printf("motion error: %v", err)
			return
		}
		if stat == motion.StatMinimumTimeMove {
			log.Printf("warning: minimum-time move (body shorter than jerk-limited ramps allow)")
		}
	})
	defer core.StopTicking()

	<-sigCh
	log.Println("shutting down")
	if err := safetyMgr.RequestShutdown("operator requested shutdown"); err != nil {
		log.Printf("safety shutdown error: %v", err)
	}
}

// seedDemoMove queues a single straight-line move so the daemon has
// something to execute; a real host replaces this with moves derived
// from incoming G-code.
func seedDemoMove(core *motion.Core, cfg motion.RuntimeConfig) {
	var unit, target [motion.Axes]float64
	unit[0] = 1
	target[0] = 50

	if _, err := core.PrepareMove(50, unit, target, cfg.DefaultJerk, 200, 0); err != nil {
		log.Printf("failed to queue demo move: %v", err)
	}
}
