package motion

import (
	"math"
	"testing"

	"github.com/kcant/g2/pkg/config"
)

func TestLoadRuntimeConfigDefaultsWithoutSection(t *testing.T) {
	cfg, err := config.LoadString("[printer]\nkinematics: cartesian\n")
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	rc, err := LoadRuntimeConfig(cfg)
	if err != nil {
		t.Fatalf("LoadRuntimeConfig failed: %v", err)
	}
	want := DefaultRuntimeConfig()
	if rc != want {
		t.Errorf("LoadRuntimeConfig without [motion] = %+v, want defaults %+v", rc, want)
	}
}

func TestLoadRuntimeConfigReadsMotionSection(t *testing.T) {
	cfg, err := config.LoadString("[motion]\ndefault_jerk: 2500000\nstatus_broadcast_hz: 10\n")
	if err != nil {
		t.Fatalf("LoadString failed: %v", err)
	}
	rc, err := LoadRuntimeConfig(cfg)
	if err != nil {
		t.Fatalf("LoadRuntimeConfig failed: %v", err)
	}
	if math.Abs(rc.DefaultJerk-2.5e6) > 1e-6 {
		t.Errorf("DefaultJerk = %v, want 2.5e6", rc.DefaultJerk)
	}
	if math.Abs(rc.StatusBroadcastHz-10) > 1e-9 {
		t.Errorf("StatusBroadcastHz = %v, want 10", rc.StatusBroadcastHz)
	}
}
