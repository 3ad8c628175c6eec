package motion

import "github.com/kcant/g2/pkg/config"

// RuntimeConfig holds the machine-level parameters spec.md §9 leaves to the
// caller (default jerk bound for moves that don't specify one, and the
// status feed's broadcast rate), read from a printer config file's
// [motion] section the same way [printer]/[stepper_x] sections are read
// elsewhere (pkg/config's Section.GetFloat with fallback defaults). The
// dispatcher budgets MinSegmentTime/NomSegmentTime remain compiled-in
// constants (types.go), matching spec.md §3's treatment of them as fixed
// invariant thresholds rather than per-machine tuning knobs.
type RuntimeConfig struct {
	DefaultJerk       float64 // mm/s^3, used when a move omits an explicit jerk bound
	StatusBroadcastHz float64 // read from [motion] only; motionstatus.Server broadcasts on a fixed 250ms period and is not given this value
}

// DefaultRuntimeConfig is used when no [motion] section is present.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		DefaultJerk:       1e6,
		StatusBroadcastHz: 4,
	}
}

// LoadRuntimeConfig reads a [motion] section from cfg, falling back to
// DefaultRuntimeConfig for any option it does not set.
func LoadRuntimeConfig(cfg *config.Config) (RuntimeConfig, error) {
	out := DefaultRuntimeConfig()
	sec := cfg.GetSectionOptional("motion")
	if sec == nil {
		return out, nil
	}

	var err error
	if out.DefaultJerk, err = sec.GetFloat("default_jerk", out.DefaultJerk); err != nil {
		return out, err
	}
	if out.StatusBroadcastHz, err = sec.GetFloat("status_broadcast_hz", out.StatusBroadcastHz); err != nil {
		return out, err
	}
	return out, nil
}
