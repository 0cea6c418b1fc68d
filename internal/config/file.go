package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justyntemme/dssihost/internal/errs"
)

// DefaultRingCapacity mirrors midiring.DefaultCapacity; duplicated here
// rather than imported to keep internal/config free of a dependency on
// pkg/midiring.
const DefaultRingCapacity = 1024

// DefaultFrontEndLaunchTimeout bounds how long Launch waits for a
// front-end's executable to appear before giving up.
const DefaultFrontEndLaunchTimeout = 5 * time.Second

// fileOverrides holds the handful of settings that don't have a natural
// positional or short-flag CLI form (per SPEC_FULL.md §2): ring
// capacity, and the front-end launch timeout. OSC address and search
// path already have CLI flags and are not duplicated here.
type fileOverrides struct {
	RingCapacity          int    `yaml:"ring_capacity"`
	FrontEndLaunchTimeout string `yaml:"front_end_launch_timeout"`
}

// loadFile reads path (if non-empty) and applies its overrides to cfg.
// A missing or empty path is not an error; it simply leaves cfg's
// defaults untouched.
func loadFile(path string, cfg *Config) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrapf(errs.Config, "config.loadFile", "read %s: %v", path, err)
	}

	var overrides fileOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return errs.Wrapf(errs.Config, "config.loadFile", "parse %s: %v", path, err)
	}

	if overrides.RingCapacity > 0 {
		cfg.RingCapacity = overrides.RingCapacity
	}
	if overrides.FrontEndLaunchTimeout != "" {
		d, err := time.ParseDuration(overrides.FrontEndLaunchTimeout)
		if err != nil {
			return errs.Wrapf(errs.Config, "config.loadFile", "front_end_launch_timeout: %v", err)
		}
		cfg.FrontEndLaunchTimeout = d
	}
	return nil
}
