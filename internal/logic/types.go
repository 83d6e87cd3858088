// Package logic contains the pure timing and state core of the bike dashboard.
// This package has NO external dependencies (no GPIO, display, OS, or time.Sleep).
// Time is always injectable: timestamps are time.Duration offsets on a monotonic clock.
package logic

import "time"

// Defaults for the calibration constants.
const (
	DefaultWheelRadius         = 0.337 // m
	DefaultPulsesPerRev        = 1
	DefaultDebounce            = 35 * time.Millisecond
	DefaultInactivityTimeout   = 10 * time.Second
	DefaultMotionThreshold     = 0.5 // km/h
	DefaultBrightnessThreshold = 60  // %
	DefaultADCFullScale        = 4095
	DefaultTick                = time.Second
)

// Clock returns the current time on a monotonic clock.
type Clock func() time.Duration

// SpeedSample is the result of one estimator cycle.
type SpeedSample struct {
	Speed   float64 // km/h
	Pulses  uint64
	Elapsed time.Duration
	At      time.Duration
}

// Phase is the logical state of the inactivity tracker.
type Phase string

const (
	PhaseActive  Phase = "ACTIVE"
	PhasePending Phase = "PENDING"
)

// InactivityState is a read-only view of the inactivity tracker.
type InactivityState struct {
	Phase Phase
	// Last time speed was above the motion threshold.
	Since time.Duration
	// Time spent below the motion threshold.
	Idle time.Duration
	// Time left until the sleep signal fires; zero once it is due.
	Remaining time.Duration
	// Whether the one-shot sleep signal has already fired.
	Fired bool
}
