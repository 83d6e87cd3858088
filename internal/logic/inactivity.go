package logic

import "time"

// InactivityTracker decides when the dashboard should go to sleep.
//
// Speeds above the motion threshold keep it ACTIVE. At or below the
// threshold it is PENDING, and once the time since the last motion exceeds
// the timeout Update returns true. The signal is latched: it fires once and
// stays quiet until motion or Wake re-arms it.
type InactivityTracker struct {
	threshold  float64
	timeout    time.Duration
	lastMotion time.Duration
	moving     bool
	fired      bool
}

// NewInactivityTracker creates a tracker that treats start as the last motion.
func NewInactivityTracker(threshold float64, timeout time.Duration, start time.Duration) *InactivityTracker {
	return &InactivityTracker{
		threshold:  threshold,
		timeout:    timeout,
		lastMotion: start,
		moving:     true,
	}
}

// Update feeds one speed sample taken at now. It returns true exactly on the
// tick the sleep transition is due.
func (t *InactivityTracker) Update(speed float64, now time.Duration) bool {
	t.moving = speed > t.threshold
	if t.moving {
		t.lastMotion = now
		t.fired = false
		return false
	}

	if t.fired {
		return false
	}

	if now-t.lastMotion > t.timeout {
		t.fired = true
		return true
	}
	return false
}

// Wake re-arms the sleep signal after a resume and restarts the inactivity
// clock at now.
func (t *InactivityTracker) Wake(now time.Duration) {
	t.fired = false
	t.moving = true
	t.lastMotion = now
}

// State returns a snapshot of the tracker as seen at now.
func (t *InactivityTracker) State(now time.Duration) InactivityState {
	idle := now - t.lastMotion
	if idle < 0 {
		idle = 0
	}

	s := InactivityState{
		Phase: PhaseActive,
		Since: t.lastMotion,
		Idle:  idle,
		Fired: t.fired,
	}
	if !t.moving {
		s.Phase = PhasePending
	}
	if remaining := t.timeout - idle; remaining > 0 {
		s.Remaining = remaining
	}
	return s
}

// Timeout returns the configured inactivity timeout.
func (t *InactivityTracker) Timeout() time.Duration {
	return t.timeout
}
