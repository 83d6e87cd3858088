// Package status provides a thread-safe view of the dashboard state.
// It is written by the run loop and read by HTTP handlers and MQTT events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/bikedash/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	WheelRadius    float64
	PulsesPerRev   int
	DebounceMs     int64
	SleepTimeoutMs int64
	TickMs         int64
	HeartbeatMs    int64
	Broker         string
	HTTPAddr       string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	BootID        string
	Speed         float64 // km/h
	Pulses        uint64
	Brightness    int // %
	LightsOn      bool
	Inactivity    logic.InactivityState
	Sleeps        int
	LastSleep     time.Time
	LastWake      time.Time
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given boot id, start time and config.
func NewTracker(bootID string, startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:    bootID,
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update records the outcome of one dashboard cycle.
func (t *Tracker) Update(sample logic.SpeedSample, brightness int, lightsOn bool, inactivity logic.InactivityState) {
	t.mu.Lock()
	t.snap.Speed = sample.Speed
	t.snap.Pulses = sample.Pulses
	t.snap.Brightness = brightness
	t.snap.LightsOn = lightsOn
	t.snap.Inactivity = inactivity
	t.mu.Unlock()
}

// RecordSleep counts a sleep transition starting at at.
func (t *Tracker) RecordSleep(at time.Time) {
	t.mu.Lock()
	t.snap.Sleeps++
	t.snap.LastSleep = at
	t.mu.Unlock()
}

// RecordWake notes a resume at at.
func (t *Tracker) RecordWake(at time.Time) {
	t.mu.Lock()
	t.snap.LastWake = at
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
