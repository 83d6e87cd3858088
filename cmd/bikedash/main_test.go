package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bikedash/internal/adc"
	"github.com/sweeney/bikedash/internal/config"
	"github.com/sweeney/bikedash/internal/dash"
	"github.com/sweeney/bikedash/internal/display"
	"github.com/sweeney/bikedash/internal/gpio"
	"github.com/sweeney/bikedash/internal/logic"
	"github.com/sweeney/bikedash/internal/mqtt"
	"github.com/sweeney/bikedash/internal/power"
	"github.com/sweeney/bikedash/internal/status"
)

// fakeClock returns a clock yielding 0, step, 2*step, ... on successive
// calls. Only runLoop's goroutine calls it.
func fakeClock(step time.Duration) logic.Clock {
	n := 0
	return func() time.Duration {
		t := time.Duration(n) * step
		n++
		return t
	}
}

type harness struct {
	counter *logic.PulseCounter
	relay   *gpio.FakeOutput
	panel   *display.FakePanel
	sleeper *power.FakeSleeper
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	lc      *lifecycle
	dash    *dash.Dashboard
	clock   logic.Clock
}

// newHarness wires a dashboard from fakes. The clock advances one second per
// call: the dashboard takes t=0, runLoop t=1s, and tick n runs at (n+1)s.
func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		counter: logic.NewPulseCounter(logic.DefaultDebounce),
		relay:   gpio.NewFakeOutput(),
		panel:   display.NewFakePanel(),
		sleeper: power.NewFakeSleeper(),
		pub:     mqtt.NewFakePublisher(),
		clock:   fakeClock(time.Second),
	}
	h.tracker = status.NewTracker("boot-test", time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC), status.Config{})
	h.lc = &lifecycle{
		pub:     h.pub,
		conn:    h.pub,
		tracker: h.tracker,
		now:     time.Now,
		log:     zerolog.Nop(),
	}
	h.dash = dash.New(
		dash.Options{
			Circumference:       logic.Circumference(logic.DefaultWheelRadius),
			PulsesPerRev:        logic.DefaultPulsesPerRev,
			BrightnessThreshold: logic.DefaultBrightnessThreshold,
			MotionThreshold:     logic.DefaultMotionThreshold,
			InactivityTimeout:   logic.DefaultInactivityTimeout,
		},
		h.counter,
		dash.NewADCBrightness(adc.NewFakeReader(1000), logic.DefaultADCFullScale),
		dash.NewOutputRelay(h.relay),
		display.NewRenderer(h.panel),
		h.sleeper,
		h.lc,
		h.clock,
		zerolog.Nop(),
	)
	return h
}

// run drives runLoop for nTicks and then delivers sig.
func (h *harness) run(t *testing.T, heartbeat time.Duration, nTicks int, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), h.dash, h.lc, h.clock, heartbeat, tick, sigCh, zerolog.Nop())
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sigCh <- sig

	return <-errCh
}

func TestRunLoopShutdown(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, 0, 3, syscall.SIGTERM))

	assert.Equal(t, []string{mqtt.EventShutdown}, h.pub.Names())
	ev := h.pub.SystemEvents[0]
	assert.Equal(t, "SIGTERM", ev.Reason)
	assert.True(t, ev.Retained)
	assert.Equal(t, "boot-test", ev.BootID)

	var payload status.StatusJSON
	require.NoError(t, json.Unmarshal(h.pub.SystemPayloads[0], &payload))
	assert.Equal(t, "SHUTDOWN", payload.Status.Event)
	assert.Equal(t, "SIGTERM", payload.Status.Reason)
	assert.Len(t, h.panel.Frames, 3, "one frame per tick")
}

func TestRunLoopSIGINT(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, 0, 0, syscall.SIGINT))
	assert.Equal(t, "SIGINT", h.pub.SystemEvents[0].Reason)
}

func TestRunLoopSleepAndWake(t *testing.T) {
	h := newHarness(t)

	// Tick 10 runs at 11s, more than 10s after the last motion at 0
	require.NoError(t, h.run(t, 0, 10, syscall.SIGTERM))

	assert.Equal(t, 1, h.sleeper.Calls)
	assert.Equal(t, []string{mqtt.EventSleep, mqtt.EventWake, mqtt.EventShutdown}, h.pub.Names())
	assert.Equal(t, "INACTIVITY", h.pub.SystemEvents[0].Reason)

	snap := h.tracker.Snapshot()
	assert.Equal(t, 1, snap.Sleeps)
	assert.False(t, snap.LastWake.IsZero())
	assert.Equal(t, logic.PhaseActive, snap.Inactivity.Phase)
}

func TestRunLoopNoSleepBeforeTimeout(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, 0, 9, syscall.SIGTERM))

	assert.Zero(t, h.sleeper.Calls)
	assert.Equal(t, []string{mqtt.EventShutdown}, h.pub.Names())
}

func TestRunLoopSleepFailureKeepsRunning(t *testing.T) {
	h := newHarness(t)
	h.sleeper.SleepError = errors.New("permission denied")

	require.NoError(t, h.run(t, 0, 15, syscall.SIGTERM))

	assert.Equal(t, 1, h.sleeper.Calls, "latched after the failed attempt")
	assert.Equal(t, []string{mqtt.EventSleep, mqtt.EventShutdown}, h.pub.Names())
}

func TestRunLoopHeartbeat(t *testing.T) {
	h := newHarness(t)

	// runLoop starts at 1s; ticks run at 2s..8s, beats at 4s and 7s
	require.NoError(t, h.run(t, 3*time.Second, 7, syscall.SIGTERM))

	assert.Equal(t, []string{mqtt.EventHeartbeat, mqtt.EventHeartbeat, mqtt.EventShutdown}, h.pub.Names())
	assert.False(t, h.pub.SystemEvents[0].Retained)
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.run(t, 0, 8, syscall.SIGTERM))
	assert.Equal(t, []string{mqtt.EventShutdown}, h.pub.Names())
}

func TestRunLoopPublishErrorsDoNotStopLoop(t *testing.T) {
	h := newHarness(t)
	h.pub.PublishSystemError = errors.New("broker down")

	require.NoError(t, h.run(t, time.Second, 12, syscall.SIGTERM))
	assert.Equal(t, 1, h.sleeper.Calls)
	assert.Len(t, h.panel.Frames, 13, "12 dashboard frames plus the sleep notice")
}

func TestRunLoopSpeedReachesStatus(t *testing.T) {
	h := newHarness(t)
	h.pub.Connected = true
	for i := 1; i <= 5; i++ {
		h.counter.OnEdge(time.Duration(i) * 100 * time.Millisecond)
	}

	require.NoError(t, h.run(t, 0, 1, syscall.SIGTERM))

	snap := h.tracker.Snapshot()
	// Five pulses over the 2s from construction to the first tick
	assert.InDelta(t, logic.Speed(5, 2*time.Second, logic.Circumference(logic.DefaultWheelRadius), 1), snap.Speed, 1e-9)
	assert.Equal(t, uint64(5), snap.Pulses)
	assert.Equal(t, 24, snap.Brightness)
	assert.True(t, snap.LightsOn)
	assert.True(t, snap.MQTTConnected)

	last, ok := h.relay.Last()
	require.True(t, ok)
	assert.True(t, last)
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printConfig(&buf, config.Default()))
	assert.Contains(t, buf.String(), "pulses_per_rev: 1")
	assert.Contains(t, buf.String(), "tick: 1s")
}

func TestOpenOutputDisabled(t *testing.T) {
	out, err := openOutput("gpiochip0", -1, false, "relay")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNopPublisher(t *testing.T) {
	var p mqtt.Publisher = nopPublisher{}
	assert.NoError(t, p.PublishSystem(mqtt.SystemEvent{Event: mqtt.EventStartup}))
	assert.NoError(t, p.Close())
}
