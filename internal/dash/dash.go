// Package dash runs one dashboard refresh cycle: light control, speed
// sampling, the sleep decision and rendering.
package dash

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/bikedash/internal/adc"
	"github.com/sweeney/bikedash/internal/display"
	"github.com/sweeney/bikedash/internal/gpio"
	"github.com/sweeney/bikedash/internal/logic"
	"github.com/sweeney/bikedash/internal/power"
)

// BrightnessReader returns the ambient brightness in percent.
type BrightnessReader interface {
	ReadBrightness() (int, error)
}

// LightRelay switches the bike lights.
type LightRelay interface {
	SetLight(on bool) error
}

// Renderer draws to the panel.
type Renderer interface {
	Render(f display.Frame) error
	RenderSleep() error
}

// Observer is told about every cycle and about sleep transitions.
// All calls happen on the goroutine running Tick.
type Observer interface {
	// Sleeping is called after the sleep notice is drawn, before suspend.
	Sleeping(now time.Duration)
	// Woke is called once the system has resumed.
	Woke(now time.Duration)
	// Cycled is called at the end of every Tick.
	Cycled(c Cycle)
}

// Cycle is the outcome of one Tick.
type Cycle struct {
	Sample     logic.SpeedSample
	Brightness int // %
	LightsOn   bool
	Inactivity logic.InactivityState
	// Slept is set when the system went to sleep and resumed during the tick.
	Slept bool
}

// Options carries the calibration of a Dashboard.
type Options struct {
	Circumference       float64 // m
	PulsesPerRev        int
	BrightnessThreshold int // %
	MotionThreshold     float64
	InactivityTimeout   time.Duration
}

// Dashboard owns the estimator and the inactivity tracker and drives the
// output collaborators. Tick must not be called concurrently.
type Dashboard struct {
	brightness BrightnessReader
	relay      LightRelay
	renderer   Renderer
	sleeper    power.Sleeper
	observer   Observer
	clock      logic.Clock
	log        zerolog.Logger

	threshold int
	estimator *logic.SpeedEstimator
	tracker   *logic.InactivityTracker

	lastBrightness int
}

// New creates a Dashboard. Pulses are read from counter; start is the
// reference time for the first speed interval and the inactivity timer.
// observer may be nil.
func New(
	opts Options,
	counter *logic.PulseCounter,
	brightness BrightnessReader,
	relay LightRelay,
	renderer Renderer,
	sleeper power.Sleeper,
	observer Observer,
	clock logic.Clock,
	log zerolog.Logger,
) *Dashboard {
	start := clock()
	return &Dashboard{
		brightness: brightness,
		relay:      relay,
		renderer:   renderer,
		sleeper:    sleeper,
		observer:   observer,
		clock:      clock,
		log:        log,
		threshold:  opts.BrightnessThreshold,
		estimator:  logic.NewSpeedEstimator(counter, opts.Circumference, opts.PulsesPerRev, start),
		tracker:    logic.NewInactivityTracker(opts.MotionThreshold, opts.InactivityTimeout, start),
	}
}

// Tick runs one cycle at now. Only a failed suspend is returned as an
// error; sensor and output failures are logged and the cycle carries on.
func (d *Dashboard) Tick(ctx context.Context, now time.Duration) (Cycle, error) {
	var c Cycle

	c.Brightness = d.readBrightness()
	c.LightsOn = logic.LightsOn(c.Brightness, d.threshold)
	if err := d.relay.SetLight(c.LightsOn); err != nil {
		d.log.Warn().Err(err).Bool("on", c.LightsOn).Msg("failed to switch lights")
	}

	c.Sample = d.estimator.Sample(now)

	if d.tracker.Update(c.Sample.Speed, now) {
		if err := d.sleep(ctx, now); err != nil {
			c.Inactivity = d.tracker.State(now)
			d.notify(c)
			return c, err
		}
		c.Slept = true
	}

	c.Inactivity = d.tracker.State(now)

	if err := d.renderer.Render(display.Frame{
		Speed:      c.Sample.Speed,
		Brightness: c.Brightness,
		LightsOn:   c.LightsOn,
	}); err != nil {
		d.log.Warn().Err(err).Msg("failed to render")
	}

	d.log.Debug().
		Uint64("pulses", c.Sample.Pulses).
		Dur("dt", c.Sample.Elapsed).
		Float64("speed", c.Sample.Speed).
		Int("brightness", c.Brightness).
		Bool("lights", c.LightsOn).
		Str("phase", string(c.Inactivity.Phase)).
		Dur("sleep_in", c.Inactivity.Remaining).
		Msg("tick")

	d.notify(c)
	return c, nil
}

func (d *Dashboard) sleep(ctx context.Context, now time.Duration) error {
	idle := d.tracker.State(now).Idle
	d.log.Info().Dur("idle", idle).Msg("no motion, going to sleep")

	if err := d.renderer.RenderSleep(); err != nil {
		d.log.Warn().Err(err).Msg("failed to render sleep notice")
	}
	if d.observer != nil {
		d.observer.Sleeping(now)
	}

	if err := d.sleeper.Sleep(ctx); err != nil {
		return fmt.Errorf("sleep: %w", err)
	}

	woke := d.clock()
	d.tracker.Wake(woke)
	d.estimator.Restart(woke)
	d.log.Info().Msg("woke up")
	if d.observer != nil {
		d.observer.Woke(woke)
	}
	return nil
}

func (d *Dashboard) readBrightness() int {
	b, err := d.brightness.ReadBrightness()
	if err != nil {
		d.log.Warn().Err(err).Int("last", d.lastBrightness).Msg("brightness read failed, keeping last value")
		return d.lastBrightness
	}
	d.lastBrightness = b
	return b
}

func (d *Dashboard) notify(c Cycle) {
	if d.observer != nil {
		d.observer.Cycled(c)
	}
}

// State returns the inactivity tracker state as seen at now.
func (d *Dashboard) State(now time.Duration) logic.InactivityState {
	return d.tracker.State(now)
}

// ADCBrightness converts raw light sensor readings to percent.
type ADCBrightness struct {
	reader    adc.Reader
	fullScale int
}

// NewADCBrightness wraps reader; fullScale is the raw value for 100%.
func NewADCBrightness(reader adc.Reader, fullScale int) *ADCBrightness {
	return &ADCBrightness{reader: reader, fullScale: fullScale}
}

// ReadBrightness implements BrightnessReader.
func (a *ADCBrightness) ReadBrightness() (int, error) {
	raw, err := a.reader.ReadRaw()
	if err != nil {
		return 0, err
	}
	return logic.BrightnessPercent(raw, a.fullScale), nil
}

// OutputRelay drives the lights from a GPIO output. A nil output makes the
// relay a no-op.
type OutputRelay struct {
	out gpio.Output
}

// NewOutputRelay creates a relay on out.
func NewOutputRelay(out gpio.Output) *OutputRelay {
	return &OutputRelay{out: out}
}

// SetLight implements LightRelay.
func (r *OutputRelay) SetLight(on bool) error {
	if r.out == nil {
		return nil
	}
	return r.out.Set(on)
}
