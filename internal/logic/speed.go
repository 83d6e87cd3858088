package logic

import (
	"math"
	"time"
)

// Circumference returns the wheel circumference in metres for a radius in metres.
func Circumference(radius float64) float64 {
	return 2 * math.Pi * radius
}

// Speed converts pulses counted over dt into km/h.
// Returns 0 for no pulses, a non-positive interval or a degenerate wheel.
func Speed(pulses uint64, dt time.Duration, circumference float64, pulsesPerRev int) float64 {
	if pulses == 0 || dt <= 0 || circumference <= 0 {
		return 0
	}
	if pulsesPerRev < 1 {
		pulsesPerRev = 1
	}

	ms := float64(dt) / float64(time.Millisecond)
	revs := float64(pulses) / float64(pulsesPerRev)
	v := (circumference * revs * 1000 / ms) * 3.6

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// SpeedEstimator turns the pulse count of each cycle into a speed.
type SpeedEstimator struct {
	counter       *PulseCounter
	circumference float64
	pulsesPerRev  int
	previous      time.Duration
}

// NewSpeedEstimator creates an estimator reading from counter. start is the
// reference time for the first cycle.
func NewSpeedEstimator(counter *PulseCounter, circumference float64, pulsesPerRev int, start time.Duration) *SpeedEstimator {
	if pulsesPerRev < 1 {
		pulsesPerRev = 1
	}
	return &SpeedEstimator{
		counter:       counter,
		circumference: circumference,
		pulsesPerRev:  pulsesPerRev,
		previous:      start,
	}
}

// Sample drains the counter and returns the speed over the interval since
// the previous call. The interval is measured, not assumed.
func (e *SpeedEstimator) Sample(now time.Duration) SpeedSample {
	dt := now - e.previous
	e.previous = now

	pulses := e.counter.TakeAndReset()

	return SpeedSample{
		Speed:   Speed(pulses, dt, e.circumference, e.pulsesPerRev),
		Pulses:  pulses,
		Elapsed: dt,
		At:      now,
	}
}

// Restart drops any pulses counted so far and starts a fresh interval at now.
func (e *SpeedEstimator) Restart(now time.Duration) {
	e.counter.TakeAndReset()
	e.previous = now
}
