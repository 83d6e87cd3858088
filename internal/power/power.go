// Package power performs the low-power sleep transition.
package power

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/bikedash/internal/gpio"
)

// DefaultStatePath is the kernel's suspend control file.
const DefaultStatePath = "/sys/power/state"

// DefaultNotice is how long the sleep notice stays on screen.
const DefaultNotice = 750 * time.Millisecond

// Sleeper suspends the system until an external wake signal.
type Sleeper interface {
	// Sleep blocks for the whole suspend and returns after resume.
	Sleep(ctx context.Context) error
}

// Lines groups the outputs touched around a suspend.
// Any of them may be nil when the hardware lacks it.
type Lines struct {
	// LatchClear and LatchData arm the external wake flip-flop.
	LatchClear gpio.Output
	LatchData  gpio.Output
	// DisplayPower switches the panel supply.
	DisplayPower gpio.Output
}

// Suspender arms the wake latch, powers the display down and writes "mem"
// to the kernel suspend file. The write returns once the system resumes.
type Suspender struct {
	lines     Lines
	statePath string
	notice    time.Duration
	log       zerolog.Logger

	// wait is time.Sleep outside of tests.
	wait func(time.Duration)
}

// NewSuspender creates a Suspender.
func NewSuspender(lines Lines, statePath string, notice time.Duration, log zerolog.Logger) *Suspender {
	return &Suspender{
		lines:     lines,
		statePath: statePath,
		notice:    notice,
		log:       log,
		wait:      time.Sleep,
	}
}

// Sleep runs the full transition. Once the suspend write has been issued it
// cannot be cancelled; ctx is only checked before that point.
func (s *Suspender) Sleep(ctx context.Context) error {
	if err := s.armLatch(); err != nil {
		return fmt.Errorf("arm wake latch: %w", err)
	}
	s.log.Debug().Msg("wake latch armed")

	// Let the rider read the notice
	s.wait(s.notice)

	s.setDisplay(false)

	if err := ctx.Err(); err != nil {
		s.setDisplay(true)
		return err
	}

	s.log.Info().Str("path", s.statePath).Msg("suspending")
	err := os.WriteFile(s.statePath, []byte("mem"), 0o644)

	// Resumed (or the write failed): restore the panel and idle the latch
	s.setDisplay(true)
	if s.lines.LatchData != nil {
		if lerr := s.lines.LatchData.Set(false); lerr != nil {
			s.log.Warn().Err(lerr).Msg("failed to release wake latch")
		}
	}

	if err != nil {
		return fmt.Errorf("suspend: %w", err)
	}
	s.log.Info().Msg("resumed")
	return nil
}

// armLatch clears the flip-flop (CLR high, low, high) and sets D high so the
// next reed pulse raises the wake line.
func (s *Suspender) armLatch() error {
	if clr := s.lines.LatchClear; clr != nil {
		for _, v := range []bool{true, false, true} {
			if err := clr.Set(v); err != nil {
				return fmt.Errorf("latch clear: %w", err)
			}
		}
	}
	if d := s.lines.LatchData; d != nil {
		if err := d.Set(true); err != nil {
			return fmt.Errorf("latch data: %w", err)
		}
	}
	return nil
}

func (s *Suspender) setDisplay(on bool) {
	if s.lines.DisplayPower == nil {
		return
	}
	if err := s.lines.DisplayPower.Set(on); err != nil {
		s.log.Warn().Err(err).Bool("on", on).Msg("failed to switch display power")
	}
}

// FakeSleeper records sleep requests.
type FakeSleeper struct {
	// Calls counts Sleep invocations.
	Calls int

	// SleepError, if set, will be returned by Sleep.
	SleepError error

	// OnSleep, if set, runs inside Sleep (e.g. to advance a fake clock).
	OnSleep func()
}

// NewFakeSleeper creates a FakeSleeper.
func NewFakeSleeper() *FakeSleeper {
	return &FakeSleeper{}
}

// Sleep records the call and returns immediately.
func (f *FakeSleeper) Sleep(ctx context.Context) error {
	f.Calls++
	if f.OnSleep != nil {
		f.OnSleep()
	}
	return f.SleepError
}
