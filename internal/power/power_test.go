package power

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/bikedash/internal/gpio"
)

type fixture struct {
	clr, d, disp *gpio.FakeOutput
	statePath    string
	waited       []time.Duration
	s            *Suspender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clr:       gpio.NewFakeOutput(),
		d:         gpio.NewFakeOutput(),
		disp:      gpio.NewFakeOutput(),
		statePath: filepath.Join(t.TempDir(), "state"),
	}
	f.s = NewSuspender(Lines{LatchClear: f.clr, LatchData: f.d, DisplayPower: f.disp}, f.statePath, DefaultNotice, zerolog.Nop())
	f.s.wait = func(d time.Duration) { f.waited = append(f.waited, d) }
	return f
}

func TestSuspenderSequence(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.s.Sleep(context.Background()))

	assert.Equal(t, []bool{true, false, true}, f.clr.Values, "CLR pulse")
	assert.Equal(t, []bool{true, false}, f.d.Values, "D armed, then released after resume")
	assert.Equal(t, []bool{false, true}, f.disp.Values, "display off for suspend, on after resume")
	assert.Equal(t, []time.Duration{750 * time.Millisecond}, f.waited)

	data, err := os.ReadFile(f.statePath)
	require.NoError(t, err)
	assert.Equal(t, "mem", string(data))
}

func TestSuspenderCancelledBeforeSuspend(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.s.Sleep(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, statErr := os.Stat(f.statePath)
	assert.True(t, os.IsNotExist(statErr), "suspend must not be written")
	assert.Equal(t, []bool{false, true}, f.disp.Values)
}

func TestSuspenderWriteFailure(t *testing.T) {
	f := newFixture(t)
	f.s.statePath = filepath.Join(t.TempDir(), "missing", "state")

	err := f.s.Sleep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "suspend")
	last, _ := f.disp.Last()
	assert.True(t, last, "display restored after failed suspend")
}

func TestSuspenderLatchFailure(t *testing.T) {
	f := newFixture(t)
	f.clr.SetError = errors.New("line busy")

	err := f.s.Sleep(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arm wake latch")
	assert.Empty(t, f.disp.Values, "nothing else touched")
}

func TestSuspenderWithoutLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	s := NewSuspender(Lines{}, path, 0, zerolog.Nop())
	s.wait = func(time.Duration) {}

	require.NoError(t, s.Sleep(context.Background()))
}

func TestFakeSleeper(t *testing.T) {
	f := NewFakeSleeper()
	ran := false
	f.OnSleep = func() { ran = true }

	require.NoError(t, f.Sleep(context.Background()))
	assert.Equal(t, 1, f.Calls)
	assert.True(t, ran)

	f.SleepError = errors.New("boom")
	assert.Error(t, f.Sleep(context.Background()))
	assert.Equal(t, 2, f.Calls)
}
