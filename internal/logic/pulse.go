package logic

import (
	"sync/atomic"
	"time"
)

// PulseCounter counts debounced reed-switch edges.
//
// OnEdge is called from the edge handler goroutine, TakeAndReset from the
// cycle loop. Both fields are only ever touched through atomic swaps, so an
// edge racing a reset lands in exactly one cycle.
type PulseCounter struct {
	debounce time.Duration
	count    atomic.Uint64
	lastEdge atomic.Int64
}

// NewPulseCounter creates a counter that rejects edges arriving within
// debounce of the previous edge.
func NewPulseCounter(debounce time.Duration) *PulseCounter {
	return &PulseCounter{debounce: debounce}
}

// OnEdge records a raw edge at ts and reports whether it was counted.
// The debounce window restarts on every edge, accepted or not.
func (c *PulseCounter) OnEdge(ts time.Duration) bool {
	prev := time.Duration(c.lastEdge.Swap(int64(ts)))
	if ts-prev <= c.debounce {
		return false
	}
	c.count.Add(1)
	return true
}

// TakeAndReset returns the pulses counted since the previous call and
// clears the counter.
func (c *PulseCounter) TakeAndReset() uint64 {
	return c.count.Swap(0)
}

// Pending returns the pulses counted so far in the current cycle without
// resetting them.
func (c *PulseCounter) Pending() uint64 {
	return c.count.Load()
}

// Debounce returns the configured debounce window.
func (c *PulseCounter) Debounce() time.Duration {
	return c.debounce
}
