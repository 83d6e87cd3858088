package gpio

import (
	"errors"
	"sync"
	"time"
)

// FakeEdgeSource is a test double that delivers edges on demand.
type FakeEdgeSource struct {
	mu      sync.Mutex
	handler EdgeHandler

	// StartError, if set, will be returned by Start.
	StartError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeEdgeSource creates an unstarted FakeEdgeSource.
func NewFakeEdgeSource() *FakeEdgeSource {
	return &FakeEdgeSource{}
}

// Start records the handler.
func (f *FakeEdgeSource) Start(h EdgeHandler) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handler != nil {
		return errors.New("already started")
	}
	f.handler = h
	return nil
}

// Emit delivers one edge at ts. Emit calls are serialized like hardware events.
// It is a no-op before Start or after Close.
func (f *FakeEdgeSource) Emit(ts time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handler == nil || f.Closed {
		return
	}
	f.handler(ts)
}

// Close stops delivery.
func (f *FakeEdgeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeOutput records every value written to it.
type FakeOutput struct {
	// Values contains every value passed to Set, in order.
	Values []bool

	// SetError, if set, will be returned by Set (the value is not recorded).
	SetError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakeOutput creates a FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the value.
func (f *FakeOutput) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Values = append(f.Values, on)
	return nil
}

// Last returns the most recent value and whether any value was written.
func (f *FakeOutput) Last() (bool, bool) {
	if len(f.Values) == 0 {
		return false, false
	}
	return f.Values[len(f.Values)-1], true
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.Closed = true
	return nil
}
