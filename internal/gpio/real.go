//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "bikedash"

// RealEdgeSource reads reed-switch edges from actual hardware using Linux GPIO character device.
type RealEdgeSource struct {
	chip string
	pin  int
	edge Edge

	mu   sync.Mutex
	line *gpiocdev.Line
}

// NewRealEdgeSource creates an edge source for the given chip and line offset.
// The line is not requested until Start.
func NewRealEdgeSource(chip string, pin int, edge Edge) *RealEdgeSource {
	return &RealEdgeSource{chip: chip, pin: pin, edge: edge}
}

// Start requests the line as a pulled-up input with edge detection.
// Events are delivered serially from gpiocdev's watcher goroutine, with the
// kernel's CLOCK_MONOTONIC timestamp.
func (s *RealEdgeSource) Start(h EdgeHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line != nil {
		return fmt.Errorf("reed pin %d: already started", s.pin)
	}

	var edgeOpt gpiocdev.LineReqOption
	switch s.edge {
	case EdgeFalling:
		edgeOpt = gpiocdev.WithFallingEdge
	case EdgeBoth:
		edgeOpt = gpiocdev.WithBothEdges
	default:
		edgeOpt = gpiocdev.WithRisingEdge
	}

	line, err := gpiocdev.RequestLine(s.chip, s.pin,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		edgeOpt,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			h(evt.Timestamp)
		}),
	)
	if err != nil {
		return fmt.Errorf("request reed pin %d: %w", s.pin, err)
	}

	s.line = line
	return nil
}

// Close releases the line. Pending events are dropped.
func (s *RealEdgeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.line == nil {
		return nil
	}
	err := s.line.Close()
	s.line = nil
	if err != nil {
		return fmt.Errorf("close reed pin %d: %w", s.pin, err)
	}
	return nil
}

// RealOutput drives an output line on actual hardware.
type RealOutput struct {
	pin  int
	line *gpiocdev.Line
}

// NewRealOutput requests pin as an output, driven to initial.
// With activeLow the physical level is inverted (logical on = low).
func NewRealOutput(chip string, pin int, activeLow, initial bool) (*RealOutput, error) {
	opts := []gpiocdev.LineReqOption{
		gpiocdev.WithConsumer(consumer),
		gpiocdev.AsOutput(boolToValue(initial)),
	}
	if activeLow {
		opts = append(opts, gpiocdev.AsActiveLow)
	}

	line, err := gpiocdev.RequestLine(chip, pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request output pin %d: %w", pin, err)
	}
	return &RealOutput{pin: pin, line: line}, nil
}

// Set drives the line to its logical state.
func (o *RealOutput) Set(on bool) error {
	if err := o.line.SetValue(boolToValue(on)); err != nil {
		return fmt.Errorf("set pin %d: %w", o.pin, err)
	}
	return nil
}

// Close releases the output.
// Reconfigures the pin to input with pull-down (matching Pi boot defaults)
// before closing, so the relay and latch are not left driven across a reboot.
func (o *RealOutput) Close() error {
	var errs []error

	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.pin, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.pin, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
