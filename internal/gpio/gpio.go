// Package gpio provides the reed-switch edge source and the output lines with hardware abstraction.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotSupported is returned by the real implementation on non-Linux platforms.
var ErrNotSupported = errors.New("gpio: not supported on this platform (requires Linux)")

// EdgeHandler is called for each raw edge with its monotonic timestamp.
// Calls are serialized: the handler is never re-entered.
type EdgeHandler func(ts time.Duration)

// EdgeSource delivers raw sensor edges.
type EdgeSource interface {
	// Start begins delivering edges to h. It must be called at most once.
	Start(h EdgeHandler) error

	// Close stops edge delivery and releases the line.
	Close() error
}

// Output is a single digital output line in logical form (true = active).
type Output interface {
	Set(on bool) error
	Close() error
}

// Edge selects which transitions of the sensor line are reported.
type Edge string

const (
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

// ParseEdge validates an edge mode name.
func ParseEdge(s string) (Edge, error) {
	switch e := Edge(s); e {
	case EdgeRising, EdgeFalling, EdgeBoth:
		return e, nil
	}
	return "", fmt.Errorf("gpio: unknown edge mode %q", s)
}

// Default line offsets (BCM numbering).
const (
	DefaultChip         = "gpiochip0"
	DefaultPinReed      = 17
	DefaultPinRelay     = 27
	DefaultPinDisplay   = 22
	DefaultPinLatchCLR  = 23
	DefaultPinLatchData = 24
)

func boolToValue(on bool) int {
	if on {
		return 1
	}
	return 0
}
