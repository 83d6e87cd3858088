package display

import (
	"fmt"
	"os"
)

// DefaultDevice is the framebuffer exposed by the ssd1307fb kernel driver.
const DefaultDevice = "/dev/fb1"

// FBPanel writes frames to a Linux framebuffer device.
type FBPanel struct {
	f *os.File
}

// OpenFBPanel opens the framebuffer device for writing.
func OpenFBPanel(path string) (*FBPanel, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer: %w", err)
	}
	return &FBPanel{f: f}, nil
}

// Flush writes the whole frame at offset 0.
func (p *FBPanel) Flush(frame []byte) error {
	if _, err := p.f.WriteAt(frame, 0); err != nil {
		return fmt.Errorf("write framebuffer: %w", err)
	}
	return nil
}

// Close closes the device.
func (p *FBPanel) Close() error {
	return p.f.Close()
}

// FakePanel records flushed frames for test assertions.
type FakePanel struct {
	// Frames contains a copy of every flushed frame.
	Frames [][]byte

	// FlushError, if set, will be returned by Flush.
	FlushError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePanel creates a FakePanel.
func NewFakePanel() *FakePanel {
	return &FakePanel{}
}

// Flush records a copy of the frame.
func (p *FakePanel) Flush(frame []byte) error {
	if p.FlushError != nil {
		return p.FlushError
	}
	p.Frames = append(p.Frames, append([]byte(nil), frame...))
	return nil
}

// Close marks the panel as closed.
func (p *FakePanel) Close() error {
	p.Closed = true
	return nil
}
