package display

import (
	"fmt"
	"math"

	"tinygo.org/x/tinydraw"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"
	"tinygo.org/x/tinyfont/proggy"
)

// Frame is the data shown on one dashboard refresh.
type Frame struct {
	Speed      float64 // km/h
	Brightness int     // %
	LightsOn   bool
}

// Layout of the dashboard, in pixels.
const (
	speedBaseline = 28
	labelBaseline = 50
	barX, barY    = 0, 55
	barW, barH    = 90, 5
	lampX, lampY  = 115, 55
	lampR         = 7
	maxSpeed      = 999.9
)

// Renderer draws dashboard frames and the sleep notice.
type Renderer struct {
	fb *Framebuffer
}

// NewRenderer creates a renderer drawing onto a fresh framebuffer for panel.
func NewRenderer(panel Panel) *Renderer {
	return &Renderer{fb: NewFramebuffer(panel)}
}

// Framebuffer exposes the frame being drawn.
func (r *Renderer) Framebuffer() *Framebuffer {
	return r.fb
}

// Render draws the speed, the brightness bar and label, and the lights
// indicator, then flushes the frame.
func (r *Renderer) Render(f Frame) error {
	b := clamp(f.Brightness, 0, 100)

	r.fb.Clear()
	tinyfont.WriteLine(r.fb, &freemono.Bold18pt7b, 0, speedBaseline, FormatSpeed(f.Speed), white)
	tinyfont.WriteLine(r.fb, &proggy.TinySZ8pt7b, 0, labelBaseline, fmt.Sprintf("Brightness: %d", b), white)

	tinydraw.Rectangle(r.fb, barX, barY, barW, barH, white)
	if fill := int16(barW * b / 100); fill > 0 {
		tinydraw.FilledRectangle(r.fb, barX, barY, fill, barH, white)
	}

	if f.LightsOn {
		tinydraw.FilledCircle(r.fb, lampX, lampY, lampR, white)
	} else {
		tinydraw.Circle(r.fb, lampX, lampY, lampR, white)
	}

	if err := r.fb.Display(); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// RenderSleep shows the going-to-sleep notice.
func (r *Renderer) RenderSleep() error {
	r.fb.Clear()
	tinyfont.WriteLine(r.fb, &freemono.Bold12pt7b, 0, 20, "Going", white)
	tinyfont.WriteLine(r.fb, &freemono.Bold12pt7b, 0, 52, "2 Sleep!", white)

	if err := r.fb.Display(); err != nil {
		return fmt.Errorf("flush sleep notice: %w", err)
	}
	return nil
}

// Blank clears the panel.
func (r *Renderer) Blank() error {
	r.fb.Clear()
	if err := r.fb.Display(); err != nil {
		return fmt.Errorf("flush blank frame: %w", err)
	}
	return nil
}

// FormatSpeed formats a speed to one decimal place, clamped to what the
// panel can show.
func FormatSpeed(v float64) string {
	if v < 0 || math.IsNaN(v) {
		v = 0
	}
	if v > maxSpeed {
		v = maxSpeed
	}
	return fmt.Sprintf("%4.1f", v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
