// Package display renders the dashboard onto a 128x64 monochrome panel.
package display

import "image/color"

// Panel geometry of the SSD1306 module.
const (
	Width  = 128
	Height = 64
)

var (
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	black = color.RGBA{A: 255}
)

// Panel receives finished frames.
type Panel interface {
	// Flush pushes a packed 1bpp frame (row-major, LSB first, Width/8 bytes per row).
	Flush(frame []byte) error
	Close() error
}

// Framebuffer is an in-memory 1bpp frame that tinyfont and tinydraw can draw into.
type Framebuffer struct {
	width, height int16
	buf           []byte
	panel         Panel
}

// NewFramebuffer creates a blank Width x Height frame that flushes to panel.
func NewFramebuffer(panel Panel) *Framebuffer {
	return &Framebuffer{
		width:  Width,
		height: Height,
		buf:    make([]byte, Width*Height/8),
		panel:  panel,
	}
}

// Size returns the frame dimensions.
func (f *Framebuffer) Size() (x, y int16) {
	return f.width, f.height
}

// SetPixel lights the pixel when c is bright, clears it otherwise.
// Out-of-range coordinates are ignored.
func (f *Framebuffer) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return
	}
	idx, bit := f.offset(x, y)
	if isLit(c) {
		f.buf[idx] |= bit
	} else {
		f.buf[idx] &^= bit
	}
}

// Pixel reports whether the pixel at (x, y) is lit.
func (f *Framebuffer) Pixel(x, y int16) bool {
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return false
	}
	idx, bit := f.offset(x, y)
	return f.buf[idx]&bit != 0
}

// Display pushes the current frame to the panel.
func (f *Framebuffer) Display() error {
	return f.panel.Flush(f.buf)
}

// Clear blanks the frame without flushing.
func (f *Framebuffer) Clear() {
	for i := range f.buf {
		f.buf[i] = 0
	}
}

// Lit counts lit pixels inside the rectangle [x0,x1) x [y0,y1).
func (f *Framebuffer) Lit(x0, y0, x1, y1 int16) int {
	n := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if f.Pixel(x, y) {
				n++
			}
		}
	}
	return n
}

func (f *Framebuffer) offset(x, y int16) (int, byte) {
	i := int(y)*int(f.width) + int(x)
	return i / 8, 1 << (uint(i) % 8)
}

func isLit(c color.RGBA) bool {
	return int(c.R)+int(c.G)+int(c.B) > 3*127
}
