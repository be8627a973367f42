// Package vga drives the 80x25 VGA text mode buffer used as the on-screen
// operator console.
package vga

import (
	"io"
	"unsafe"

	"irqos/kernel"
)

// Color is a 4-bit VGA text mode color.
type Color uint8

// The 16 colors supported by VGA text mode.
const (
	Black Color = iota
	Blue
	Green
	Cyan
	Red
	Magenta
	Brown
	LightGrey
	Grey
	LightBlue
	LightGreen
	LightCyan
	LightRed
	LightMagenta
	LightBrown
	White
)

const (
	// FramebufferAddr is the physical address of the text mode buffer.
	FramebufferAddr = uintptr(0xb8000)

	// Width and Height are the text mode dimensions in characters.
	Width  = 80
	Height = 25

	blank = ' '
)

var errBadFramebuffer = &kernel.Error{Module: "vga", Message: "framebuffer smaller than width*height"}

// Framebuffer returns the identity mapped VGA text buffer.
func Framebuffer() []uint16 {
	return unsafe.Slice((*uint16)(unsafe.Pointer(FramebufferAddr)), Width*Height)
}

// Terminal renders text to a text mode framebuffer. It understands CR and
// LF and scrolls the buffer once the cursor moves past the last line.
//
// Terminal does not lock; it is only written with interrupts disabled or
// from the single kernel thread.
type Terminal struct {
	fb     []uint16
	width  uint16
	height uint16

	curX uint16
	curY uint16
	attr uint16
}

// NewTerminal returns a terminal that renders to fb using light grey text
// on a black background.
func NewTerminal(fb []uint16, width, height uint16) (*Terminal, *kernel.Error) {
	if len(fb) < int(width)*int(height) {
		return nil, errBadFramebuffer
	}

	t := &Terminal{fb: fb, width: width, height: height}
	t.SetColor(LightGrey, Black)
	return t, nil
}

// SetColor changes the colors used by subsequent writes.
func (t *Terminal) SetColor(fg, bg Color) {
	t.attr = uint16(bg&0xf)<<4 | uint16(fg&0xf)
}

// Clear blanks the screen and moves the cursor to the top-left corner.
func (t *Terminal) Clear() {
	t.clearRows(0, t.height)
	t.curX, t.curY = 0, 0
}

// Position returns the current cursor position (x, y).
func (t *Terminal) Position() (uint16, uint16) {
	return t.curX, t.curY
}

// Write implements io.Writer.
func (t *Terminal) Write(data []byte) (int, error) {
	for _, b := range data {
		_ = t.WriteByte(b)
	}
	return len(data), nil
}

// WriteByte implements io.ByteWriter.
func (t *Terminal) WriteByte(b byte) error {
	switch b {
	case '\r':
		t.curX = 0
	case '\n':
		t.curX = 0
		t.lf()
	default:
		t.fb[t.curY*t.width+t.curX] = t.attr<<8 | uint16(b)
		t.curX++
		if t.curX == t.width {
			t.curX = 0
			t.lf()
		}
	}
	return nil
}

// lf advances the cursor by one line, scrolling the contents up if the
// cursor is on the last line.
func (t *Terminal) lf() {
	if t.curY+1 < t.height {
		t.curY++
		return
	}

	copy(t.fb, t.fb[t.width:int(t.width)*int(t.height)])
	t.clearRows(t.height-1, 1)
}

func (t *Terminal) clearRows(y, rows uint16) {
	cell := t.attr<<8 | blank
	start := int(y) * int(t.width)
	end := start + int(rows)*int(t.width)
	for i := start; i < end; i++ {
		t.fb[i] = cell
	}
}

var _ io.Writer = (*Terminal)(nil)
