// Package frame holds the pixel buffer the viewer reconstructs from the
// update stream. It is a leaf package: it knows nothing about the wire
// protocol or the connection that feeds it.
package frame

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfBounds = errors.New("frame: out of bounds")
	ErrInvalidSize = errors.New("frame: invalid size")
)

// Color is an RGB triple with each component in [0,1].
type Color struct {
	R, G, B float64
}

// Uninitialized marks pixels that no op has written yet.
var Uninitialized = Color{R: 1, G: 0, B: 1}

// ResizePolicy controls what happens to existing content on resize.
type ResizePolicy int

const (
	// Preserve keeps the overlapping region and fills new pixels with
	// Uninitialized.
	Preserve ResizePolicy = iota
	// Discard fills the whole resized buffer with Uninitialized.
	Discard
)

func (p ResizePolicy) String() string {
	switch p {
	case Preserve:
		return "preserve"
	case Discard:
		return "discard"
	default:
		return fmt.Sprintf("ResizePolicy(%d)", int(p))
	}
}

// ParseResizePolicy maps a config value to a ResizePolicy. The empty string
// selects Preserve.
func ParseResizePolicy(s string) (ResizePolicy, error) {
	switch s {
	case "", "preserve":
		return Preserve, nil
	case "discard":
		return Discard, nil
	default:
		return Preserve, fmt.Errorf("unknown resize policy %q", s)
	}
}

// Buffer is a mutable W×H pixel store. It is not safe for concurrent use;
// the viewer touches it only from its event loop.
type Buffer struct {
	width   int
	height  int
	pixels  []Color
	policy  ResizePolicy
	seq     uint64
	version uint64
	dirty   bool
}

// New creates an empty 0×0 buffer.
func New(policy ResizePolicy) *Buffer {
	return &Buffer{policy: policy}
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Policy returns the active resize policy.
func (b *Buffer) Policy() ResizePolicy { return b.policy }

// SetPolicy changes the policy used by later resizes.
func (b *Buffer) SetPolicy(p ResizePolicy) { b.policy = p }

// Seq returns the sequence number of the last op applied to the buffer.
func (b *Buffer) Seq() uint64 { return b.seq }

// SetSeq records the sequence number of the op just applied.
func (b *Buffer) SetSeq(seq uint64) { b.seq = seq }

// Version increases on every successful mutation.
func (b *Buffer) Version() uint64 { return b.version }

// Dirty reports whether the buffer changed since the last ClearDirty.
func (b *Buffer) Dirty() bool { return b.dirty }

// ClearDirty is called by the renderer after it painted a snapshot.
func (b *Buffer) ClearDirty() { b.dirty = false }

func (b *Buffer) touch() {
	b.version++
	b.dirty = true
}

// Resize changes the dimensions. The pixel slice is rebuilt and swapped in
// whole, so the buffer is never observed partially sized.
func (b *Buffer) Resize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	next := make([]Color, w*h)
	for i := range next {
		next[i] = Uninitialized
	}
	if b.policy == Preserve {
		cw, ch := min(w, b.width), min(h, b.height)
		for y := 0; y < ch; y++ {
			copy(next[y*w:y*w+cw], b.pixels[y*b.width:y*b.width+cw])
		}
	}
	b.width, b.height, b.pixels = w, h, next
	b.touch()
	return nil
}

// SetPixel writes a single pixel.
func (b *Buffer) SetPixel(x, y int, c Color) error {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return fmt.Errorf("%w: pixel (%d,%d) in %dx%d", ErrOutOfBounds, x, y, b.width, b.height)
	}
	b.pixels[y*b.width+x] = c
	b.touch()
	return nil
}

// SetRun writes len(colors) consecutive pixels of row y starting at x0.
// Either the whole run lands or nothing does.
func (b *Buffer) SetRun(y, x0 int, colors []Color) error {
	if y < 0 || y >= b.height || x0 < 0 || x0+len(colors) > b.width {
		return fmt.Errorf("%w: run y=%d x0=%d len=%d in %dx%d", ErrOutOfBounds, y, x0, len(colors), b.width, b.height)
	}
	copy(b.pixels[y*b.width+x0:], colors)
	b.touch()
	return nil
}

// Replace installs a complete frame of w×h row-major pixels.
func (b *Buffer) Replace(w, h int, colors []Color) error {
	if w <= 0 || h <= 0 || len(colors) != w*h {
		return fmt.Errorf("%w: full frame %dx%d with %d pixels", ErrInvalidSize, w, h, len(colors))
	}
	next := make([]Color, len(colors))
	copy(next, colors)
	b.width, b.height, b.pixels = w, h, next
	b.touch()
	return nil
}

// At returns the pixel at (x, y). ok is false outside the buffer.
func (b *Buffer) At(x, y int) (c Color, ok bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return Color{}, false
	}
	return b.pixels[y*b.width+x], true
}

// Snapshot copies the current state for rendering.
func (b *Buffer) Snapshot() Snapshot {
	px := make([]Color, len(b.pixels))
	copy(px, b.pixels)
	return Snapshot{
		Width:   b.width,
		Height:  b.height,
		Seq:     b.seq,
		Version: b.version,
		pixels:  px,
	}
}

// Snapshot is an immutable view of a Buffer at one point in time.
type Snapshot struct {
	Width   int
	Height  int
	Seq     uint64
	Version uint64
	pixels  []Color
}

// Empty reports whether no dimensions have been received yet.
func (s Snapshot) Empty() bool { return s.Width == 0 || s.Height == 0 }

// At returns the pixel at (x, y), or the zero Color outside the frame.
func (s Snapshot) At(x, y int) Color {
	if x < 0 || y < 0 || x >= s.Width || y >= s.Height {
		return Color{}
	}
	return s.pixels[y*s.Width+x]
}

// Equal compares dimensions and pixel content.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Width != o.Width || s.Height != o.Height || len(s.pixels) != len(o.pixels) {
		return false
	}
	for i := range s.pixels {
		if s.pixels[i] != o.pixels[i] {
			return false
		}
	}
	return true
}
