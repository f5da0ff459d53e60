// Package render paints committed frame buffer state. Dirty notifications are
// coalesced so the canvas is painted at most once per refresh interval no
// matter how fast ops arrive.
package render

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pixelstream/viewer/internal/frame"
)

// Canvas is an output target that can show a snapshot.
type Canvas interface {
	Paint(s frame.Snapshot)
}

// TickMsg asks the renderer to paint if anything changed.
type TickMsg struct{ Time time.Time }

// Schedule returns a command that delivers TickMsg after d.
func Schedule(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return TickMsg{Time: t} })
}

// Renderer owns its canvas and reads, never writes, the frame buffer
// except to clear its dirty flag after painting.
type Renderer struct {
	buf      *frame.Buffer
	canvas   Canvas
	interval time.Duration

	lastPaint time.Time
	scheduled bool
	stale     bool
	paints    int
}

// New creates a renderer painting buf onto canvas at most once per interval.
func New(buf *frame.Buffer, canvas Canvas, interval time.Duration) *Renderer {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Renderer{buf: buf, canvas: canvas, interval: interval}
}

// Interval returns the refresh interval.
func (r *Renderer) Interval() time.Duration { return r.interval }

// Paints returns how many times the canvas was painted.
func (r *Renderer) Paints() int { return r.paints }

// Canvas returns the output target.
func (r *Renderer) Canvas() Canvas { return r.canvas }

// OnFrameDirty records that the buffer changed. When no repaint is pending
// it returns arm=true and the delay after which Tick should run; otherwise
// the change rides along with the already scheduled paint.
func (r *Renderer) OnFrameDirty(now time.Time) (arm bool, delay time.Duration) {
	if r.scheduled {
		return false, 0
	}
	r.scheduled = true
	if !r.lastPaint.IsZero() {
		if next := r.lastPaint.Add(r.interval); next.After(now) {
			delay = next.Sub(now)
		}
	}
	return true, delay
}

// Invalidate marks the canvas as needing a repaint even though the buffer
// did not change, for example after the output area was resized.
func (r *Renderer) Invalidate() { r.stale = true }

// NeedsPaint reports whether a paint is owed.
func (r *Renderer) NeedsPaint() bool { return r.stale || r.buf.Dirty() }

// Tick paints the current snapshot if a paint is owed and a full interval
// has passed since the previous paint. It reports whether it painted.
func (r *Renderer) Tick(now time.Time) bool {
	r.scheduled = false
	if !r.NeedsPaint() {
		return false
	}
	if !r.lastPaint.IsZero() && now.Sub(r.lastPaint) < r.interval {
		return false
	}
	r.paint(now)
	return true
}

func (r *Renderer) paint(now time.Time) {
	r.canvas.Paint(r.buf.Snapshot())
	r.buf.ClearDirty()
	r.stale = false
	r.lastPaint = now
	r.paints++
}
