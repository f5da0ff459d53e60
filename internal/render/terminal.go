package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pixelstream/viewer/internal/frame"
)

// halfBlock shows two vertically stacked pixels in one cell: the
// foreground colors the top half, the background the bottom half.
const halfBlock = "▀"

// TerminalCanvas renders snapshots as colored half-block cells scaled to fit
// a Cols×Rows cell area. Scaling is nearest-neighbour so pixels stay crisp.
type TerminalCanvas struct {
	cols, rows int
	last       frame.Snapshot
	view       string
}

// NewTerminalCanvas creates a canvas for a cols×rows cell area.
func NewTerminalCanvas(cols, rows int) *TerminalCanvas {
	return &TerminalCanvas{cols: cols, rows: rows}
}

// SetSize changes the available cell area. The next Paint uses it.
func (c *TerminalCanvas) SetSize(cols, rows int) {
	c.cols, c.rows = cols, rows
}

// Size returns the cell area.
func (c *TerminalCanvas) Size() (cols, rows int) { return c.cols, c.rows }

// Paint renders s into the cached view.
func (c *TerminalCanvas) Paint(s frame.Snapshot) {
	c.last = s
	c.view = renderCells(s, c.cols, c.rows)
}

// Snapshot returns the last painted snapshot.
func (c *TerminalCanvas) Snapshot() frame.Snapshot { return c.last }

// View returns the last painted image.
func (c *TerminalCanvas) View() string { return c.view }

// fit returns the output size in pixels for a w×h image inside a cols×rows
// cell area, where each cell holds one pixel across and two down.
func fit(w, h, cols, rows int) (ow, oh int) {
	if w <= 0 || h <= 0 || cols <= 0 || rows <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(cols)/float64(w), float64(rows*2)/float64(h))
	ow = max(1, int(float64(w)*scale))
	oh = max(1, int(float64(h)*scale))
	return min(ow, cols), min(oh, rows*2)
}

func renderCells(s frame.Snapshot, cols, rows int) string {
	ow, oh := fit(s.Width, s.Height, cols, rows)
	if ow == 0 {
		return ""
	}

	sample := func(ox, oy int) frame.Color {
		return s.At(ox*s.Width/ow, oy*s.Height/oh)
	}

	var b strings.Builder
	for cy := 0; cy*2 < oh; cy++ {
		if cy > 0 {
			b.WriteByte('\n')
		}
		// Coalesce runs of identical cells into one styled span.
		var runTop, runBottom frame.Color
		runLen := 0
		flush := func() {
			if runLen == 0 {
				return
			}
			style := lipgloss.NewStyle().Foreground(Hex(runTop)).Background(Hex(runBottom))
			b.WriteString(style.Render(strings.Repeat(halfBlock, runLen)))
			runLen = 0
		}
		for ox := 0; ox < ow; ox++ {
			top := sample(ox, cy*2)
			bottom := top
			if cy*2+1 < oh {
				bottom = sample(ox, cy*2+1)
			}
			if runLen > 0 && (top != runTop || bottom != runBottom) {
				flush()
			}
			runTop, runBottom = top, bottom
			runLen++
		}
		flush()
	}
	return b.String()
}

// Hex converts a color to a lipgloss hex color.
func Hex(c frame.Color) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", channel(c.R), channel(c.G), channel(c.B)))
}

func channel(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
