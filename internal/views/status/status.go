package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/pixelstream/viewer/internal/theme"
)

const gaugeWidth = 10

// AnimateMsg advances the queue gauge spring by one frame.
type AnimateMsg struct{}

// Model holds the status bar state.
type Model struct {
	State   string
	Attempt int
	Delay   time.Duration
	URL     string
	Err     string

	FrameW, FrameH int
	Seq            uint64
	Paints         int
	Policy         string
	Width          int

	pending, capacity int
	spring            harmonica.Spring
	gaugePos          float64
	gaugeVel          float64
}

// New creates a status bar model. fps is the animation frame rate.
func New(fps int) Model {
	return Model{
		State:  "connecting",
		spring: harmonica.NewSpring(harmonica.FPS(fps), 8.0, 0.6),
	}
}

// SetQueue updates the pending-op gauge target.
func (m *Model) SetQueue(pending, capacity int) {
	m.pending, m.capacity = pending, capacity
}

func (m Model) target() float64 {
	if m.capacity <= 0 {
		return 0
	}
	return math.Min(1, float64(m.pending)/float64(m.capacity))
}

// Animate moves the gauge one step towards its target.
func (m *Model) Animate() {
	m.gaugePos, m.gaugeVel = m.spring.Update(m.gaugePos, m.gaugeVel, m.target())
	if m.Settled() {
		m.gaugePos, m.gaugeVel = m.target(), 0
	}
}

// Settled reports whether the gauge has reached its target.
func (m Model) Settled() bool {
	return math.Abs(m.gaugePos-m.target()) < 0.001 && math.Abs(m.gaugeVel) < 0.001
}

// Gauge returns the displayed fill ratio.
func (m Model) Gauge() float64 { return m.gaugePos }

func (m Model) connView() string {
	color := theme.StateColor(m.State)
	label := theme.StateGlyph(m.State) + " " + m.State
	switch m.State {
	case "reconnecting":
		label += fmt.Sprintf(" #%d in %s", m.Attempt, m.Delay.Round(10*time.Millisecond))
	case "closed":
		if m.Err != "" {
			label += ": " + m.Err
		}
	}
	return lipgloss.NewStyle().Foreground(color).Render(label)
}

func (m Model) gaugeView() string {
	pos := math.Max(0, math.Min(1, m.gaugePos))
	filled := int(math.Round(pos * gaugeWidth))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", gaugeWidth-filled)
	return fmt.Sprintf("queue %s %d/%d",
		lipgloss.NewStyle().Foreground(theme.QueueColor(pos)).Render(bar),
		m.pending, m.capacity)
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	size := "no frame"
	if m.FrameW > 0 && m.FrameH > 0 {
		size = fmt.Sprintf("%dx%d", m.FrameW, m.FrameH)
	}
	parts := []string{
		m.connView(),
		size,
		fmt.Sprintf("seq %d", m.Seq),
		m.gaugeView(),
		fmt.Sprintf("%d paints", m.Paints),
	}
	if m.Policy != "" {
		parts = append(parts, "resize:"+m.Policy)
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(strings.Join(parts, sep))
}
