// Package detail renders the connection info flyout overlay.
package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pixelstream/viewer/internal/theme"
)

const (
	panelWidth = 64
	barWidth   = 20
	labelWidth = 14
)

var (
	stylePanel = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.ColorBorder).
			Padding(0, 1)

	styleLabel = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed).
			Width(labelWidth)

	styleValue = lipgloss.NewStyle().
			Foreground(theme.ColorBright)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorBright)

	styleFooter = lipgloss.NewStyle().
			Foreground(theme.ColorDimmed)

	styleError = lipgloss.NewStyle().
			Foreground(theme.ColorDanger)
)

// Info is everything the overlay shows, gathered by the app.
type Info struct {
	URL      string
	ClientID string

	State   string
	Gen     uint64
	Attempt int
	Delay   time.Duration
	Err     error

	Width, Height int
	Version       uint64
	Policy        string
	Scale         string

	LastApplied  uint64
	Pending      int
	Capacity     int
	AwaitingFull bool
	GapIn        time.Duration // zero when no gap is open

	Resyncs int
	Paints  int
}

// View renders the detail panel.
func View(in Info) string {
	return stylePanel.Width(panelWidth).Render(renderInner(in))
}

func renderInner(in Info) string {
	var b strings.Builder

	b.WriteString(styleTitle.Render("Connection: "+truncate(in.URL, 44)) + "\n")
	b.WriteString(strings.Repeat("─", panelWidth-4) + "\n")

	writeRow(&b, "Client ID", truncate(in.ClientID, 36))
	state := lipgloss.NewStyle().Foreground(theme.StateColor(in.State)).
		Render(theme.StateGlyph(in.State) + " " + in.State)
	writeRow(&b, "State", state)
	writeRow(&b, "Generation", fmt.Sprintf("%d", in.Gen))
	if in.Attempt > 0 {
		writeRow(&b, "Retry", fmt.Sprintf("attempt %d, next in %s", in.Attempt, in.Delay.Round(time.Millisecond)))
	}

	b.WriteString("\n")

	size := "none yet"
	if in.Width > 0 && in.Height > 0 {
		size = fmt.Sprintf("%d×%d (%d px)", in.Width, in.Height, in.Width*in.Height)
	}
	writeRow(&b, "Frame", size)
	writeRow(&b, "Version", fmt.Sprintf("%d", in.Version))
	writeRow(&b, "Resize", in.Policy)
	writeRow(&b, "Color scale", in.Scale)

	b.WriteString("\n")

	writeRow(&b, "Last seq", fmt.Sprintf("%d", in.LastApplied))
	pct := 0.0
	if in.Capacity > 0 {
		pct = float64(in.Pending) / float64(in.Capacity)
	}
	writeRow(&b, "Pending", renderBar(pct, barWidth, theme.QueueColor(pct))+
		fmt.Sprintf(" %d / %d", in.Pending, in.Capacity))
	if in.GapIn > 0 {
		writeRow(&b, "Gap timeout", "in "+in.GapIn.Round(time.Millisecond).String())
	}
	if in.AwaitingFull {
		writeRow(&b, "Waiting for", "full frame at seq 1")
	}
	writeRow(&b, "Resyncs", fmt.Sprintf("%d", in.Resyncs))
	writeRow(&b, "Paints", fmt.Sprintf("%d", in.Paints))

	if in.Err != nil {
		b.WriteString("\n")
		b.WriteString(styleError.Render("Error: "+in.Err.Error()) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(styleFooter.Render("[r] resync  [esc] close"))
	return b.String()
}

func writeRow(b *strings.Builder, label, value string) {
	b.WriteString(styleLabel.Render(label+":") + styleValue.Render(value) + "\n")
}

func renderBar(pct float64, width int, color lipgloss.Color) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 1 {
		pct = 1
	}
	filled := int(pct * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(bar)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
