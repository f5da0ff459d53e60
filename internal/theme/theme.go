// Package theme provides the Lip Gloss color palette and reusable styles
// for the viewer. It is a leaf package with no internal imports to avoid
// import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Connection state colors.
var (
	ColorConnecting   = lipgloss.Color("#7c3aed")
	ColorOpen         = lipgloss.Color("#22c55e")
	ColorReconnecting = lipgloss.Color("#d97706")
	ColorClosed       = lipgloss.Color("#dc2626")
)

// Queue gauge thresholds.
var (
	ColorQueueLow  = lipgloss.Color("#22c55e") // <50%
	ColorQueueMid  = lipgloss.Color("#d97706") // 50-80%
	ColorQueueHigh = lipgloss.Color("#dc2626") // >80%
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
	ColorInfo    = lipgloss.Color("#2563eb")
	ColorDefault = lipgloss.Color("#9ca3af")
)

// StateColor returns the color for a connection state name.
func StateColor(state string) lipgloss.Color {
	switch state {
	case "connecting":
		return ColorConnecting
	case "open":
		return ColorOpen
	case "reconnecting":
		return ColorReconnecting
	case "closed":
		return ColorClosed
	default:
		return ColorDefault
	}
}

// StateGlyph returns a Unicode glyph representing a connection state.
func StateGlyph(state string) string {
	switch state {
	case "connecting":
		return "◎"
	case "open":
		return "●"
	case "reconnecting":
		return "◌"
	case "closed":
		return "✗"
	default:
		return "·"
	}
}

// QueueColor returns the gauge color for a pending/capacity ratio.
func QueueColor(pct float64) lipgloss.Color {
	switch {
	case pct > 0.8:
		return ColorQueueHigh
	case pct > 0.5:
		return ColorQueueMid
	default:
		return ColorQueueLow
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)
)
