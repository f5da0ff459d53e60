// Package help renders the key binding overlay from markdown.
package help

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/pixelstream/viewer/internal/theme"
)

const body = `# pixelview

Streams a remote frame over WebSocket and paints it in the terminal.

| Key | Action |
| --- | ------ |
| ` + "`r`" + ` | request a full frame (resync) |
| ` + "`p`" + ` | toggle resize policy (preserve / discard) |
| ` + "`i`" + ` | connection info |
| ` + "`d`" + ` | toggle the event log |
| ` + "`j` / `k`" + ` | scroll the event log |
| ` + "`?`" + ` | toggle this help |
| ` + "`esc`" + ` | close overlay |
| ` + "`q`" + ` | quit |

Pixels never painted show as **magenta**. Out-of-order updates wait in the
queue gauge until the gap fills; if it does not fill in time the viewer
asks the server for a full frame.
`

// Model caches the rendered help text per width.
type Model struct {
	width    int
	rendered string
}

// New creates a help model.
func New() Model {
	return Model{}
}

// Markdown returns the raw help source.
func Markdown() string { return body }

func (m *Model) render(width int) string {
	if width == m.width && m.rendered != "" {
		return m.rendered
	}
	m.width = width
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		m.rendered = body
		return m.rendered
	}
	out, err := r.Render(body)
	if err != nil {
		m.rendered = body
		return m.rendered
	}
	m.rendered = strings.TrimRight(out, "\n")
	return m.rendered
}

// View renders the help overlay.
func (m *Model) View(width, height int) string {
	innerW := width - 8
	if innerW < 30 {
		innerW = 30
	}
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render(" HELP "),
		m.render(innerW),
		theme.StyleDimmed.Render("?/esc:close"),
	)
	return theme.StyleBorder.
		Width(innerW + 4).
		MaxHeight(height).
		Padding(0, 1).
		Render(content)
}
