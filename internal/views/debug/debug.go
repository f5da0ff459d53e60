// Package debug keeps the viewer's event log: connection lifecycle,
// sequencing and decode errors, newest last.
package debug

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/pixelstream/viewer/internal/theme"
)

// Kind classifies a log line.
type Kind string

const (
	KindConn Kind = "ws"
	KindSeq  Kind = "seq"
	KindGap  Kind = "gap"
	KindErr  Kind = "err"
)

var kinds = []Kind{KindConn, KindSeq, KindGap, KindErr}

const capacity = 200

// Entry is one logged event.
type Entry struct {
	At      time.Time
	Kind    Kind
	Message string
}

// Model is the event log. Offset counts lines scrolled back from the newest.
type Model struct {
	Entries []Entry
	Offset  int

	counts map[Kind]int
	clock  func() time.Time
}

// New creates an empty log.
func New() Model {
	return Model{counts: make(map[Kind]int), clock: time.Now}
}

// Add records an event and jumps back to the newest line. Only the most
// recent entries are retained; Count keeps the lifetime totals.
func (m *Model) Add(kind Kind, message string) {
	m.Entries = append(m.Entries, Entry{At: m.clock(), Kind: kind, Message: message})
	if over := len(m.Entries) - capacity; over > 0 {
		m.Entries = append(m.Entries[:0], m.Entries[over:]...)
	}
	m.counts[kind]++
	m.Offset = 0
}

// Addf is Add with formatting.
func (m *Model) Addf(kind Kind, format string, args ...any) {
	m.Add(kind, fmt.Sprintf(format, args...))
}

// Count returns how many events of kind were ever added.
func (m *Model) Count(kind Kind) int { return m.counts[kind] }

// Scroll moves n lines toward older entries, or newer ones for negative n.
func (m *Model) Scroll(n int) {
	m.Offset = min(max(m.Offset+n, 0), max(len(m.Entries)-1, 0))
}

// window returns the entry range shown in rows lines.
func (m Model) window(rows int) (start, end int) {
	end = max(len(m.Entries)-m.Offset, 0)
	return max(end-rows, 0), end
}

func kindColor(k Kind) lipgloss.Color {
	switch k {
	case KindConn:
		return theme.ColorInfo
	case KindGap:
		return theme.ColorWarning
	case KindErr:
		return theme.ColorDanger
	default:
		return theme.ColorDefault
	}
}

func clip(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// View renders the log as a bordered panel.
func (m Model) View(width, height int) string {
	innerW := max(width-8, 24)
	rows := max(height-6, 3)

	var tally []string
	for _, k := range kinds {
		if n := m.counts[k]; n > 0 {
			tally = append(tally, lipgloss.NewStyle().Foreground(kindColor(k)).Render(fmt.Sprintf("%s %d", k, n)))
		}
	}
	footer := theme.StyleDimmed.Render("j/k:scroll  esc:close")
	if len(tally) > 0 {
		footer += "  " + strings.Join(tally, theme.StyleDimmed.Render(" · "))
	}

	var body string
	if len(m.Entries) == 0 {
		body = theme.StyleDimmed.Render("No events yet.")
	} else {
		start, end := m.window(rows)
		lines := make([]string, 0, end-start)
		for _, e := range m.Entries[start:end] {
			stamp := theme.StyleDimmed.Render(e.At.Format("15:04:05.000"))
			tag := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(string(e.Kind))
			lines = append(lines, stamp+" "+tag+" "+clip(e.Message, innerW-18))
		}
		body = strings.Join(lines, "\n")
		if m.Offset > 0 {
			body += "\n" + theme.StyleDimmed.Render(fmt.Sprintf("↓ %d newer", m.Offset))
		}
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.StyleHeader.Render(" EVENT LOG "),
		body,
		footer,
	)
	return theme.StyleBorder.
		Width(innerW + 4).
		Padding(0, 1).
		Render(content)
}
