// Package app is the viewer's single event loop. Transport reads, timers and
// key presses all arrive as messages in Update, which is the only place the
// session machine, reassembly queue, frame buffer and renderer are touched.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/pixelstream/viewer/internal/config"
	"github.com/pixelstream/viewer/internal/frame"
	"github.com/pixelstream/viewer/internal/protocol"
	"github.com/pixelstream/viewer/internal/reassembly"
	"github.com/pixelstream/viewer/internal/render"
	"github.com/pixelstream/viewer/internal/session"
	"github.com/pixelstream/viewer/internal/theme"
	"github.com/pixelstream/viewer/internal/views/debug"
	"github.com/pixelstream/viewer/internal/views/detail"
	"github.com/pixelstream/viewer/internal/views/help"
	"github.com/pixelstream/viewer/internal/views/status"
)

// chromeRows is the height taken by the status bar and footer.
const chromeRows = 4

var errManualResync = errors.New("resync requested")

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayDebug
	OverlayHelp
	OverlayDetail
)

// Transport is the connection side the model drives. *session.Transport
// implements it.
type Transport interface {
	Dial(ctx context.Context, gen uint64) tea.Cmd
	Read(gen uint64) tea.Cmd
	Send(gen uint64, data []byte) error
	Close(gen uint64)
}

// gapCheckMsg fires when the earliest gap may have timed out.
type gapCheckMsg struct{ Deadline time.Time }

// Model is the root Bubble Tea model.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc
	clock  func() time.Time

	url        string
	clientName string
	clientID   string
	fps        int
	scale      protocol.Scale

	transport Transport
	machine   *session.Machine
	decoder   protocol.Decoder
	buf       *frame.Buffer
	queue     *reassembly.Queue
	canvas    *render.TerminalCanvas
	renderer  *render.Renderer

	keys   KeyMap
	width  int
	height int

	overlay   Overlay
	statusBar status.Model
	eventLog  *debug.Model
	help      *help.Model

	gapArmed  time.Time
	animating bool
	resyncs   int
	err       error
}

// New creates the root model from cfg. The transport is normally
// session.NewTransport(cfg.Viewer.URL, ...).
func New(cfg *config.Config, t Transport) (Model, error) {
	scale, err := protocol.ParseScale(cfg.Viewer.ColorScale)
	if err != nil {
		return Model{}, err
	}
	policy, err := frame.ParseResizePolicy(cfg.Viewer.ResizePolicy)
	if err != nil {
		return Model{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	buf := frame.New(policy)
	canvas := render.NewTerminalCanvas(80, 20)
	eventLog := debug.New()
	helpView := help.New()

	m := Model{
		ctx:        ctx,
		cancel:     cancel,
		clock:      time.Now,
		url:        cfg.Viewer.URL,
		clientName: cfg.Viewer.ClientName,
		clientID:   uuid.NewString(),
		fps:        cfg.Viewer.FPS,
		scale:      scale,
		transport:  t,
		machine: session.NewMachine(session.Options{
			Backoff: session.Backoff{
				Base:   cfg.Session.BaseDelay,
				Max:    cfg.Session.MaxDelay,
				Jitter: cfg.Session.Jitter,
			},
			MaxAttempts: cfg.Session.MaxAttempts,
		}),
		decoder:   protocol.Decoder{Scale: scale},
		buf:       buf,
		queue:     reassembly.New(buf, cfg.Reassembly.Capacity, cfg.Reassembly.GapTimeout),
		canvas:    canvas,
		renderer:  render.New(buf, canvas, cfg.FrameInterval()),
		keys:      DefaultKeyMap(),
		statusBar: status.New(cfg.Viewer.FPS),
		eventLog:  &eventLog,
		help:      &helpView,
	}
	m.statusBar.Policy = policy.String()
	m.statusBar.SetQueue(0, m.queue.Capacity())

	m.machine.Subscribe(func(ev session.Event) {
		line := fmt.Sprintf("%s gen=%d", ev.Kind, ev.Gen)
		if ev.Attempt > 0 {
			line += fmt.Sprintf(" attempt=%d", ev.Attempt)
		}
		if ev.Delay > 0 {
			line += fmt.Sprintf(" retry in %s", ev.Delay.Round(time.Millisecond))
		}
		if ev.Err != nil {
			line += ": " + ev.Err.Error()
		}
		if ev.Kind == session.EventMessage {
			return
		}
		log.Printf("session %s", line)
		kind := debug.KindConn
		if ev.Kind == session.EventGap {
			kind = debug.KindGap
		}
		eventLog.Add(kind, line)
	})
	return m, nil
}

// Err returns the fatal error that ended the session, if any.
func (m Model) Err() error { return m.err }

// Resyncs returns how many full-frame requests were sent.
func (m Model) Resyncs() int { return m.resyncs }

// Init starts the first connection attempt.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.run(m.machine.Start())...)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.canvas.SetSize(msg.Width, max(1, msg.Height-chromeRows))
		if m.buf.Width() > 0 {
			m.renderer.Invalidate()
			cmds = append(cmds, m.frameDirty(m.clock()))
		}

	case tea.KeyMsg:
		return m.handleKey(msg)

	case session.DialedMsg:
		cmds = m.run(m.machine.Connected(msg.Gen))

	case session.FailedMsg:
		if msg.Gen == m.machine.Gen() {
			log.Printf("ws error: %v", msg.Err)
		}
		cmds = m.run(m.machine.Failed(msg.Gen, msg.Err))

	case session.RedialMsg:
		cmds = m.run(m.machine.RedialDue(msg.Gen))

	case session.MessageMsg:
		if !m.machine.Message(msg.Gen) {
			// Superseded connection; its reader is done.
			return m, nil
		}
		cmds = append(m.handleData(msg.Data), m.transport.Read(msg.Gen))

	case gapCheckMsg:
		if msg.Deadline.Equal(m.gapArmed) {
			m.gapArmed = time.Time{}
		}
		now := m.clock()
		if err := m.queue.CheckGap(now); err != nil {
			log.Printf("reassembly: %v", err)
			cmds = m.run(m.machine.Gap(err))
		}
		cmds = append(cmds, m.armGap(now))

	case render.TickMsg:
		if !m.renderer.Tick(msg.Time) && m.renderer.NeedsPaint() {
			cmds = append(cmds, m.frameDirty(msg.Time))
		}

	case status.AnimateMsg:
		m.statusBar.Animate()
		m.animating = false
		cmds = append(cmds, m.animate())
	}

	m.syncStatus()
	return m, tea.Batch(cmds...)
}

// handleData decodes one inbound message and pushes it through the queue.
func (m *Model) handleData(data []byte) []tea.Cmd {
	op, err := m.decoder.Decode(data)
	if err != nil {
		log.Printf("decode: %v", err)
		m.eventLog.Add(debug.KindErr, err.Error())
		return nil
	}

	now := m.clock()
	res, err := m.queue.Push(op, now)
	for _, rerr := range res.Rejected {
		log.Printf("apply: %v", rerr)
		m.eventLog.Add(debug.KindErr, rerr.Error())
	}

	var cmds []tea.Cmd
	if err != nil {
		log.Printf("reassembly: %v", err)
		cmds = m.run(m.machine.Gap(err))
	}
	if len(res.Applied) > 0 && m.buf.Dirty() {
		cmds = append(cmds, m.frameDirty(now))
	}
	if res.Buffered {
		m.eventLog.Addf(debug.KindSeq, "seq %d buffered behind %d", op.Sequence(), m.queue.LastApplied()+1)
	}
	m.statusBar.SetQueue(m.queue.Pending(), m.queue.Capacity())
	return append(cmds, m.armGap(now), m.animate())
}

// run carries out machine effects and returns the commands they need.
func (m *Model) run(effects []session.Effect) []tea.Cmd {
	var cmds []tea.Cmd
	for _, e := range effects {
		switch e.Kind {
		case session.EffectDial:
			cmds = append(cmds, m.transport.Dial(m.ctx, e.Gen))

		case session.EffectStartRead:
			cmds = append(cmds, m.transport.Read(e.Gen))

		case session.EffectSendGreeting:
			if err := m.transport.Send(e.Gen, protocol.Greeting(m.clientName, m.clientID)); err != nil {
				log.Printf("ws greeting: %v", err)
			}

		case session.EffectResetQueue:
			if e.InStream {
				m.queue.Resync()
			} else {
				m.queue.Reset()
			}
			m.gapArmed = time.Time{}
			m.statusBar.SetQueue(0, m.queue.Capacity())
			cmds = append(cmds, m.animate())

		case session.EffectRequestFull:
			if err := m.transport.Send(e.Gen, protocol.ResyncRequest()); err != nil {
				log.Printf("ws resync: %v", err)
				continue
			}
			m.resyncs++
			m.eventLog.Addf(debug.KindGap, "full frame requested (gen=%d)", e.Gen)

		case session.EffectScheduleRedial:
			cmds = append(cmds, session.Redial(e.Gen, e.Delay))

		case session.EffectCloseTransport:
			m.transport.Close(e.Gen)

		case session.EffectFatal:
			log.Printf("session fatal: %v", e.Err)
			m.err = e.Err
			m.cancel()
			cmds = append(cmds, tea.Quit)
		}
	}
	return cmds
}

func (m *Model) frameDirty(now time.Time) tea.Cmd {
	arm, delay := m.renderer.OnFrameDirty(now)
	if !arm {
		return nil
	}
	return render.Schedule(delay)
}

// armGap schedules a gap check for the queue's current deadline unless one
// is already pending for it.
func (m *Model) armGap(now time.Time) tea.Cmd {
	deadline, ok := m.queue.GapDeadline()
	if !ok || deadline.Equal(m.gapArmed) {
		return nil
	}
	m.gapArmed = deadline
	d := deadline.Sub(now)
	if d < 0 {
		d = 0
	}
	return tea.Tick(d, func(time.Time) tea.Msg { return gapCheckMsg{Deadline: deadline} })
}

func (m *Model) animate() tea.Cmd {
	if m.animating || m.statusBar.Settled() {
		return nil
	}
	m.animating = true
	fps := m.fps
	if fps <= 0 {
		fps = 60
	}
	return tea.Tick(time.Second/time.Duration(fps), func(time.Time) tea.Msg { return status.AnimateMsg{} })
}

func (m *Model) syncStatus() {
	st := m.machine.Status()
	m.statusBar.State = st.State.String()
	m.statusBar.Attempt = st.Attempt
	m.statusBar.Delay = st.Delay
	m.statusBar.Err = ""
	if st.Err != nil {
		m.statusBar.Err = st.Err.Error()
	}
	m.statusBar.FrameW, m.statusBar.FrameH = m.buf.Width(), m.buf.Height()
	m.statusBar.Seq = m.queue.LastApplied()
	m.statusBar.Paints = m.renderer.Paints()
	m.statusBar.Policy = m.buf.Policy().String()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.run(m.machine.Shutdown())
		m.cancel()
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case m.overlay == OverlayHelp && key.Matches(msg, m.keys.Help):
			m.overlay = OverlayNone
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Debug):
			m.overlay = OverlayNone
		case m.overlay == OverlayDetail && key.Matches(msg, m.keys.Info):
			m.overlay = OverlayNone
		case m.overlay == OverlayDetail && key.Matches(msg, m.keys.Resync):
			return m, tea.Batch(m.run(m.machine.Gap(errManualResync))...)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Up):
			m.eventLog.Scroll(1)
		case m.overlay == OverlayDebug && key.Matches(msg, m.keys.Down):
			m.eventLog.Scroll(-1)
		}
		return m, nil
	}

	var cmds []tea.Cmd
	switch {
	case key.Matches(msg, m.keys.Debug):
		m.overlay = OverlayDebug

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp

	case key.Matches(msg, m.keys.Info):
		m.overlay = OverlayDetail

	case key.Matches(msg, m.keys.Resync):
		cmds = m.run(m.machine.Gap(errManualResync))

	case key.Matches(msg, m.keys.Policy):
		next := frame.Discard
		if m.buf.Policy() == frame.Discard {
			next = frame.Preserve
		}
		m.buf.SetPolicy(next)
		m.eventLog.Addf(debug.KindConn, "resize policy %s", next)
	}

	m.syncStatus()
	return m, tea.Batch(cmds...)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	bodyH := max(1, m.height-chromeRows)
	var body string
	switch {
	case m.err != nil:
		body = m.renderFatal(bodyH)
	case m.overlay == OverlayDebug:
		body = m.eventLog.View(m.width, bodyH)
	case m.overlay == OverlayHelp:
		body = m.help.View(m.width, bodyH)
	case m.overlay == OverlayDetail:
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center, detail.View(m.info()))
	case m.canvas.Snapshot().Empty():
		body = lipgloss.Place(m.width, bodyH, lipgloss.Center, lipgloss.Center,
			theme.StyleDimmed.Render("waiting for first frame..."))
	default:
		body = m.canvas.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusBar.View(),
		body,
		m.footer(),
	)
}

func (m Model) info() detail.Info {
	st := m.machine.Status()
	in := detail.Info{
		URL:          m.url,
		ClientID:     m.clientID,
		State:        st.State.String(),
		Gen:          st.Gen,
		Attempt:      st.Attempt,
		Delay:        st.Delay,
		Err:          st.Err,
		Width:        m.buf.Width(),
		Height:       m.buf.Height(),
		Version:      m.buf.Version(),
		Policy:       m.buf.Policy().String(),
		Scale:        m.scale.String(),
		LastApplied:  m.queue.LastApplied(),
		Pending:      m.queue.Pending(),
		Capacity:     m.queue.Capacity(),
		AwaitingFull: m.queue.AwaitingFull(),
		Resyncs:      m.resyncs,
		Paints:       m.renderer.Paints(),
	}
	if deadline, ok := m.queue.GapDeadline(); ok {
		in.GapIn = max(time.Millisecond, deadline.Sub(m.clock()))
	}
	return in
}

func (m Model) footer() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		parts = append(parts, b.Help().Key+":"+b.Help().Desc)
	}
	return theme.StyleDimmed.Render("  " + strings.Join(parts, "  "))
}

func (m Model) renderFatal(height int) string {
	box := lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorDanger).
		Padding(1, 3).
		Render(lipgloss.JoinVertical(lipgloss.Center,
			lipgloss.NewStyle().Bold(true).Foreground(theme.ColorDanger).Render("DISCONNECTED"),
			m.err.Error(),
		))
	return lipgloss.Place(m.width, height, lipgloss.Center, lipgloss.Center, box)
}
