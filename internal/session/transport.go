package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultPingInterval = 30 * time.Second
)

// --- Bubble Tea messages ---

// DialedMsg is sent when the connection for Gen is established.
type DialedMsg struct{ Gen uint64 }

// FailedMsg is sent when a dial fails or the connection for Gen drops.
type FailedMsg struct {
	Gen uint64
	Err error
}

// MessageMsg carries one raw inbound message.
type MessageMsg struct {
	Gen  uint64
	Data []byte
}

// RedialMsg is delivered when the backoff timer for Gen fires.
type RedialMsg struct{ Gen uint64 }

// TransportOptions tunes keepalive and write deadlines. Zero values select
// the defaults.
type TransportOptions struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

// Transport owns at most one websocket connection at a time.
type Transport struct {
	url  string
	opts TransportOptions

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (ping, greeting, resync)
	conn    *websocket.Conn
	gen     uint64
	pingCtx context.CancelFunc // cancels the active ping goroutine
}

// NewTransport creates a transport for the given websocket URL.
func NewTransport(url string, opts TransportOptions) *Transport {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Transport{url: url, opts: opts}
}

// URL returns the endpoint.
func (t *Transport) URL() string { return t.url }

// Dial returns a command that connects once and reports DialedMsg or
// FailedMsg. Retrying is the state machine's job.
func (t *Transport) Dial(ctx context.Context, gen uint64) tea.Cmd {
	return func() tea.Msg {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, t.url, nil)
		if err != nil {
			log.Printf("ws dial error: %v", err)
			return FailedMsg{Gen: gen, Err: fmt.Errorf("%w: dial %s: %v", ErrTransport, t.url, err)}
		}

		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(t.opts.PongTimeout))
		})
		conn.SetReadDeadline(time.Now().Add(t.opts.PongTimeout))

		t.mu.Lock()
		if t.pingCtx != nil {
			t.pingCtx()
		}
		if t.conn != nil {
			t.conn.Close()
		}
		pingCtx, pingCancel := context.WithCancel(ctx)
		t.conn = conn
		t.gen = gen
		t.pingCtx = pingCancel
		t.mu.Unlock()

		go t.pingLoop(pingCtx, conn)

		return DialedMsg{Gen: gen}
	}
}

// Read returns a command that waits for the next message on the connection
// tagged gen. The caller issues a new Read after handling each MessageMsg.
func (t *Transport) Read(gen uint64) tea.Cmd {
	return func() tea.Msg {
		conn := t.current(gen)
		if conn == nil {
			return FailedMsg{Gen: gen, Err: fmt.Errorf("%w: no connection", ErrTransport)}
		}

		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				t.drop(gen, conn)
				return FailedMsg{Gen: gen, Err: fmt.Errorf("%w: %v", ErrTransport, err)}
			}
			if kind != websocket.TextMessage {
				continue
			}
			// Any traffic proves the peer is alive.
			conn.SetReadDeadline(time.Now().Add(t.opts.PongTimeout))
			return MessageMsg{Gen: gen, Data: data}
		}
	}
}

// Redial returns a command that fires RedialMsg after d.
func Redial(gen uint64, d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return RedialMsg{Gen: gen}
	})
}

// Send writes one text message to the connection tagged gen.
func (t *Transport) Send(gen uint64, data []byte) error {
	conn := t.current(gen)
	if conn == nil {
		return fmt.Errorf("%w: not connected", ErrTransport)
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: write: %v", ErrTransport, err)
	}
	return nil
}

// Close closes the connection tagged gen, if it is still the active one.
func (t *Transport) Close(gen uint64) {
	t.mu.Lock()
	conn := t.conn
	if conn == nil || t.gen != gen {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	if t.pingCtx != nil {
		t.pingCtx()
		t.pingCtx = nil
	}
	t.mu.Unlock()

	t.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	conn.Close()
}

func (t *Transport) current(gen uint64) *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		return nil
	}
	return t.conn
}

func (t *Transport) drop(gen uint64, conn *websocket.Conn) {
	t.mu.Lock()
	if t.conn == conn && t.gen == gen {
		t.conn = nil
		if t.pingCtx != nil {
			t.pingCtx()
			t.pingCtx = nil
		}
	}
	t.mu.Unlock()
	conn.Close()
}

// pingLoop sends periodic pings on the given connection. It exits when the
// context is cancelled or a write fails.
func (t *Transport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
