// Package server is the frame source viewers connect to. Each websocket
// connection gets its own generated stream of sequenced ops.
package server

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pixelstream/viewer/internal/config"
	"github.com/pixelstream/viewer/internal/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

const sendBuffer = 256

type Server struct {
	cfg      config.ServerConfig
	encoder  protocol.Encoder
	upgrader websocket.Upgrader
	registry *prometheus.Registry
	metrics  *metrics
	proc     *process.Process
	started  time.Time

	mu    sync.RWMutex
	conns map[string]*conn
	seed  int64
}

func New(cfg *config.Config) (*Server, error) {
	scale, err := protocol.ParseScale(cfg.Server.ColorScale)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	s := &Server{
		cfg:      cfg.Server,
		encoder:  protocol.Encoder{Scale: scale},
		registry: reg,
		metrics:  newMetrics(reg),
		started:  time.Now(),
		conns:    make(map[string]*conn),
		seed:     cfg.Server.Chaos.Seed,
	}
	if s.seed == 0 {
		s.seed = time.Now().UnixNano()
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		s.proc = p
	} else {
		log.Printf("process stats unavailable: %v", err)
	}
	return s, nil
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/connect", s.handleConnect)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
}

// ConnCount returns the number of connected viewers.
func (s *Server) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c := s.newConn(conn)
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.metrics.connections.Inc()
	s.metrics.connectsTotal.Inc()
	log.Printf("viewer %s connected: %s", c.id, r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	go c.writePump()
	go c.run(ctx)

	go func() {
		defer func() {
			cancel()
			s.mu.Lock()
			delete(s.conns, c.id)
			s.mu.Unlock()
			s.metrics.connections.Dec()
			log.Printf("viewer %s disconnected: %s", c.id, r.RemoteAddr)
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			c.handleClient(data)
		}
	}()
}

// conn is one viewer's stream.
type conn struct {
	id     string
	server *Server
	ws     *websocket.Conn
	send   chan []byte
	resync chan struct{}
	stream *Stream
	chaos  *Chaos

	closeOnce sync.Once
}

func (s *Server) newConn(ws *websocket.Conn) *conn {
	s.mu.Lock()
	s.seed++
	seed := s.seed
	s.mu.Unlock()

	rng := rand.New(rand.NewSource(seed))
	return &conn{
		id:     uuid.NewString(),
		server: s,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
		resync: make(chan struct{}, 1),
		stream: NewStream(s.cfg.Width, s.cfg.Height, s.cfg.RunLength, s.cfg.ResizeEvery, rng),
		chaos: NewChaos(s.cfg.Chaos, rng, func(action string) {
			s.metrics.chaos.WithLabelValues(action).Inc()
		}),
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.send) })
}

func (c *conn) handleClient(data []byte) {
	msg, err := protocol.DecodeClient(data)
	if err != nil {
		log.Printf("viewer %s: %v", c.id, err)
		return
	}
	switch msg.Type {
	case protocol.MsgHello:
		log.Printf("viewer %s hello: client=%q id=%q", c.id, msg.Client, msg.ID)
	case protocol.MsgResync:
		c.server.metrics.resyncs.Inc()
		select {
		case c.resync <- struct{}{}:
		default:
			// One is already queued.
		}
	}
}

// run generates the stream until ctx is cancelled or the viewer falls
// too far behind.
func (c *conn) run(ctx context.Context) {
	defer c.close()

	tick := c.server.cfg.Tick
	if tick <= 0 {
		tick = 50 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	if !c.emit(c.stream.Start()) {
		return
	}
	for {
		var ops []protocol.Op
		select {
		case <-ctx.Done():
			return
		case <-c.resync:
			c.chaos.Reset()
			ops = c.stream.Start()
			w, h := c.stream.Size()
			log.Printf("viewer %s resync: full frame %dx%d", c.id, w, h)
		case <-ticker.C:
			ops = c.stream.Next()
		}
		if !c.emit(ops) {
			return
		}
	}
}

// emit queues ops for the write pump. It returns false if the viewer
// cannot keep up.
func (c *conn) emit(ops []protocol.Op) bool {
	for _, op := range c.chaos.Apply(ops) {
		data, err := c.server.encoder.Encode(op)
		if err != nil {
			log.Printf("viewer %s encode error: %v", c.id, err)
			continue
		}
		select {
		case c.send <- data:
			c.server.metrics.opsSent.WithLabelValues(string(op.Kind())).Inc()
		default:
			log.Printf("viewer %s too slow, disconnecting", c.id)
			c.server.metrics.slowClients.Inc()
			return false
		}
	}
	return true
}

// NewHTTPServer wraps mux for graceful shutdown.
func NewHTTPServer(addr string, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
