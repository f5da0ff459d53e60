package server

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"time"
)

// Health is the /healthz response body.
type Health struct {
	Status      string   `json:"status"`
	Uptime      string   `json:"uptime"`
	Connections int      `json:"connections"`
	Viewers     []string `json:"viewers"`
	Goroutines  int      `json:"goroutines"`
	CPUPercent  float64  `json:"cpuPercent"`
	RSSBytes    uint64   `json:"rssBytes"`
}

func (s *Server) health() Health {
	s.mu.RLock()
	ids := make([]string, 0, len(s.conns))
	for id := range s.conns {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	h := Health{
		Status:      "ok",
		Uptime:      time.Since(s.started).Round(time.Second).String(),
		Connections: len(ids),
		Viewers:     ids,
		Goroutines:  runtime.NumGoroutine(),
	}

	if s.proc == nil {
		return h
	}
	if cpu, err := s.proc.CPUPercent(); err == nil {
		h.CPUPercent = cpu
	}
	if mem, err := s.proc.MemoryInfo(); err == nil {
		h.RSSBytes = mem.RSS
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.health())
}
