// Package httpapi serves the read-only operator snapshot: a single JSON
// endpoint with uptime, traffic counters, session counts, and cumulative
// backend cost.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Snapshot is the stats payload. All fields are point-in-time reads of
// atomic counters; nothing here mutates gateway state.
type Snapshot struct {
	UptimeSecs       uint64  `json:"uptime_secs"`
	Messages         uint64  `json:"messages"`
	ActiveSessions   int     `json:"active_sessions"`
	AllowedSenders   int     `json:"allowed_senders"`
	PendingSenders   int     `json:"pending_senders"`
	RateLimited      uint64  `json:"rate_limited"`
	EchoesDropped    uint64  `json:"echoes_dropped"`
	Errors           uint64  `json:"errors"`
	TruncatedReplies uint64  `json:"truncated_replies"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	Model            string  `json:"model"`
	Version          string  `json:"version"`
}

// Server exposes the snapshot over HTTP.
type Server struct {
	srv      *http.Server
	snapshot func() Snapshot
}

func NewServer(addr string, snapshot func() Snapshot) *Server {
	s := &Server{snapshot: snapshot}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		slog.Error("stats encode failed", "error", err)
	}
}

// Start begins serving on the configured address. It returns the bound
// listener address so callers binding to port 0 can discover the port.
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("stats server failed", "error", err)
		}
	}()
	slog.Info("stats server listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
