// Package statusserver exposes the daemon's running status over a
// loopback HTTP endpoint, grounded on the teacher's internal/server
// package: an http.ServeMux, explicit timeouts, JSON responses.
package statusserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oomkilld/oomkilld/internal/killer"
	"github.com/oomkilld/oomkilld/internal/pressure"
)

// StatusProvider is the subset of *killer.Handle the server depends on.
type StatusProvider interface {
	GetStatus() killer.Status
}

// PressureProvider is the subset of *pressure.Detector the server
// depends on.
type PressureProvider interface {
	PressureInfo() (pressure.Info, error)
}

// Response is the JSON body served at GET /status.
type Response struct {
	LastKillTime         *time.Time    `json:"last_kill_time,omitempty"`
	TotalKills           uint64        `json:"total_kills"`
	TotalMemoryReclaimed uint64        `json:"total_memory_reclaimed_bytes"`
	RunningSince         time.Time     `json:"running_since"`
	Pressure             *pressureView `json:"pressure,omitempty"`
}

type pressureView struct {
	TotalBytes           uint64  `json:"total_bytes"`
	AvailableBytes       uint64  `json:"available_bytes"`
	PressureDurationSecs float64 `json:"pressure_duration_secs"`
}

// Server wraps an *http.Server listening on a loopback address.
type Server struct {
	addr     string
	status   StatusProvider
	pressure PressureProvider
	router   *http.ServeMux
}

// New builds a Server. pressureSource may be nil if pressure reporting
// isn't wired up.
func New(addr string, status StatusProvider, pressureSource PressureProvider) *Server {
	s := &Server{
		addr:     addr,
		status:   status,
		pressure: pressureSource,
		router:   http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/status", s.handleStatus)
}

// Handler returns the server's otelhttp-wrapped handler, for embedding
// or testing without binding a real listener.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "statusserver")
}

// ListenAndServe starts the HTTP server. It blocks until the server
// stops or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.status.GetStatus()

	resp := Response{
		TotalKills:           status.TotalKills,
		TotalMemoryReclaimed: status.TotalMemoryReclaimed,
	}
	if status.RunningSinceUnixNano > 0 {
		resp.RunningSince = time.Unix(0, status.RunningSinceUnixNano)
	}
	if status.HasKilled {
		t := time.Unix(0, status.LastKillTimeUnixNano)
		resp.LastKillTime = &t
	}

	if s.pressure != nil {
		if info, err := s.pressure.PressureInfo(); err == nil {
			resp.Pressure = &pressureView{
				TotalBytes:           info.Stats.Total,
				AvailableBytes:       info.Stats.Available,
				PressureDurationSecs: info.PressureDuration.Seconds(),
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}
