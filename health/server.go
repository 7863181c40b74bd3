package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/XiandiShan/rclgo/errors"
)

// Server exposes a monitor over HTTP. GET /healthz reports liveness and
// always answers 200 while the process runs; GET /readyz reports the
// aggregated system status and answers 503 when any component is
// unhealthy.
type Server struct {
	port    int
	system  string
	monitor *Monitor

	mu     sync.Mutex
	server *http.Server
}

// NewServer creates a health server; port 0 selects the default 8080
func NewServer(port int, system string, monitor *Monitor) *Server {
	if port == 0 {
		port = 8080
	}
	return &Server{port: port, system: system, monitor: monitor}
}

// Start begins serving in a background goroutine
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return errors.New(errors.KindValidationError, "health", "start", "server already running")
	}
	if s.monitor == nil {
		return errors.New(errors.KindValidationError, "health", "start", "nil monitor")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleLiveness)
	mux.HandleFunc("/readyz", s.handleReadiness)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health server failed", "port", s.port, "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	s.server = nil
	if err != nil {
		return errors.WrapTransport(err, "health", "stop")
	}
	return nil
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewHealthy(s.system, "alive"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	status := s.monitor.System(s.system)
	code := http.StatusOK
	if status.Condition == ConditionUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, status Status) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		slog.Debug("health response encode failed", "error", err)
	}
}
