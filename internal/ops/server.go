// Package ops exposes the operational HTTP surface: health, status and
// Prometheus metrics.
package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"dealwatch/internal/monitor"
)

// Server wires the ops routes. It only reads shared state and never
// touches the scan loop.
type Server struct {
	router  chi.Router
	active  *monitor.ActiveSet
	hist    monitor.History
	logger  *zap.Logger
	started time.Time
}

// NewServer constructs a Server with middleware and routes.
func NewServer(active *monitor.ActiveSet, hist monitor.History, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		active:  active,
		hist:    hist,
		logger:  logger,
		started: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.healthz)
	r.Get("/statusz", s.statusz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusz(w http.ResponseWriter, _ *http.Request) {
	rules := 0
	if rs := s.active.Load(); rs != nil {
		rules = len(rs.Rules)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"rules":          rules,
		"history_size":   s.hist.Len(),
		"uptime_seconds": int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}
