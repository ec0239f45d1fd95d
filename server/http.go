// Package server is the Mission Control API: a chi-routed HTTP surface
// exposing the mission triggers spec §6 names as the "external collaborator"
// CLI contract — start/pause/resume/cancel a mission, list missions, and
// stream one session's lifecycle events over SSE (grounded on hector's
// pkg/server/http.go: functional-option construction, an
// auth->cors->logging->observability middleware chain, and a graceful
// Shutdown; routed with chi instead of hector's bare http.ServeMux, and with
// a2a/agent-card concerns dropped entirely since this API has no a2a
// surface).
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conductorhq/conductor/config"
	"github.com/conductorhq/conductor/eventbus"
	"github.com/conductorhq/conductor/mission"
	"github.com/conductorhq/conductor/observability"
)

// Server is the Mission Control API's HTTP server.
type Server struct {
	cfg    *config.ServerConfig
	auth   *config.AuthConfig
	runner *Runner
	sse    *sseBridge
	obs    *observability.Manager
	authn  *Authenticator
	log    *slog.Logger

	httpServer *http.Server
}

// Option configures a Server at construction time (grounded on hector's
// HTTPServerOption pattern).
type Option func(*Server)

func WithAuthenticator(a *Authenticator) Option {
	return func(s *Server) { s.authn = a }
}

func WithObservability(m *observability.Manager) Option {
	return func(s *Server) { s.obs = m }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New builds a Mission Control API server around an already-wired
// mission.Orchestrator. cfg is the process's Global.Server settings.
func New(cfg *config.ServerConfig, orchestrator *mission.Orchestrator, store MissionReader, appCfg *config.Config, bus *eventbus.Bus, opts ...Option) *Server {
	s := &Server{
		cfg: cfg,
		sse: newSSEBridge(bus),
		log: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = NewRunner(orchestrator, store, appCfg, bus, s.log)
	return s
}

// Runner exposes the server's mission Runner so a process wiring layer can
// drive watchdog auto-resume through the same in-flight cancel bookkeeping
// the HTTP pause/resume/cancel handlers use, rather than a second Runner
// instance racing it over the same store rows.
func (s *Server) Runner() *Runner { return s.runner }

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Post("/missions", s.handleStartMission)
	r.Get("/missions", s.handleListMissions)
	r.Get("/missions/{id}", s.handleGetMission)
	r.Post("/missions/{id}/pause", s.handlePauseMission)
	r.Post("/missions/{id}/resume", s.handleResumeMission)
	r.Post("/missions/{id}/cancel", s.handleCancelMission)
	r.Get("/sessions/{id}/events", s.sse.handleSessionEvents)
	r.Get("/health", s.handleHealth)

	excluded := map[string]bool{"/health": true}
	if s.obs != nil {
		metricsPath := s.obs.MetricsEndpoint()
		r.Handle(metricsPath, s.obs.MetricsHandler())
		excluded[metricsPath] = true
	}

	var handler http.Handler = r
	if s.authn != nil {
		handler = s.authn.Middleware(excluded)(handler)
	}
	handler = corsMiddleware(handler)
	handler = loggingMiddleware(s.log)(handler)
	if s.obs != nil {
		// Observability wraps everything so every request is traced and
		// measured, including ones auth/cors reject (grounded on hector's
		// Start(): "Observability middleware (outermost for complete
		// request coverage)").
		handler = observability.HTTPMiddleware(s.obs.Tracer(), s.obs.Metrics())(handler)
	}
	return handler
}

// Start runs the HTTP server until ctx is cancelled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:      s.router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE streams run indefinitely
		IdleTimeout:  120 * time.Second,
	}

	s.log.Info("mission control API starting", "address", s.httpServer.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	s.log.Info("mission control API shutting down")
	return s.httpServer.Shutdown(shutdownCtx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs requests without wrapping the ResponseWriter — SSE
// handlers need the underlying http.Flusher (grounded on hector's
// loggingMiddleware "ADK-Go pattern: don't wrap ResponseWriter").
func loggingMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			log.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
