// Package server implements the phaseline control-plane HTTP API.
//
// The server exposes graph inspection and job lifecycle operations over
// JSON so the CLI (and external tooling) can manage a long-running
// pipeline host:
//
//	GET  /healthz                  liveness probe
//	GET  /status                   graph stats and run state
//	GET  /graph                    full exported graph document
//	GET  /phases                   all job statuses
//	GET  /phases/{name}            one job status
//	POST /phases/{name}/stop       stop a job
//	POST /phases/{name}/restart    restart a job
//	GET  /phases/{name}/wait       block until the job finishes
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/phaseline/pkg/hypergraph"
	graphio "github.com/matzehuels/phaseline/pkg/io"
	"github.com/matzehuels/phaseline/pkg/registry"
)

// Server hosts one hypergraph and its job registry.
type Server struct {
	reg    *registry.Registry
	logger *log.Logger

	mu    sync.Mutex
	graph *hypergraph.Hypergraph
}

// New creates a server over the given graph and registry.
func New(g *hypergraph.Hypergraph, reg *registry.Registry, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		reg:    reg,
		logger: logger,
		graph:  g,
	}
}

// Handler builds the HTTP routing tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/graph", s.handleGraph)

	r.Route("/phases", func(r chi.Router) {
		r.Get("/", s.handleListPhases)
		r.Route("/{name}", func(r chi.Router) {
			r.Get("/", s.handlePhaseStatus)
			r.Post("/stop", s.handlePhaseStop)
			r.Post("/restart", s.handlePhaseRestart)
			r.Get("/wait", s.handlePhaseWait)
		})
	})

	return r
}

// ListenAndServe runs the server until ctx is cancelled, then shuts it
// down gracefully and stops all registry jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info("control plane listening", "addr", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.reg.StopAll()
	return err
}

// RecordPhaseRun updates the hosted graph's counters after one tick of a
// phase job. Safe to call from job goroutines.
func (s *Server) RecordPhaseRun(name string, at time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.graph.Node(name)
	if !ok {
		return
	}
	if err != nil {
		n.RecordError()
		return
	}
	n.RecordRun(at)
}

// statusResponse is the /status payload.
type statusResponse struct {
	Name           string           `json:"name"`
	Stats          hypergraph.Stats `json:"stats"`
	CurrentPhase   string           `json:"current_phase,omitempty"`
	ExecutionOrder []string         `json:"execution_order,omitempty"`
	LastError      string           `json:"last_error,omitempty"`
	Jobs           int              `json:"jobs"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	resp := statusResponse{
		Name:           s.graph.Name(),
		Stats:          s.graph.Stats(),
		CurrentPhase:   s.graph.CurrentPhase(),
		ExecutionOrder: s.graph.ExecutionOrder(),
		LastError:      s.graph.LastError(),
	}
	s.mu.Unlock()
	resp.Jobs = len(s.reg.List())
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	// Export from a clone so a concurrent run can't tear the document.
	s.mu.Lock()
	g := s.graph.Clone()
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := graphio.WriteJSON(g, w); err != nil {
		s.logger.Error("graph export failed", "error", err)
	}
}

func (s *Server) handleListPhases(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.reg.List())
}

func (s *Server) handlePhaseStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, ok := s.reg.Status(name)
	if !ok {
		s.writeError(w, http.StatusNotFound, registry.ErrUnknownJob)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePhaseStop(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.reg.Stop(name); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	status, _ := s.reg.Status(name)
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePhaseRestart(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	// Restarted jobs outlive this request; tie them to the server, not
	// to the request context.
	if err := s.reg.Restart(context.WithoutCancel(r.Context()), name); err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	status, _ := s.reg.Status(name)
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handlePhaseWait(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	timeout := 30 * time.Second
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		timeout = d
	}

	err := s.reg.Wait(r.Context(), name, timeout)
	switch {
	case errors.Is(err, registry.ErrWaitTimeout):
		s.writeError(w, http.StatusRequestTimeout, err)
		return
	case err != nil:
		s.writeError(w, statusFor(err), err)
		return
	}

	status, _ := s.reg.Status(name)
	s.writeJSON(w, http.StatusOK, status)
}

// statusFor maps registry errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownJob):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrDuplicateJob):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

// logRequests logs each request at debug level with method, path, and
// duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start))
	})
}
