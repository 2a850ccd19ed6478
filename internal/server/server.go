// Package server serves a generated site over HTTP together with health,
// metrics and run-listing endpoints.
//
// The site comes either from a written bundle directory or, when no directory
// is configured, from the most recent archived bundle.
package server

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pillarsite/internal/archive"
	"git.home.luguber.info/inful/pillarsite/internal/foundation/errors"
	"git.home.luguber.info/inful/pillarsite/internal/logfields"
	"git.home.luguber.info/inful/pillarsite/internal/metrics"
	"git.home.luguber.info/inful/pillarsite/internal/server/middleware"
	"git.home.luguber.info/inful/pillarsite/internal/site"
	"git.home.luguber.info/inful/pillarsite/internal/version"
)

const (
	defaultMetricsPath = "/metrics"
	defaultRunsLimit   = 20
	maxRunsLimit       = 500
)

// Archive is the read side of the bundle archive; *archive.Store satisfies it.
type Archive interface {
	List(ctx context.Context, limit int) ([]archive.Run, error)
	Latest(ctx context.Context) (archive.Run, error)
	Bundle(ctx context.Context, runID string) (*site.Bundle, error)
}

// Options configures a Server. Every field is optional.
type Options struct {
	// Dir serves a written bundle directory. It takes precedence over Archive.
	Dir         string
	Archive     Archive
	Registry    *prom.Registry
	MetricsPath string
	// Status, when set, is served as JSON on /api/status.
	Status func() any
	Logger *slog.Logger
}

// Server routes requests. It is an http.Handler and can also own a listener
// through Start and Stop.
type Server struct {
	opts     Options
	logger   *slog.Logger
	errors   *errors.HTTPErrorAdapter
	handler  http.Handler
	started  time.Time
	archived *archivedSite

	mu      sync.Mutex
	httpSrv *http.Server
	ln      net.Listener
}

// New builds the routes for opts.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		opts:    opts,
		logger:  logger,
		errors:  errors.NewHTTPErrorAdapter(logger),
		started: time.Now(),
	}
	if opts.Dir == "" && opts.Archive != nil {
		s.archived = &archivedSite{store: opts.Archive}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	if opts.Registry != nil {
		p := opts.MetricsPath
		if p == "" {
			p = defaultMetricsPath
		}
		mux.Handle("GET "+p, metrics.HTTPHandler(opts.Registry))
	}
	mux.Handle("GET /", s.siteHandler())

	s.handler = middleware.Chain(logger, s.errors)(mux)
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Start binds addr and serves in the background. Binding errors are returned
// immediately.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		return errors.InternalError("server already started").Build()
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "failed to bind HTTP listener").
			WithContext("addr", addr).Build()
	}
	s.ln = ln
	s.httpSrv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	srv := s.httpSrv
	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server stopped", logfields.Error(err))
		}
	}()
	s.logger.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpSrv
	s.httpSrv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return errors.WrapError(err, errors.CategoryNetwork, "HTTP server shutdown failed").Build()
	}
	return nil
}

type healthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Source        string  `json:"source"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	source := "none"
	switch {
	case s.opts.Dir != "":
		source = "directory"
	case s.archived != nil:
		source = "archive"
	}
	s.respond(w, r, http.StatusOK, healthResponse{
		Status:        "ok",
		Version:       version.Version,
		UptimeSeconds: time.Since(s.started).Seconds(),
		Source:        source,
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		s.errors.WriteErrorResponse(w, r, errors.NotFoundError("archive is not configured").Build())
		return
	}
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunsLimit {
			s.errors.WriteErrorResponse(w, r, errors.ValidationError("invalid limit").
				WithContext("limit", raw).
				WithContext("max", maxRunsLimit).Build())
			return
		}
		limit = n
	}
	runs, err := s.opts.Archive.List(r.Context(), limit)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	if runs == nil {
		runs = []archive.Run{}
	}
	s.respond(w, r, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

type runFiles struct {
	RunID string   `json:"run_id"`
	Files []string `json:"files"`
	Bytes int      `json:"bytes"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.opts.Archive == nil {
		s.errors.WriteErrorResponse(w, r, errors.NotFoundError("archive is not configured").Build())
		return
	}
	id := r.PathValue("id")
	if id == "latest" {
		latest, err := s.opts.Archive.Latest(r.Context())
		if err != nil {
			s.errors.WriteErrorResponse(w, r, err)
			return
		}
		id = latest.RunID
	}
	b, err := s.opts.Archive.Bundle(r.Context(), id)
	if err != nil {
		s.errors.WriteErrorResponse(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, runFiles{RunID: id, Files: b.Paths(), Bytes: b.Size()})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.opts.Status == nil {
		s.errors.WriteErrorResponse(w, r, errors.NotFoundError("status is not available").Build())
		return
	}
	s.respond(w, r, http.StatusOK, s.opts.Status())
}

func (s *Server) siteHandler() http.Handler {
	switch {
	case s.opts.Dir != "":
		return http.FileServer(http.Dir(s.opts.Dir))
	case s.archived != nil:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.archived.serve(w, r, s.errors)
		})
	default:
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.errors.WriteErrorResponse(w, r, errors.NotFoundError("no site to serve").Build())
		})
	}
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := writeJSONPretty(w, r, status, v); err != nil {
		s.logger.Error("Failed to write JSON response", logfields.Path(r.URL.Path), logfields.Error(err))
	}
}
