// Package api serves the HTTP control surface of the translation pipeline.
//
// Routes:
//
//	POST /api/pipeline/start       start a run (body: RunConfig, missing fields use the defaults)
//	POST /api/pipeline/stop        stop after the current step
//	POST /api/pipeline/hard-stop   stop and cut playback
//	POST /api/pipeline/apply       restart with new settings
//	PUT  /api/pipeline/silence     change the silence duration
//	GET  /api/pipeline/snapshot    current state, log and texts
//	GET  /api/pipeline/stream      websocket pushing snapshots as they change
//	GET  /api/languages            every translatable language
//	GET  /api/languages/{code}     one language with its description
//	GET  /api/voices/{name}        one voice with its description
//	GET  /healthz, /readyz         liveness and readiness
//	GET  /metrics                  Prometheus scrape endpoint
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/relayvox/internal/catalog"
	"github.com/MrWong99/relayvox/internal/health"
	"github.com/MrWong99/relayvox/internal/observe"
	"github.com/MrWong99/relayvox/internal/pipeline"
)

// DefaultStreamInterval is how often the snapshot stream checks for changes.
const DefaultStreamInterval = time.Second

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Pipeline is the controller surface the API drives. *pipeline.Controller
// implements it.
type Pipeline interface {
	Start(cfg pipeline.RunConfig) string
	Stop() string
	HardStop() string
	RestartWith(cfg pipeline.RunConfig) string
	IsRunning() bool
	Config() pipeline.RunConfig
	Snapshot() pipeline.Snapshot
}

// Catalog answers language and voice lookups. *catalog.Catalog implements it.
type Catalog interface {
	Languages() []catalog.Language
	ResolveLanguage(code string) (catalog.Language, bool)
	ResolveVoice(name string) (catalog.Voice, bool)
	Suggest(query string) []string
}

var (
	_ Pipeline = (*pipeline.Controller)(nil)
	_ Catalog  = (*catalog.Catalog)(nil)
)

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Default slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHealth mounts h at /healthz and /readyz. Without it a checker-less
// handler is used.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics sets the metrics recorded by the request middleware. Default
// observe.DefaultMetrics().
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMetricsHandler replaces the /metrics handler. Default promhttp.Handler().
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// WithStreamInterval sets how often /api/pipeline/stream polls the snapshot.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.streamInterval = d
		}
	}
}

// WithDefaults sets the run settings used for fields a start request omits.
func WithDefaults(cfg pipeline.RunConfig) Option {
	return func(s *Server) { s.defaults = cfg }
}

// Server is the control API. Create it with [New].
type Server struct {
	pipeline       Pipeline
	catalog        Catalog
	logger         *slog.Logger
	health         *health.Handler
	metrics        *observe.Metrics
	metricsHandler http.Handler
	streamInterval time.Duration

	handler http.Handler

	mu         sync.Mutex
	defaults   pipeline.RunConfig
	httpServer *http.Server

	// done is closed by Shutdown so open streams return.
	done     chan struct{}
	doneOnce sync.Once
}

// New builds the API around a pipeline and a catalog.
func New(p Pipeline, c Catalog, opts ...Option) *Server {
	s := &Server{
		pipeline:       p,
		catalog:        c,
		streamInterval: DefaultStreamInterval,
		done:           make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.health == nil {
		s.health = health.New()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.metricsHandler == nil {
		s.metricsHandler = promhttp.Handler()
	}
	s.handler = observe.Middleware(s.metrics)(s.routes())
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/pipeline/start", s.handleStart)
	mux.HandleFunc("POST /api/pipeline/stop", s.handleStop)
	mux.HandleFunc("POST /api/pipeline/hard-stop", s.handleHardStop)
	mux.HandleFunc("POST /api/pipeline/apply", s.handleApply)
	mux.HandleFunc("PUT /api/pipeline/silence", s.handleSilence)
	mux.HandleFunc("GET /api/pipeline/snapshot", s.handleSnapshot)
	mux.HandleFunc("GET /api/pipeline/stream", s.handleStream)

	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/languages/{code}", s.handleLanguage)
	mux.HandleFunc("GET /api/voices/{name}", s.handleVoice)

	s.health.Register(mux)
	mux.Handle("GET /metrics", s.metricsHandler)
	return mux
}

// Handler returns the root handler with the observability middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

// Defaults returns the run settings used to complete start requests.
func (s *Server) Defaults() pipeline.RunConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.defaults
}

// SetDefaults replaces the run settings used to complete start requests.
func (s *Server) SetDefaults(cfg pipeline.RunConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaults = cfg
}

// ListenAndServe listens on addr and serves until [Server.Shutdown]. It
// returns nil after a clean shutdown.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on ln until [Server.Shutdown].
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	s.logger.Info("api: listening", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: serve: %w", err)
	}
	return nil
}

// Shutdown closes open snapshot streams and gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.doneOnce.Do(func() { close(s.done) })
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
