// Package dashboard serves the validator screens over HTTP.
//
// Every screen is a thin consumer of the resource core: a validator page is
// a set of schedulers owned by one long-lived scope, rendered through Merge
// and Match into JSON. Pages are cached by id and refetched, keeping their
// current data, whenever the era index advances.
package dashboard

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/stakeview/internal/errors"
	"github.com/vango-dev/stakeview/pkg/era"
	"github.com/vango-dev/stakeview/pkg/middleware"
	"github.com/vango-dev/stakeview/pkg/resource"
	"github.com/vango-dev/stakeview/pkg/source/blob"
)

const (
	// DefaultMaxScreens is the number of validator screens kept in memory.
	DefaultMaxScreens = 256

	// DefaultWaitTimeout bounds how long ?wait=true holds a request.
	DefaultWaitTimeout = 10 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config configures a Server.
type Config struct {
	// Validators is required.
	Validators ValidatorSource

	// Pools adds on-chain pledge, commission and stake share when set. A
	// source that also counts pools reports the count on /era.
	Pools PoolSource

	// Blobs enables pool metadata when set.
	Blobs blob.Store

	// Era is the era index provider. Default: a new, unknown Provider.
	Era *era.Provider

	// Metrics records resource generations. Optional.
	Metrics *resource.Metrics

	// Registerer receives the HTTP request metrics. Optional.
	Registerer prometheus.Registerer

	// Namespace prefixes the HTTP request metrics. Default: "stakeview".
	Namespace string

	// Gatherer is served at /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Tracer traces requests and resource generations. Optional.
	Tracer trace.Tracer

	Logger *slog.Logger

	MaxScreens      int
	WaitTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg    Config
	logger *slog.Logger
	root   *resource.Scope
	hub    *Hub
	router chi.Router

	mu      sync.Mutex
	screens map[string]*screen

	unsubscribe func()
}

// New creates a Server. Close releases its screens and subscriptions.
func New(cfg Config) (*Server, error) {
	if cfg.Validators == nil {
		return nil, errors.New(errors.CodeConfigInvalid).WithDetail("dashboard needs a validator source")
	}
	if cfg.Era == nil {
		cfg.Era = era.NewProvider(cfg.Logger)
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxScreens <= 0 {
		cfg.MaxScreens = DefaultMaxScreens
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = DefaultWaitTimeout
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	s := &Server{
		cfg:     cfg,
		logger:  cfg.Logger.With("component", "dashboard"),
		root:    resource.NewScope(nil),
		screens: make(map[string]*screen),
	}
	s.hub = NewHub(cfg.Era.CurrentIndex, s.logger)
	s.unsubscribe = cfg.Era.Subscribe(s.eraChanged)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimw.Recoverer)
	if s.cfg.Registerer != nil {
		opts := []middleware.MetricsOption{
			middleware.WithRegistry(s.cfg.Registerer),
			middleware.WithSubsystem("http"),
		}
		if s.cfg.Namespace != "" {
			opts = append(opts, middleware.WithNamespace(s.cfg.Namespace))
		}
		r.Use(middleware.Prometheus(opts...))
	}
	if s.cfg.Tracer != nil {
		r.Use(middleware.OpenTelemetry(
			middleware.WithTracer(s.cfg.Tracer),
			middleware.WithRequestFilter(traced),
			middleware.WithAttributeExtractor(s.eraAttributes),
		))
	}

	r.Get("/healthz", s.handleHealth)
	r.Get("/era", s.handleEra)
	r.Get("/validators/{id}", s.handleValidator)
	r.Method(http.MethodGet, "/ws/era", s.hub)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Hub returns the era websocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	// Hijacked websocket conns are not tracked by Shutdown.
	s.hub.Close()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

// Close disposes every screen and stops following the era index.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.hub.Close()
	s.root.Dispose()
	s.mu.Lock()
	clear(s.screens)
	s.mu.Unlock()
}

func (s *Server) eraChanged(n uint64) {
	s.hub.Broadcast(n)

	s.mu.Lock()
	screens := make([]*screen, 0, len(s.screens))
	for _, sc := range s.screens {
		screens = append(screens, sc)
	}
	s.mu.Unlock()

	for _, sc := range screens {
		sc.refetch()
	}
	s.logger.Debug("refetching screens for new era", "era", n, "screens", len(screens))
}

// screen returns the cached screen for id, creating it and evicting the
// least recently used one when the cache is full.
func (s *Server) screen(id string) (*screen, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.screens[id]; ok {
		sc.touch()
		return sc, true
	}
	if s.root.IsDisposed() {
		return nil, false
	}
	if len(s.screens) >= s.cfg.MaxScreens {
		s.evictLocked(len(s.screens) - s.cfg.MaxScreens + 1)
	}

	sc := newScreen(s.root, id, screenDeps{
		validators: s.cfg.Validators,
		pools:      s.cfg.Pools,
		blobs:      s.cfg.Blobs,
		metrics:    s.cfg.Metrics,
		tracer:     s.cfg.Tracer,
		logger:     s.logger,
	})
	s.screens[id] = sc
	return sc, true
}

func (s *Server) evictLocked(count int) {
	ordered := make([]*screen, 0, len(s.screens))
	for _, sc := range s.screens {
		ordered = append(ordered, sc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].lastUsed.Load() < ordered[j].lastUsed.Load()
	})
	for _, sc := range ordered[:count] {
		delete(s.screens, sc.id)
		sc.close()
	}
	s.logger.Debug("evicted validator screens", "count", count, "remaining", len(s.screens))
}

// ScreenCount returns the number of cached validator screens.
func (s *Server) ScreenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.screens)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// EraView is the JSON body of GET /era.
type EraView struct {
	Era   uint64 `json:"era"`
	Known bool   `json:"known"`
	// Pools is the number of registered pools, when the pool source counts.
	Pools *int `json:"pools,omitempty"`
}

func (s *Server) handleEra(w http.ResponseWriter, r *http.Request) {
	n, ok := s.cfg.Era.CurrentIndex()
	view := EraView{Era: n, Known: ok}
	if pc, isCounter := s.cfg.Pools.(poolCounter); isCounter {
		count, err := pc.PoolCount(r.Context())
		if err != nil {
			s.logger.Warn("pool count failed", "error", err)
		} else {
			view.Pools = &count
		}
	}
	s.writeJSON(w, http.StatusOK, view)
}

// handleValidator renders a validator screen.
//
// ?refresh=true refetches the screen first, keeping its data.
// ?wait=true holds the request until nothing is loading, the request is
// cancelled, or the wait timeout passes.
func (s *Server) handleValidator(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc, ok := s.screen(id)
	if !ok {
		http.Error(w, "server closed", http.StatusServiceUnavailable)
		return
	}

	// The request scope owns the subscriptions made while serving it.
	scope := resource.NewScope(sc.scope)
	defer scope.Dispose()

	changed := make(chan struct{}, 1)
	scope.OnCleanup(sc.subscribe(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	}))

	if flag(r, "refresh") {
		sc.refetch()
	}
	if flag(r, "wait") {
		s.wait(r.Context(), scope, sc, changed)
	}

	view := render(sc, s.cfg.Era)
	s.writeJSON(w, statusCode(view), view)
}

func (s *Server) wait(ctx context.Context, scope *resource.Scope, sc *screen, changed <-chan struct{}) {
	timer := time.NewTimer(s.cfg.WaitTimeout)
	defer timer.Stop()
	for !sc.settled() {
		select {
		case <-changed:
		case <-ctx.Done():
			return
		case <-scope.Context().Done():
			return
		case <-timer.C:
			return
		}
	}
}

func statusCode(v ValidatorView) int {
	switch v.Status {
	case StatusLoading:
		return http.StatusAccepted
	case StatusError:
		if v.Error != nil && v.Error.Code == errors.CodeSourceNotReady {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusOK
}

func flag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := encode(v)
	if err != nil {
		s.logger.Error("encoding response", "error", err)
		http.Error(w, "encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(data, '\n'))
}

// traced skips probes and scrapes.
func traced(r *http.Request) bool {
	return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
}

func (s *Server) eraAttributes(*http.Request) []attribute.KeyValue {
	n, ok := s.cfg.Era.CurrentIndex()
	if !ok {
		return nil
	}
	return []attribute.KeyValue{attribute.Int64("stakeview.era", int64(n))}
}
