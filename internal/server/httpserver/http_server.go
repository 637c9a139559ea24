// Package httpserver runs the render server: server-side rendered routes,
// a JSON render API, health endpoints and Prometheus metrics.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"git.home.luguber.info/inful/livedocs/internal/config"
	lderrors "git.home.luguber.info/inful/livedocs/internal/errors"
	"git.home.luguber.info/inful/livedocs/internal/logfields"
	"git.home.luguber.info/inful/livedocs/internal/server/handlers"
	smw "git.home.luguber.info/inful/livedocs/internal/server/middleware"
)

// Server manages the render server's HTTP endpoints.
type Server struct {
	cfg          config.ServerConfig
	opts         Options
	router       *chi.Mux
	httpServer   *http.Server
	errorAdapter *lderrors.HTTPErrorAdapter
	serving      atomic.Bool

	monitoringHandlers *handlers.MonitoringHandlers
	renderHandlers     *handlers.RenderHandlers
}

// New constructs the server and its routes.
func New(cfg config.ServerConfig, opts Options) *Server {
	s := &Server{
		cfg:          cfg,
		opts:         opts,
		router:       chi.NewRouter(),
		errorAdapter: lderrors.NewHTTPErrorAdapter(slog.Default()),
	}
	s.monitoringHandlers = handlers.NewMonitoringHandlers(time.Now(), opts.Backends, s.readiness)
	s.renderHandlers = handlers.NewRenderHandlers(opts.Sessions)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(smw.Chain(slog.Default(), s.errorAdapter, s.opts.Recorder))

	s.router.Get("/healthz", s.monitoringHandlers.HandleHealthCheck)
	s.router.Get("/readyz", s.monitoringHandlers.HandleReadiness)
	if s.cfg.MetricsEnabled() && s.opts.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.opts.MetricsHandler)
	}
	s.router.Get("/api/render", s.renderHandlers.HandleRenderAPI)
	s.router.Get("/*", s.renderHandlers.HandlePage)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// readiness fails while the server is not serving, then defers to the
// runtime check.
func (s *Server) readiness(ctx context.Context) error {
	if !s.serving.Load() {
		return errors.New("server is not serving")
	}
	if s.opts.Ready != nil {
		return s.opts.Ready(ctx)
	}
	return nil
}

// Start binds the listen address and serves in the background. Binding
// happens before Start returns so an address in use fails fast.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("http startup failed: %w", err)
	}
	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	s.serving.Store(true)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Render server error", logfields.Error(err))
		}
	}()
	slog.Info("HTTP server started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Stop marks the server unready and shuts it down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.serving.Store(false)
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("render server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
