// Package server assembles the read-only status server: health and
// version endpoints plus the registry task and event views. It never
// writes to the registry; mutations go through the CLI.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/anxbt/InfraProof/internal/server/handlers"
	"github.com/anxbt/InfraProof/internal/server/middleware"
	"github.com/anxbt/InfraProof/pkg/ledger"
)

// Config parameterizes the status server.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Version identifies the build on /version and /health.
	Version handlers.VersionInfo

	// Ledger backs the v1 task and event views; when it also
	// implements handlers.Checker it feeds the registry health check.
	Ledger ledger.Client

	Logger *zap.Logger
}

// Server is the status HTTP server.
type Server struct {
	cfg    Config
	router chi.Router
	logger *zap.Logger
}

// New assembles the router, middleware chain, and handlers.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	health := handlers.NewHealthManager(cfg.Version.Version)
	if checker, ok := cfg.Ledger.(handlers.Checker); ok {
		health.RegisterChecker("registry", checker)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusNotFound, middleware.CodeNotFound, "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		middleware.WriteError(w, req, http.StatusMethodNotAllowed, middleware.CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", health.HealthHandler)
	r.Get("/version", handlers.VersionHandler(cfg.Version))
	r.Get("/v1/tasks/{taskID}", handlers.NewTaskHandler(cfg.Ledger).Show)
	r.Get("/v1/events", handlers.NewEventsHandler(cfg.Ledger).List)

	return &Server{cfg: cfg, router: r, logger: logger}
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the configured listen port.
func (s *Server) Port() int {
	return s.cfg.Port
}

// Start serves until ctx is cancelled, then shuts down gracefully
// within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.logger.Info("status server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	s.logger.Info("status server stopped")
	return nil
}
