package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/session"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// Services are the components the API exposes.
type Services struct {
	Gallery *gallery.Gallery
	Ledger  *ledger.Ledger
	Runner  *session.Runner
	Metrics *metrics.Metrics
	// Registry backs the /metrics endpoint. Nil disables it.
	Registry *prometheus.Registry
}

// Server represents the web server
type Server struct {
	config     *config.Config
	services   Services
	router     *chi.Mux
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, svc Services) *Server {
	r := chi.NewRouter()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:   cfg,
		services: svc,
		router:   r,
		ctx:      ctx,
		cancel:   cancel,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger(slog.Default()))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: the recognition event stream stays open.
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting web server", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the camera session, closes event streams and gracefully
// shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down web server")

	if s.services.Runner.Running() {
		if err := s.services.Runner.Stop(); err != nil && !errors.Is(err, session.ErrNotRunning) {
			slog.Warn("failed to stop session", "error", err)
		}
	}
	s.cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
