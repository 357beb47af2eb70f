package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	svc := s.services

	galleryHandler := handlers.NewGalleryHandler(svc.Gallery, svc.Runner, s.config.Tolerance, svc.Metrics)
	attendanceHandler := handlers.NewAttendanceHandler(svc.Ledger)
	sessionHandler := handlers.NewSessionHandler(s.ctx, svc.Runner)

	// Health check and metrics (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if svc.Registry != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(svc.Registry, promhttp.HandlerOpts{Registry: svc.Registry}))
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireToken(s.config.Web.APIToken))

		// Gallery
		r.Get("/gallery", galleryHandler.List)
		r.Post("/gallery", galleryHandler.Register)
		r.Post("/gallery/capture", galleryHandler.Capture)
		r.Post("/gallery/reload", galleryHandler.Reload)
		r.Delete("/gallery/{name}", galleryHandler.Remove)
		r.Get("/gallery/{name}/neighbors", galleryHandler.Neighbors)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/export", attendanceHandler.Export)

		// Camera session
		r.Get("/session", sessionHandler.Status)
		r.Post("/session/start", sessionHandler.Start)
		r.Post("/session/stop", sessionHandler.Stop)
		r.Post("/session/frame", sessionHandler.Frame)
		r.Get("/session/events", sessionHandler.Events)
	})

	// Kiosk page
	s.router.Handle("/*", http.FileServerFS(static.FS()))
}
