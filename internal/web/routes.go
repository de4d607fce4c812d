package web

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
	"github.com/kozaktomas/face-attendance/internal/web/static"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRoutes() {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.config, s.sessionManager)
	framesHandler := handlers.NewFramesHandler(s.services.Pipeline)
	attendanceHandler := handlers.NewAttendanceHandler(s.services.Tracker, s.services.Events, s.services.Broadcaster)
	studentsHandler := handlers.NewStudentsHandler(s.services.Matcher, s.services.Registrar)
	streamHandler := handlers.NewStreamHandler(s.services.Tracker, s.services.Broadcaster)
	configHandler := handlers.NewConfigHandler(s.config)
	statsHandler := handlers.NewStatsHandler(s.services.Tracker, s.services.Matcher)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	if s.services.Gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.services.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Kiosk routes
		r.Post("/process-frame", framesHandler.Process)
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/stream", streamHandler.Stream)
		r.Get("/attendance/{id}", attendanceHandler.Get)
		r.Get("/students", studentsHandler.List)
		r.Get("/config", configHandler.Get)
		r.Get("/stats", statsHandler.Get)

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireEnabled(s.config.Admin.Enabled(), "admin access is disabled: ADMIN_PASSWORD is not set"))

			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/logout", authHandler.Logout)
			r.Get("/auth/status", authHandler.Status)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(s.sessionManager))

				// Students
				r.Post("/students", studentsHandler.Register)
				r.Post("/students/reload", studentsHandler.Reload)
				r.Delete("/students/{id}", studentsHandler.Delete)
				r.Get("/students/{id}/similar", studentsHandler.Similar)

				// Attendance
				r.Get("/attendance/history", attendanceHandler.History)
				r.Post("/attendance/{id}/logout", attendanceHandler.Logout)
				r.Delete("/attendance", attendanceHandler.Reset)
			})
		})
	})

	// Serve the kiosk page
	s.router.Get("/*", s.serveSPA)
}

// serveSPA serves the embedded kiosk page and its assets.
// Unknown paths outside /api get index.html.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if strings.HasPrefix(path, "api/") {
		http.NotFound(w, r)
		return
	}
	if path == "" || !static.HasFile(path) {
		r.URL.Path = "/"
	}
	http.FileServer(static.GetFileSystem()).ServeHTTP(w, r)
}
