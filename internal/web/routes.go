package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

func (s *Server) setupRoutes(service handlers.Service, identities database.IdentityStore) {
	// Create handlers
	identitiesHandler := handlers.NewIdentitiesHandler(identities, service)
	checkinHandler := handlers.NewCheckInHandler(service)
	attendanceHandler := handlers.NewAttendanceHandler(service)
	systemHandler := handlers.NewSystemHandler(s.config, service)

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Identities
		r.Get("/identities", identitiesHandler.List)
		r.Post("/identities", identitiesHandler.Enroll)
		r.Get("/identities/{id}", identitiesHandler.Get)
		r.Put("/identities/{id}", identitiesHandler.Update)
		r.Delete("/identities/{id}", identitiesHandler.Delete)
		r.Post("/identities/{id}/images", identitiesHandler.AddImages)
		r.Get("/identities/{id}/attendance", identitiesHandler.History)

		// Recognition
		r.Post("/checkin", checkinHandler.CheckIn)
		r.Post("/verify", checkinHandler.Verify)

		// Attendance
		r.Get("/attendance", attendanceHandler.Report)

		// System
		r.Get("/models", systemHandler.Models)
		r.Get("/gallery/validate", systemHandler.GalleryValidate)
	})
}
