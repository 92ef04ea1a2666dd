package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/example/facegate/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	recognizeHandler := handlers.NewRecognizeHandler(s.service)
	facesHandler := handlers.NewFacesHandler(s.service)
	landmarksHandler := handlers.NewLandmarksHandler(s.service)
	statsHandler := handlers.NewStatsHandler(s.service)
	syncHandler := handlers.NewSyncHandler(s.service, s.reconciler)
	attendanceHandler := handlers.NewAttendanceHandler(s.coord)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Recognition
		r.Post("/recognize", recognizeHandler.Recognize)
		r.Post("/landmarks", landmarksHandler.Extract)

		// Enrollment management
		r.Get("/faces", facesHandler.List)
		r.Post("/faces/{id}/enroll", facesHandler.Enroll)
		r.Delete("/faces/{id}", facesHandler.Delete)

		// Service state
		r.Get("/stats", statsHandler.Get)
		r.Get("/threshold", statsHandler.GetThreshold)
		r.Put("/threshold", statsHandler.SetThreshold)

		// Directory sync
		r.Post("/sync", syncHandler.Trigger)
		r.Get("/sync", syncHandler.Status)

		// Attendance
		r.Get("/attendance", attendanceHandler.List)
		r.Get("/attendance/today", attendanceHandler.Today)
		r.Get("/attendance/check/{id}", attendanceHandler.Check)
		r.Get("/attendance/count", attendanceHandler.Count)
		r.Get("/attendance/export", attendanceHandler.Export)
	})
}
