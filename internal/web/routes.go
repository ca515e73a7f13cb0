package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/facemark/facemark/internal/web/handlers"
	"github.com/facemark/facemark/internal/web/middleware"
)

func (s *Server) setupRoutes(issuer *middleware.TokenIssuer) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.students, s.extractor, issuer)
	classroomsHandler := handlers.NewClassroomsHandler(s.classrooms, s.config.Attendance.MinAttendance)
	attendanceHandler := handlers.NewAttendanceHandler(s.service, s.classrooms, s.extractor)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Account routes (no token needed)
		r.Post("/auth/signup", authHandler.Signup)
		r.Post("/auth/login", authHandler.Login)

		// All other routes require a bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(issuer))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/students/me/face", authHandler.EnrollFace)

			// Classrooms
			r.Get("/classrooms", classroomsHandler.ListMine)
			r.Post("/classrooms", classroomsHandler.Create)
			r.Post("/classrooms/join", classroomsHandler.Join)
			r.Get("/classrooms/{id}", classroomsHandler.Get)
			r.Get("/classrooms/{id}/students", classroomsHandler.Roster)

			// Attendance
			r.Post("/classrooms/{id}/attendance/session", attendanceHandler.RunSession)
			r.Get("/classrooms/{id}/attendance/today", attendanceHandler.Today)
			r.Get("/classrooms/{id}/attendance/summary", attendanceHandler.Summary)
			r.Get("/classrooms/{id}/attendance/report", attendanceHandler.ReportCSV)
			r.Get("/classrooms/{id}/students/{studentID}/attendance", attendanceHandler.StudentSummary)
		})
	})
}
