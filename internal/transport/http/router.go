package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes builds the HTTP surface for the scheduling server.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/schedule", s.getTemplate)
		r.Put("/schedule/rules", s.setRule)
		r.Get("/slots", s.listSlots)
		r.Get("/availability", s.availableSlots)
		r.Get("/appointments", s.doctorAppointments)
		r.Get("/calendar", s.doctorCalendar)
	})

	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", s.createAppointment)
		r.Get("/{appointmentID}", s.getAppointment)
		r.Post("/{appointmentID}/status", s.transitionAppointment)
	})

	r.Get("/patients/{patientID}/appointments", s.patientAppointments)

	return r
}
