package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/service/scheduling"
	"medibook/backend/internal/store"
)

type catalogService interface {
	SetRule(ctx context.Context, in scheduling.SlotRuleInput) (domain.SlotRule, error)
	Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error)
	Materialize(ctx context.Context, doctorID string, from, to time.Time) ([]domain.ConcreteSlot, error)
}

type availabilityService interface {
	Available(ctx context.Context, doctorID string, date time.Time) ([]domain.ConcreteSlot, error)
}

type appointmentsService interface {
	Create(ctx context.Context, in scheduling.CreateInput) (domain.Appointment, error)
	Transition(ctx context.Context, in scheduling.TransitionInput) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	Calendar(ctx context.Context, doctorID string, granularity domain.Granularity, anchor time.Time) (map[time.Time][]domain.Appointment, error)
}

// Server exposes the scheduling services over JSON HTTP.
type Server struct {
	catalog      catalogService
	availability availabilityService
	appointments appointmentsService
	log          *slog.Logger
}

func NewServer(catalog catalogService, availability availabilityService, appointments appointmentsService, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		catalog:      catalog,
		availability: availability,
		appointments: appointments,
		log:          log.With(slog.String("component", "http.scheduling")),
	}
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "GetTemplate"))
	doctorID := chi.URLParam(r, "doctorID")

	template, err := s.catalog.Template(r.Context(), doctorID)
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}

	rules := make([]slotRuleJSON, 0, len(template.Rules))
	for _, rule := range template.Rules {
		rules = append(rules, toWireRule(rule))
	}

	log.Debug("template fetched", slog.String("doctor_id", doctorID), slog.Int("rules", len(rules)))
	writeJSON(w, http.StatusOK, map[string]any{
		"doctor_id": template.DoctorID,
		"rules":     rules,
	})
}

type setRuleRequest struct {
	ID       string `json:"id"`
	Weekday  *int   `json:"weekday"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
	Active   *bool  `json:"active"`
}

func (s *Server) setRule(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "SetRule"))
	doctorID := chi.URLParam(r, "doctorID")

	var req setRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.String("doctor_id", doctorID))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}
	if req.Weekday == nil {
		log.Warn("invalid request", slog.String("reason", "missing_weekday"), slog.String("doctor_id", doctorID))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "weekday is required")
		return
	}

	var ruleID uuid.UUID
	if strings.TrimSpace(req.ID) != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("doctor_id", doctorID))
			writeErrorBody(w, http.StatusBadRequest, "invalid_request", "id must be a UUID")
			return
		}
		ruleID = id
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule, err := s.catalog.SetRule(r.Context(), scheduling.SlotRuleInput{
		ID:       ruleID,
		DoctorID: doctorID,
		Weekday:  *req.Weekday,
		Start:    req.Start,
		End:      req.End,
		Capacity: req.Capacity,
		Active:   active,
	})
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}

	log.Info(
		"slot rule saved",
		slog.String("rule_id", rule.ID.String()),
		slog.String("doctor_id", rule.DoctorID),
		slog.Int("weekday", rule.Weekday),
	)
	writeJSON(w, http.StatusOK, toWireRule(rule))
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "ListSlots"))
	doctorID := chi.URLParam(r, "doctorID")

	from, ok := queryDate(w, log, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, log, r, "to")
	if !ok {
		return
	}

	slots, err := s.catalog.Materialize(r.Context(), doctorID, from, to)
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}

	out := make([]slotJSON, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toWireSlot(slot))
	}

	log.Debug("slots materialized", slog.String("doctor_id", doctorID), slog.Int("count", len(out)))
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

func (s *Server) availableSlots(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "AvailableSlots"))
	doctorID := chi.URLParam(r, "doctorID")

	date, ok := queryDate(w, log, r, "date")
	if !ok {
		return
	}

	slots, err := s.availability.Available(r.Context(), doctorID, date)
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}

	out := make([]slotJSON, 0, len(slots))
	for _, slot := range slots {
		out = append(out, toWireSlot(slot))
	}

	log.Debug(
		"availability resolved",
		slog.String("doctor_id", doctorID),
		slog.Time("date", date),
		slog.Int("open", len(out)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"slots": out})
}

type createAppointmentRequest struct {
	PatientID   string `json:"patient_id"`
	DoctorID    string `json:"doctor_id"`
	TreatmentID string `json:"treatment_id"`
	Date        string `json:"date"`
	Start       string `json:"start"`
	Notes       string `json:"notes"`
}

func (s *Server) createAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "CreateAppointment"))

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	date, err := time.Parse(domain.DateFormat, req.Date)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("patient_id", req.PatientID))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "date must be YYYY-MM-DD")
		return
	}

	appt, err := s.appointments.Create(r.Context(), scheduling.CreateInput{
		PatientID:      req.PatientID,
		DoctorID:       req.DoctorID,
		TreatmentID:    req.TreatmentID,
		Date:           date,
		Start:          req.Start,
		Notes:          req.Notes,
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		s.writeError(w, log, err, slog.String("patient_id", req.PatientID), slog.String("doctor_id", req.DoctorID))
		return
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("patient_id", appt.PatientID),
		slog.String("doctor_id", appt.DoctorID),
		slog.Time("start_time", appt.StartTime),
	)
	writeJSON(w, http.StatusCreated, toWireAppointment(appt))
}

func idempotencyKey(r *http.Request) string {
	key := r.Header.Get("Idempotency-Key")
	if key == "" {
		key = r.Header.Get("X-Idempotency-Key")
	}
	return strings.TrimSpace(key)
}

func (s *Server) getAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "GetAppointment"))

	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "appointment_id must be a UUID")
		return
	}

	appt, err := s.appointments.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, log, err, slog.String("appointment_id", id.String()))
		return
	}

	writeJSON(w, http.StatusOK, toWireAppointment(appt))
}

type transitionRequest struct {
	Status       string `json:"status"`
	Actor        string `json:"actor"`
	Diagnosis    string `json:"diagnosis"`
	Prescription string `json:"prescription"`
}

func (s *Server) transitionAppointment(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "TransitionAppointment"))

	id, err := uuid.Parse(chi.URLParam(r, "appointmentID"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "appointment_id must be a UUID")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid request", slog.String("reason", "bad_json"), slog.String("appointment_id", id.String()))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "request body must be JSON")
		return
	}

	status, ok := statusFromWire(req.Status)
	if !ok {
		log.Warn("invalid request", slog.String("reason", "unknown_status"), slog.String("appointment_id", id.String()))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "unknown status")
		return
	}
	actor, ok := actorFromWire(req.Actor)
	if !ok {
		log.Warn("invalid request", slog.String("reason", "unknown_actor"), slog.String("appointment_id", id.String()))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", "actor must be patient, doctor or admin")
		return
	}

	appt, err := s.appointments.Transition(r.Context(), scheduling.TransitionInput{
		ID:           id,
		To:           status,
		Actor:        actor,
		Diagnosis:    req.Diagnosis,
		Prescription: req.Prescription,
	})
	if err != nil {
		s.writeError(w, log, err, slog.String("appointment_id", id.String()), slog.String("to", string(status)))
		return
	}

	log.Info(
		"appointment transitioned",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("status", string(appt.Status)),
		slog.String("actor", string(actor)),
	)
	writeJSON(w, http.StatusOK, toWireAppointment(appt))
}

func (s *Server) doctorAppointments(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "DoctorAppointments"))
	doctorID := chi.URLParam(r, "doctorID")

	from, ok := queryDate(w, log, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, log, r, "to")
	if !ok {
		return
	}

	appts, err := s.appointments.ListByDoctor(r.Context(), doctorID, from, to.AddDate(0, 0, 1))
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}
	writeAppointmentList(w, appts)
}

func (s *Server) patientAppointments(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "PatientAppointments"))
	patientID := chi.URLParam(r, "patientID")

	from, ok := queryDate(w, log, r, "from")
	if !ok {
		return
	}
	to, ok := queryDate(w, log, r, "to")
	if !ok {
		return
	}

	appts, err := s.appointments.ListByPatient(r.Context(), patientID, from, to.AddDate(0, 0, 1))
	if err != nil {
		s.writeError(w, log, err, slog.String("patient_id", patientID))
		return
	}
	writeAppointmentList(w, appts)
}

func (s *Server) doctorCalendar(w http.ResponseWriter, r *http.Request) {
	log := s.log.With(slog.String("route", "DoctorCalendar"))
	doctorID := chi.URLParam(r, "doctorID")

	granularity, err := domain.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_granularity"), slog.String("doctor_id", doctorID))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	anchor, ok := queryDate(w, log, r, "anchor")
	if !ok {
		return
	}

	days, err := s.appointments.Calendar(r.Context(), doctorID, granularity, anchor)
	if err != nil {
		s.writeError(w, log, err, slog.String("doctor_id", doctorID))
		return
	}

	log.Debug(
		"calendar projected",
		slog.String("doctor_id", doctorID),
		slog.String("granularity", string(granularity)),
		slog.Int("days", len(days)),
	)
	writeJSON(w, http.StatusOK, map[string]any{"days": toWireCalendar(days)})
}

func writeAppointmentList(w http.ResponseWriter, appts []domain.Appointment) {
	out := make([]appointmentJSON, 0, len(appts))
	for _, a := range appts {
		out = append(out, toWireAppointment(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

func queryDate(w http.ResponseWriter, log *slog.Logger, r *http.Request, name string) (time.Time, bool) {
	raw := r.URL.Query().Get(name)
	date, err := time.Parse(domain.DateFormat, raw)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_"+name))
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErrorBody(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"code": code, "error": msg})
}

// writeError maps domain and store errors onto HTTP statuses. Expected
// booking conflicts stay distinguishable on the wire so the dashboards
// can show the right message.
func (s *Server) writeError(w http.ResponseWriter, log *slog.Logger, err error, args ...any) {
	switch {
	case errorsAsValidation(err):
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, args...)...)
		writeErrorBody(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrNotFound):
		log.Info("not found", args...)
		writeErrorBody(w, http.StatusNotFound, "not_found", "not found")
	case errors.Is(err, store.ErrSlotFull):
		log.Info("slot full", args...)
		writeErrorBody(w, http.StatusConflict, "slot_full", "That slot is fully booked. Pick another slot.")
	case errors.Is(err, store.ErrDuplicateBooking):
		log.Info("duplicate booking", args...)
		writeErrorBody(w, http.StatusConflict, "duplicate_booking", "You already have a booking for that slot.")
	case errors.Is(err, store.ErrRuleOverlap):
		log.Info("rule overlap", args...)
		writeErrorBody(w, http.StatusConflict, "rule_overlap", "The rule overlaps another active rule for that day.")
	case errors.Is(err, store.ErrIdempotencyConflict):
		log.Info("idempotency conflict", args...)
		writeErrorBody(w, http.StatusConflict, "idempotency_conflict", "This request key was already used for a different booking.")
	case errors.Is(err, store.ErrStatusConflict):
		log.Info("status conflict", args...)
		writeErrorBody(w, http.StatusConflict, "status_conflict", "The appointment changed concurrently. Reload and retry.")
	case errors.Is(err, domain.ErrAlreadyTerminal):
		log.Info("already terminal", args...)
		writeErrorBody(w, http.StatusConflict, "already_terminal", "The appointment already reached a final status.")
	case errorsAsTransition(err):
		log.Info("illegal transition", append([]any{slog.Any("err", err)}, args...)...)
		writeErrorBody(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, domain.ErrActorNotAllowed):
		log.Info("actor not allowed", args...)
		writeErrorBody(w, http.StatusForbidden, "actor_not_allowed", "This role may not perform that transition.")
	case errors.Is(err, domain.ErrIncompleteTreatment):
		log.Info("incomplete treatment", args...)
		writeErrorBody(w, http.StatusUnprocessableEntity, "incomplete_treatment", "Completion requires a diagnosis and a prescription.")
	default:
		log.Error("request failed", append([]any{slog.Any("err", err)}, args...)...)
		writeErrorBody(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func errorsAsValidation(err error) bool {
	var vErr *scheduling.ValidationError
	return errors.As(err, &vErr)
}

func errorsAsTransition(err error) bool {
	var tErr *domain.TransitionError
	return errors.As(err, &tErr)
}
