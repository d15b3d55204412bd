package scheduling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

// Appointments drives the appointment lifecycle: reservation-backed
// creation and table-checked status transitions with their slot-release
// side effects.
type Appointments struct {
	catalog *Catalog
	ledger  store.BookingLedger
	repo    store.AppointmentRepository
	now     func() time.Time
}

func NewAppointments(catalog *Catalog, ledger store.BookingLedger, repo store.AppointmentRepository) *Appointments {
	return &Appointments{
		catalog: catalog,
		ledger:  ledger,
		repo:    repo,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	PatientID      string
	DoctorID       string
	TreatmentID    string
	Date           time.Time
	Start          string
	Notes          string
	IdempotencyKey string
}

// Create books the requested slot. The ledger reservation happens first;
// the appointment row is only written once the reservation succeeded, so
// a failed reserve leaves no half-created appointment behind.
func (s *Appointments) Create(ctx context.Context, in CreateInput) (domain.Appointment, error) {
	patientID := strings.TrimSpace(in.PatientID)
	if patientID == "" {
		return domain.Appointment{}, validationError("patient_id is required")
	}
	if strings.TrimSpace(in.DoctorID) == "" {
		return domain.Appointment{}, validationError("doctor_id is required")
	}

	startMinute, err := domain.MinuteOfDay(in.Start)
	if err != nil {
		return domain.Appointment{}, validationError("start must be HH:MM")
	}

	slots, err := s.catalog.Materialize(ctx, in.DoctorID, in.Date, in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	var slot domain.ConcreteSlot
	found := false
	for _, cand := range slots {
		if cand.StartMinute == startMinute {
			slot = cand
			found = true
			break
		}
	}
	if !found {
		return domain.Appointment{}, validationError("doctor has no slot at that time")
	}

	var apptID uuid.UUID
	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Appointment{}, validationError("idempotency_key too long")
		}
		apptID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("medibook:create_appointment:"+patientID+":"+key))
	}

	token, err := s.ledger.Reserve(ctx, slot, patientID)
	if err != nil {
		// A replayed idempotency key trips the duplicate check because
		// the first attempt already holds the reservation; hand back the
		// original appointment instead of an error.
		if errors.Is(err, store.ErrDuplicateBooking) && apptID != uuid.Nil {
			existing, getErr := s.repo.Get(ctx, apptID)
			if getErr == nil && existing.PatientID == patientID && existing.SlotKey() == slot.Key() {
				return existing, nil
			}
		}
		return domain.Appointment{}, err
	}

	appt := domain.Appointment{
		ID:            apptID,
		PatientID:     patientID,
		DoctorID:      slot.DoctorID,
		TreatmentID:   strings.TrimSpace(in.TreatmentID),
		StartTime:     slot.Start(),
		EndTime:       slot.End(),
		Status:        domain.StatusPending,
		ReservationID: token,
		Notes:         in.Notes,
	}

	created, err := s.repo.Create(ctx, appt)
	if err != nil {
		s.releaseReservation(ctx, token)
		return domain.Appointment{}, err
	}
	if created.ReservationID != token {
		// The repo resolved a replayed idempotency key to the original
		// row, so the reservation taken above backs nothing; free it or
		// the slot stays consumed with no appointment holding it. The
		// replay returns the original record with its real status, even
		// a terminal one.
		s.releaseReservation(ctx, token)
	}
	return created, nil
}

// releaseReservation frees the token without failing the caller. The
// owning write has already committed when this runs; on a release error
// the hold stays visible until reconciled, which is preferable to
// reporting failure for a transition that already happened.
func (s *Appointments) releaseReservation(ctx context.Context, token uuid.UUID) {
	if err := s.ledger.Release(ctx, token); err != nil {
		slog.Warn(
			"reservation release failed",
			slog.String("reservation_id", token.String()),
			slog.Any("err", err),
		)
	}
}

type TransitionInput struct {
	ID           uuid.UUID
	To           domain.Status
	Actor        domain.Actor
	Diagnosis    string
	Prescription string
}

// Transition moves an appointment to the requested status. Illegal pairs,
// terminal origins and disallowed actors are rejected by the domain
// transition table; the persisted update is conditional on the status the
// decision was made against.
func (s *Appointments) Transition(ctx context.Context, in TransitionInput) (domain.Appointment, error) {
	if in.ID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	if !in.To.Valid() {
		return domain.Appointment{}, validationError("unknown status")
	}
	if !in.Actor.Valid() {
		return domain.Appointment{}, validationError("unknown actor")
	}

	appt, err := s.repo.Get(ctx, in.ID)
	if err != nil {
		return domain.Appointment{}, err
	}

	tr, err := domain.CheckTransition(appt.Status, in.To, in.Actor)
	if err != nil {
		return domain.Appointment{}, err
	}

	if tr.RequiresTreatment {
		if strings.TrimSpace(in.Diagnosis) == "" || strings.TrimSpace(in.Prescription) == "" {
			return domain.Appointment{}, domain.ErrIncompleteTreatment
		}
	}
	if in.To == domain.StatusNoShow && s.now().Before(appt.StartTime) {
		return domain.Appointment{}, validationError("cannot record a no-show before the slot time")
	}

	updated, err := s.repo.UpdateStatus(ctx, store.StatusUpdate{
		ID:           in.ID,
		From:         appt.Status,
		To:           in.To,
		Diagnosis:    strings.TrimSpace(in.Diagnosis),
		Prescription: strings.TrimSpace(in.Prescription),
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if tr.ReleasesSlot {
		s.releaseReservation(ctx, updated.ReservationID)
	}
	return updated, nil
}

func (s *Appointments) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if id == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *Appointments) ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, validationError("doctor_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.repo.ListByDoctor(ctx, doctorID, start, end)
}

func (s *Appointments) ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, validationError("patient_id is required")
	}
	start := windowStart.UTC()
	end := windowEnd.UTC()
	if end.Equal(start) || end.Before(start) {
		return nil, validationError("window_end must be after window_start")
	}
	return s.repo.ListByPatient(ctx, patientID, start, end)
}

// Calendar projects a doctor's appointments into day buckets over the
// window implied by the granularity and anchor.
func (s *Appointments) Calendar(ctx context.Context, doctorID string, granularity domain.Granularity, anchor time.Time) (map[time.Time][]domain.Appointment, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, validationError("doctor_id is required")
	}
	windowStart, windowEnd, err := domain.CalendarWindow(granularity, anchor)
	if err != nil {
		return nil, validationError(err.Error())
	}

	appts, err := s.repo.ListByDoctor(ctx, doctorID, windowStart, windowEnd)
	if err != nil {
		return nil, err
	}
	return domain.ProjectCalendar(appts, granularity, anchor)
}
