package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
)

// StatusUpdate is one conditional lifecycle transition. The write applies
// only while the row is still in From; losing that race surfaces
// ErrStatusConflict instead of overwriting a concurrent transition.
type StatusUpdate struct {
	ID           uuid.UUID
	From         domain.Status
	To           domain.Status
	Diagnosis    string
	Prescription string
}

type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	UpdateStatus(ctx context.Context, upd StatusUpdate) (domain.Appointment, error)
}
