package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

type fakeTemplates struct {
	templateFn func(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error)
	setRuleFn  func(ctx context.Context, rule domain.SlotRule) (domain.SlotRule, error)
}

func (f *fakeTemplates) Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error) {
	if f.templateFn == nil {
		panic("Template not configured")
	}
	return f.templateFn(ctx, doctorID)
}

func (f *fakeTemplates) SetRule(ctx context.Context, rule domain.SlotRule) (domain.SlotRule, error) {
	if f.setRuleFn == nil {
		panic("SetRule not configured")
	}
	return f.setRuleFn(ctx, rule)
}

type fakeLedger struct {
	reserveFn func(ctx context.Context, slot domain.ConcreteSlot, patientID string) (uuid.UUID, error)
	releaseFn func(ctx context.Context, token uuid.UUID) error
	countFn   func(ctx context.Context, key domain.SlotKey) (int, error)
}

func (f *fakeLedger) Reserve(ctx context.Context, slot domain.ConcreteSlot, patientID string) (uuid.UUID, error) {
	if f.reserveFn == nil {
		panic("Reserve not configured")
	}
	return f.reserveFn(ctx, slot, patientID)
}

func (f *fakeLedger) Release(ctx context.Context, token uuid.UUID) error {
	if f.releaseFn == nil {
		panic("Release not configured")
	}
	return f.releaseFn(ctx, token)
}

func (f *fakeLedger) CountReserved(ctx context.Context, key domain.SlotKey) (int, error) {
	if f.countFn == nil {
		panic("CountReserved not configured")
	}
	return f.countFn(ctx, key)
}

type fakeAppointments struct {
	createFn       func(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	getFn          func(ctx context.Context, id uuid.UUID) (domain.Appointment, error)
	listByDoctorFn func(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	listByPatient  func(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error)
	updateStatusFn func(ctx context.Context, upd store.StatusUpdate) (domain.Appointment, error)
}

func (f *fakeAppointments) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if f.createFn == nil {
		panic("Create not configured")
	}
	return f.createFn(ctx, appt)
}

func (f *fakeAppointments) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	if f.getFn == nil {
		panic("Get not configured")
	}
	return f.getFn(ctx, id)
}

func (f *fakeAppointments) ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listByDoctorFn == nil {
		panic("ListByDoctor not configured")
	}
	return f.listByDoctorFn(ctx, doctorID, windowStart, windowEnd)
}

func (f *fakeAppointments) ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	if f.listByPatient == nil {
		panic("ListByPatient not configured")
	}
	return f.listByPatient(ctx, patientID, windowStart, windowEnd)
}

func (f *fakeAppointments) UpdateStatus(ctx context.Context, upd store.StatusUpdate) (domain.Appointment, error) {
	if f.updateStatusFn == nil {
		panic("UpdateStatus not configured")
	}
	return f.updateStatusFn(ctx, upd)
}

// mondayTemplate returns a single-rule template: Mondays 09:00-09:30,
// capacity as given.
func mondayTemplate(doctorID string, capacity int) domain.WeeklyTemplate {
	return domain.WeeklyTemplate{
		DoctorID: doctorID,
		Rules: []domain.SlotRule{{
			ID:          uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			DoctorID:    doctorID,
			Weekday:     1,
			StartMinute: 540,
			EndMinute:   570,
			Capacity:    capacity,
			Active:      true,
		}},
	}
}
