// Package memory holds mutex-guarded in-memory implementations of the
// store interfaces. They back local development without postgres and the
// concurrency tests for the booking ledger's capacity invariant.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

// Store implements store.TemplateRepository, store.BookingLedger and
// store.AppointmentRepository over process-local maps. One mutex guards
// everything; reserve's count-compare-insert therefore runs as a single
// critical section per store, which satisfies the ledger's atomicity
// contract.
type Store struct {
	mu           sync.Mutex
	rules        map[uuid.UUID]domain.SlotRule
	reservations map[uuid.UUID]domain.Reservation
	appointments map[uuid.UUID]domain.Appointment
}

func NewStore() *Store {
	return &Store{
		rules:        make(map[uuid.UUID]domain.SlotRule),
		reservations: make(map[uuid.UUID]domain.Reservation),
		appointments: make(map[uuid.UUID]domain.Appointment),
	}
}

func (s *Store) Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rules := make([]domain.SlotRule, 0)
	for _, r := range s.rules {
		if r.DoctorID == doctorID {
			rules = append(rules, r)
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].StartMinute < rules[j].StartMinute
	})
	return domain.WeeklyTemplate{DoctorID: doctorID, Rules: rules}, nil
}

func (s *Store) SetRule(ctx context.Context, rule domain.SlotRule) (domain.SlotRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.Active {
		for _, existing := range s.rules {
			if existing.DoctorID != rule.DoctorID || !existing.Active {
				continue
			}
			if existing.ID == rule.ID {
				continue
			}
			if existing.Overlaps(rule) {
				return domain.SlotRule{}, store.ErrRuleOverlap
			}
		}
	}

	now := time.Now().UTC()
	if rule.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.SlotRule{}, err
		}
		rule.ID = id
		rule.CreatedAt = now
	} else if existing, ok := s.rules[rule.ID]; ok {
		rule.CreatedAt = existing.CreatedAt
	} else if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *Store) Reserve(ctx context.Context, slot domain.ConcreteSlot, patientID string) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slot.Key()
	count := 0
	for _, res := range s.reservations {
		if res.ReleasedAt != nil || res.Key() != key {
			continue
		}
		if res.PatientID == patientID {
			return uuid.Nil, store.ErrDuplicateBooking
		}
		count++
	}
	if count >= slot.Capacity {
		return uuid.Nil, store.ErrSlotFull
	}

	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, err
	}
	s.reservations[id] = domain.Reservation{
		ID:          id,
		DoctorID:    slot.DoctorID,
		SlotDate:    domain.DateOnly(slot.Date),
		StartMinute: slot.StartMinute,
		PatientID:   patientID,
		CreatedAt:   time.Now().UTC(),
	}
	return id, nil
}

func (s *Store) Release(ctx context.Context, token uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.reservations[token]
	if !ok {
		return store.ErrNotFound
	}
	if res.ReleasedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	res.ReleasedAt = &now
	s.reservations[token] = res
	return nil
}

func (s *Store) CountReserved(ctx context.Context, key domain.SlotKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, res := range s.reservations {
		if res.ReleasedAt == nil && res.Key() == key {
			count++
		}
	}
	return count, nil
}

func (s *Store) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	} else if existing, ok := s.appointments[appt.ID]; ok {
		if existing.PatientID != appt.PatientID ||
			existing.DoctorID != appt.DoctorID ||
			!existing.StartTime.Equal(appt.StartTime) ||
			!existing.EndTime.Equal(appt.EndTime) {
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	if appt.UpdatedAt.IsZero() {
		appt.UpdatedAt = now
	}

	s.appointments[appt.ID] = appt
	return appt, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[id]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	return appt, nil
}

func (s *Store) ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0)
	for _, a := range s.appointments {
		if a.DoctorID == doctorID && a.StartTime.Before(windowEnd) && a.EndTime.After(windowStart) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (s *Store) ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Appointment, 0)
	for _, a := range s.appointments {
		if a.PatientID == patientID && a.StartTime.Before(windowEnd) && a.EndTime.After(windowStart) {
			out = append(out, a)
		}
	}
	sortAppointments(out)
	return out, nil
}

func (s *Store) UpdateStatus(ctx context.Context, upd store.StatusUpdate) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	appt, ok := s.appointments[upd.ID]
	if !ok {
		return domain.Appointment{}, store.ErrNotFound
	}
	if appt.Status != upd.From {
		return domain.Appointment{}, store.ErrStatusConflict
	}

	appt.Status = upd.To
	if upd.Diagnosis != "" {
		appt.Diagnosis = upd.Diagnosis
	}
	if upd.Prescription != "" {
		appt.Prescription = upd.Prescription
	}
	appt.UpdatedAt = time.Now().UTC()

	s.appointments[upd.ID] = appt
	return appt, nil
}

func sortAppointments(appts []domain.Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].StartTime.Equal(appts[j].StartTime) {
			return appts[i].StartTime.Before(appts[j].StartTime)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}
