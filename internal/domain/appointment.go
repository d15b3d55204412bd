package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Appointment is one patient's booking of one concrete slot. While the
// status holds a slot the row owns a reservation in the booking ledger;
// after reaching a terminal status it is a read-only historical record.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID            uuid.UUID `bun:"id,pk,type:uuid"`
	PatientID     string    `bun:"patient_id,notnull"`
	DoctorID      string    `bun:"doctor_id,notnull"`
	TreatmentID   string    `bun:"treatment_id"`
	StartTime     time.Time `bun:"start_time,notnull"`
	EndTime       time.Time `bun:"end_time,notnull"`
	Status        Status    `bun:"status,notnull"`
	ReservationID uuid.UUID `bun:"reservation_id,type:uuid,notnull"`
	Diagnosis     string    `bun:"diagnosis"`
	Prescription  string    `bun:"prescription"`
	Notes         string    `bun:"notes"`
	CreatedAt     time.Time `bun:"created_at,notnull"`
	UpdatedAt     time.Time `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// SlotKey derives the booked slot's identity from the start time.
func (a Appointment) SlotKey() SlotKey {
	start := a.StartTime.UTC()
	return SlotKey{
		DoctorID:    a.DoctorID,
		Date:        start.Format(DateFormat),
		StartMinute: start.Hour()*60 + start.Minute(),
	}
}

// Reservation is one hold on one unit of a slot's capacity. Released
// reservations keep their row with ReleasedAt set, so releasing the same
// token again has no effect.
type Reservation struct {
	bun.BaseModel `bun:"table:reservations"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	DoctorID    string     `bun:"doctor_id,notnull"`
	SlotDate    time.Time  `bun:"slot_date,notnull"`
	StartMinute int        `bun:"start_minute,notnull"`
	PatientID   string     `bun:"patient_id,notnull"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
	ReleasedAt  *time.Time `bun:"released_at"`
}

func (r *Reservation) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (r Reservation) Key() SlotKey {
	return SlotKey{
		DoctorID:    r.DoctorID,
		Date:        r.SlotDate.UTC().Format(DateFormat),
		StartMinute: r.StartMinute,
	}
}
