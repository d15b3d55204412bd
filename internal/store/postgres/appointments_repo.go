package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Idempotency-keyed creates reuse a deterministic id, so a
			// replay lands here: return the original row when the
			// booking data matches, otherwise reject the reused key.
			var existing domain.Appointment
			selectErr := r.db.NewSelect().
				Model(&existing).
				Where("id = ?", m.ID).
				Limit(1).
				Scan(ctx)
			if selectErr != nil {
				return domain.Appointment{}, err
			}

			if existing.PatientID != appt.PatientID ||
				existing.DoctorID != appt.DoctorID ||
				!existing.StartTime.Equal(appt.StartTime) ||
				!existing.EndTime.Equal(appt.EndTime) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}

			return existing, nil
		}
		return domain.Appointment{}, err
	}

	appt.ID = m.ID
	appt.CreatedAt = m.CreatedAt
	appt.UpdatedAt = m.UpdatedAt
	return appt, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.NewSelect().
		Model(&out).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) ListByDoctor(ctx context.Context, doctorID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("doctor_id = ?", doctorID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID string, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("patient_id = ?", patientID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus applies the transition only while the row is still in the
// expected status. A concurrent transition makes the guarded update match
// zero rows and surfaces ErrStatusConflict.
func (r *AppointmentRepo) UpdateStatus(ctx context.Context, upd store.StatusUpdate) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		q := tx.NewUpdate().
			Model((*domain.Appointment)(nil)).
			Set("status = ?", upd.To).
			Set("updated_at = ?", time.Now().UTC()).
			Where("id = ?", upd.ID).
			Where("status = ?", upd.From)
		if upd.Diagnosis != "" {
			q = q.Set("diagnosis = ?", upd.Diagnosis)
		}
		if upd.Prescription != "" {
			q = q.Set("prescription = ?", upd.Prescription)
		}

		res, err := q.Exec(ctx)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			exists, err := tx.NewSelect().
				Model((*domain.Appointment)(nil)).
				Where("id = ?", upd.ID).
				Exists(ctx)
			if err != nil {
				return err
			}
			if !exists {
				return store.ErrNotFound
			}
			return store.ErrStatusConflict
		}

		return tx.NewSelect().
			Model(&out).
			Where("id = ?", upd.ID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}
