package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

type LedgerRepo struct {
	db *bun.DB
}

func NewLedgerRepo(db *bun.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Reserve runs the count-compare-insert sequence inside one transaction
// holding an advisory lock on the slot key, so concurrent reserves on the
// same slot serialize and cannot both take the last capacity unit.
func (r *LedgerRepo) Reserve(ctx context.Context, slot domain.ConcreteSlot, patientID string) (uuid.UUID, error) {
	key := slot.Key()
	slotDate := domain.DateOnly(slot.Date)

	var token uuid.UUID
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockSlot(ctx, tx, key); err != nil {
			return err
		}

		duplicate, err := tx.NewSelect().
			Model((*domain.Reservation)(nil)).
			Where("doctor_id = ?", slot.DoctorID).
			Where("slot_date = ?", slotDate).
			Where("start_minute = ?", slot.StartMinute).
			Where("patient_id = ?", patientID).
			Where("released_at IS NULL").
			Exists(ctx)
		if err != nil {
			return err
		}
		if duplicate {
			return store.ErrDuplicateBooking
		}

		count, err := tx.NewSelect().
			Model((*domain.Reservation)(nil)).
			Where("doctor_id = ?", slot.DoctorID).
			Where("slot_date = ?", slotDate).
			Where("start_minute = ?", slot.StartMinute).
			Where("released_at IS NULL").
			Count(ctx)
		if err != nil {
			return err
		}
		if count >= slot.Capacity {
			return store.ErrSlotFull
		}

		m := domain.Reservation{
			DoctorID:    slot.DoctorID,
			SlotDate:    slotDate,
			StartMinute: slot.StartMinute,
			PatientID:   patientID,
		}
		if _, err := tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return err
		}
		token = m.ID
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return token, nil
}

// Release marks the reservation released. A token that was already
// released is left untouched and reported as success.
func (r *LedgerRepo) Release(ctx context.Context, token uuid.UUID) error {
	now := time.Now().UTC()
	res, err := r.db.NewUpdate().
		Model((*domain.Reservation)(nil)).
		Set("released_at = ?", now).
		Where("id = ?", token).
		Where("released_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := r.db.NewSelect().
		Model((*domain.Reservation)(nil)).
		Where("id = ?", token).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

func (r *LedgerRepo) CountReserved(ctx context.Context, key domain.SlotKey) (int, error) {
	slotDate, err := time.Parse(domain.DateFormat, key.Date)
	if err != nil {
		return 0, err
	}
	count, err := r.db.NewSelect().
		Model((*domain.Reservation)(nil)).
		Where("doctor_id = ?", key.DoctorID).
		Where("slot_date = ?", slotDate).
		Where("start_minute = ?", key.StartMinute).
		Where("released_at IS NULL").
		Count(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return count, nil
}

func lockSlot(ctx context.Context, tx bun.Tx, key domain.SlotKey) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Exec(ctx)
	return err
}
