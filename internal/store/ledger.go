package store

import (
	"context"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
)

// BookingLedger is the authoritative record of slot reservations. Reserve
// is the single conflict checkpoint: for one slot key, reading the
// current count, comparing it to capacity and recording the hold execute
// as one atomic step relative to concurrent reserves on the same key.
type BookingLedger interface {
	// Reserve holds one capacity unit of the slot for the patient and
	// returns the reservation token. It fails with ErrSlotFull at
	// capacity and with ErrDuplicateBooking when the patient already
	// holds a live reservation for the slot.
	Reserve(ctx context.Context, slot domain.ConcreteSlot, patientID string) (uuid.UUID, error)
	// Release frees the reservation. Releasing an already-released
	// token is a no-op so callers can retry safely.
	Release(ctx context.Context, token uuid.UUID) error
	// CountReserved returns the number of live reservations on the slot.
	CountReserved(ctx context.Context, key domain.SlotKey) (int, error)
}
