package scheduling

import (
	"context"
	"time"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

// Resolver intersects a doctor's slot template with the booking ledger to
// produce the slots still open for booking.
type Resolver struct {
	catalog *Catalog
	ledger  store.BookingLedger
}

func NewResolver(catalog *Catalog, ledger store.BookingLedger) *Resolver {
	return &Resolver{catalog: catalog, ledger: ledger}
}

// Available returns the doctor's open slots on the date, ordered by start
// time. A day with no active rules or no remaining capacity yields an
// empty list, not an error.
func (r *Resolver) Available(ctx context.Context, doctorID string, date time.Time) ([]domain.ConcreteSlot, error) {
	candidates, err := r.catalog.Materialize(ctx, doctorID, date, date)
	if err != nil {
		return nil, err
	}

	open := make([]domain.ConcreteSlot, 0, len(candidates))
	for _, slot := range candidates {
		reserved, err := r.ledger.CountReserved(ctx, slot.Key())
		if err != nil {
			return nil, err
		}
		if reserved < slot.Capacity {
			open = append(open, slot)
		}
	}
	return open, nil
}
