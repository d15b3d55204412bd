package store

import "errors"

var (
	// ErrNotFound reports a missing row.
	ErrNotFound = errors.New("not found")
	// ErrSlotFull reports a reservation attempt against a slot whose
	// capacity is exhausted.
	ErrSlotFull = errors.New("slot is fully booked")
	// ErrDuplicateBooking reports a patient already holding a live
	// reservation for the same slot.
	ErrDuplicateBooking = errors.New("patient already booked this slot")
	// ErrRuleOverlap reports a slot rule colliding with another active
	// rule for the same doctor and weekday.
	ErrRuleOverlap = errors.New("slot rule overlaps an active rule")
	// ErrStatusConflict reports a status-conditional update that lost to
	// a concurrent transition.
	ErrStatusConflict = errors.New("appointment status changed concurrently")
	// ErrIdempotencyConflict reports an idempotency key replayed with
	// different booking data.
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)
