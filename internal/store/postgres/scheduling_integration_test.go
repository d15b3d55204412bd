package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

// The integration test needs a reachable postgres; it migrates the schema
// and uses random doctor/patient ids so repeated runs do not collide.
func integrationDB(t *testing.T) *bun.DB {
	t.Helper()
	databaseURL := strings.TrimSpace(os.Getenv("MEDIBOOK_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("MEDIBOOK_TEST_DATABASE_URL not set")
	}

	db, err := Open(databaseURL, PoolConfig{MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := Migrate(ctx, db); err != nil {
		t.Fatalf("Migrate error: %v", err)
	}
	return db
}

func randomID(t *testing.T, prefix string) string {
	t.Helper()
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return prefix + "_" + hex.EncodeToString(b)
}

func TestPostgresIntegration_TemplateRules(t *testing.T) {
	db := integrationDB(t)
	repo := NewTemplateRepo(db)
	ctx := context.Background()
	doctorID := randomID(t, "doc")

	rule, err := repo.SetRule(ctx, domain.SlotRule{
		DoctorID:    doctorID,
		Weekday:     1,
		StartMinute: 540,
		EndMinute:   720,
		Capacity:    2,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("SetRule error: %v", err)
	}
	if rule.ID == uuid.Nil {
		t.Fatalf("expected generated rule id")
	}

	_, err = repo.SetRule(ctx, domain.SlotRule{
		DoctorID:    doctorID,
		Weekday:     1,
		StartMinute: 600,
		EndMinute:   660,
		Capacity:    1,
		Active:      true,
	})
	if !errors.Is(err, store.ErrRuleOverlap) {
		t.Fatalf("overlap err = %v, want ErrRuleOverlap", err)
	}

	rule.EndMinute = 700
	updated, err := repo.SetRule(ctx, rule)
	if err != nil {
		t.Fatalf("edit error: %v", err)
	}
	if updated.EndMinute != 700 {
		t.Fatalf("end_minute = %d, want 700", updated.EndMinute)
	}

	template, err := repo.Template(ctx, doctorID)
	if err != nil {
		t.Fatalf("Template error: %v", err)
	}
	if len(template.Rules) != 1 {
		t.Fatalf("rules = %d, want 1", len(template.Rules))
	}
	if template.Rules[0].EndMinute != 700 {
		t.Fatalf("stored end_minute = %d, want 700", template.Rules[0].EndMinute)
	}
}

func TestPostgresIntegration_LedgerReserveReleaseCount(t *testing.T) {
	db := integrationDB(t)
	ledger := NewLedgerRepo(db)
	ctx := context.Background()
	doctorID := randomID(t, "doc")

	slot := domain.ConcreteSlot{
		DoctorID:    doctorID,
		Date:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		StartMinute: 540,
		EndMinute:   570,
		Capacity:    1,
	}

	token, err := ledger.Reserve(ctx, slot, "p1")
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	if _, err := ledger.Reserve(ctx, slot, "p1"); !errors.Is(err, store.ErrDuplicateBooking) {
		t.Fatalf("duplicate reserve = %v, want ErrDuplicateBooking", err)
	}
	if _, err := ledger.Reserve(ctx, slot, "p2"); !errors.Is(err, store.ErrSlotFull) {
		t.Fatalf("full reserve = %v, want ErrSlotFull", err)
	}

	count, err := ledger.CountReserved(ctx, slot.Key())
	if err != nil {
		t.Fatalf("CountReserved error: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	if err := ledger.Release(ctx, token); err != nil {
		t.Fatalf("Release error: %v", err)
	}
	if err := ledger.Release(ctx, token); err != nil {
		t.Fatalf("repeated release = %v, want nil", err)
	}
	if err := ledger.Release(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("unknown release = %v, want ErrNotFound", err)
	}

	if _, err := ledger.Reserve(ctx, slot, "p2"); err != nil {
		t.Fatalf("reserve after release error: %v", err)
	}
}

func TestPostgresIntegration_AppointmentLifecycle(t *testing.T) {
	db := integrationDB(t)
	repo := NewAppointmentRepo(db)
	ledger := NewLedgerRepo(db)
	ctx := context.Background()
	doctorID := randomID(t, "doc")
	patientID := randomID(t, "pat")

	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	id := uuid.New()

	token, err := ledger.Reserve(ctx, domain.ConcreteSlot{
		DoctorID:    doctorID,
		Date:        time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		StartMinute: 540,
		EndMinute:   570,
		Capacity:    1,
	}, patientID)
	if err != nil {
		t.Fatalf("Reserve error: %v", err)
	}

	created, err := repo.Create(ctx, domain.Appointment{
		ID:            id,
		PatientID:     patientID,
		DoctorID:      doctorID,
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		Status:        domain.StatusPending,
		ReservationID: token,
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Same id, same booking data: replay returns the original row.
	replay, err := repo.Create(ctx, domain.Appointment{
		ID:            id,
		PatientID:     patientID,
		DoctorID:      doctorID,
		StartTime:     start,
		EndTime:       start.Add(30 * time.Minute),
		Status:        domain.StatusPending,
		ReservationID: token,
	})
	if err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if replay.ID != created.ID {
		t.Fatalf("replay id = %s, want %s", replay.ID, created.ID)
	}

	// Same id, different booking data: the reused key is rejected.
	_, err = repo.Create(ctx, domain.Appointment{
		ID:            id,
		PatientID:     patientID,
		DoctorID:      doctorID,
		StartTime:     start.Add(time.Hour),
		EndTime:       start.Add(90 * time.Minute),
		Status:        domain.StatusPending,
		ReservationID: token,
	})
	if !errors.Is(err, store.ErrIdempotencyConflict) {
		t.Fatalf("conflicting replay = %v, want ErrIdempotencyConflict", err)
	}

	approved, err := repo.UpdateStatus(ctx, store.StatusUpdate{
		ID:   id,
		From: domain.StatusPending,
		To:   domain.StatusApproved,
	})
	if err != nil {
		t.Fatalf("UpdateStatus error: %v", err)
	}
	if approved.Status != domain.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}

	if _, err := repo.UpdateStatus(ctx, store.StatusUpdate{
		ID:   id,
		From: domain.StatusPending,
		To:   domain.StatusCancelled,
	}); !errors.Is(err, store.ErrStatusConflict) {
		t.Fatalf("stale update = %v, want ErrStatusConflict", err)
	}

	rows, err := repo.ListByDoctor(ctx, doctorID, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListByDoctor error: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != id {
		t.Fatalf("rows = %+v, want the created appointment", rows)
	}

	rows, err = repo.ListByPatient(ctx, patientID, start.Add(-time.Hour), start.Add(time.Hour))
	if err != nil {
		t.Fatalf("ListByPatient error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("patient rows = %d, want 1", len(rows))
	}

	if _, err := repo.Get(ctx, uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get unknown = %v, want ErrNotFound", err)
	}
}
