package scheduling

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

// MaxMaterializeRange caps slot materialization requests.
const MaxMaterializeRange = 366 * 24 * time.Hour

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

// Catalog manages doctors' weekly availability templates and expands them
// into concrete bookable slots.
type Catalog struct {
	repo store.TemplateRepository
}

func NewCatalog(repo store.TemplateRepository) *Catalog {
	return &Catalog{repo: repo}
}

type SlotRuleInput struct {
	ID       uuid.UUID
	DoctorID string
	Weekday  int
	Start    string
	End      string
	Capacity int
	Active   bool
}

func (c *Catalog) SetRule(ctx context.Context, in SlotRuleInput) (domain.SlotRule, error) {
	doctorID := strings.TrimSpace(in.DoctorID)
	if doctorID == "" {
		return domain.SlotRule{}, validationError("doctor_id is required")
	}
	if in.Weekday < 0 || in.Weekday > 6 {
		return domain.SlotRule{}, validationError("weekday must be between 0 and 6")
	}

	startMinute, err := domain.MinuteOfDay(in.Start)
	if err != nil {
		return domain.SlotRule{}, validationError("start must be HH:MM")
	}
	endMinute, err := domain.MinuteOfDay(in.End)
	if err != nil {
		return domain.SlotRule{}, validationError("end must be HH:MM")
	}
	if endMinute <= startMinute {
		return domain.SlotRule{}, validationError("end must be after start")
	}
	if in.Capacity < 1 {
		return domain.SlotRule{}, validationError("capacity must be at least 1")
	}

	return c.repo.SetRule(ctx, domain.SlotRule{
		ID:          in.ID,
		DoctorID:    doctorID,
		Weekday:     in.Weekday,
		StartMinute: startMinute,
		EndMinute:   endMinute,
		Capacity:    in.Capacity,
		Active:      in.Active,
	})
}

func (c *Catalog) Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error) {
	if strings.TrimSpace(doctorID) == "" {
		return domain.WeeklyTemplate{}, validationError("doctor_id is required")
	}
	return c.repo.Template(ctx, doctorID)
}

// Materialize expands the doctor's active rules over [from, to]. The
// result depends only on the stored template and the requested range.
func (c *Catalog) Materialize(ctx context.Context, doctorID string, from, to time.Time) ([]domain.ConcreteSlot, error) {
	if strings.TrimSpace(doctorID) == "" {
		return nil, validationError("doctor_id is required")
	}
	start := domain.DateOnly(from)
	end := domain.DateOnly(to)
	if end.Before(start) {
		return nil, validationError("to must not be before from")
	}
	if end.Sub(start) > MaxMaterializeRange {
		return nil, validationError("date range too long")
	}

	template, err := c.repo.Template(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	return domain.MaterializeSlots(doctorID, template.Rules, start, end), nil
}
