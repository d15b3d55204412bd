package store

import (
	"context"

	"medibook/backend/internal/domain"
)

type TemplateRepository interface {
	// Template returns the doctor's full weekly template, retired rules
	// included. A doctor with no rules yields an empty template.
	Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error)
	// SetRule inserts a new rule or updates the rule matching the ID.
	// It fails with ErrRuleOverlap when the rule intersects another
	// active rule for the same doctor and weekday; validation and write
	// run under a per-doctor lock.
	SetRule(ctx context.Context, rule domain.SlotRule) (domain.SlotRule, error)
}
