package postgres

import (
	"context"

	"github.com/uptrace/bun"

	"medibook/backend/internal/domain"
	"medibook/backend/internal/store"
)

type TemplateRepo struct {
	db *bun.DB
}

func NewTemplateRepo(db *bun.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

func (r *TemplateRepo) Template(ctx context.Context, doctorID string) (domain.WeeklyTemplate, error) {
	var rules []domain.SlotRule
	err := r.db.NewSelect().
		Model(&rules).
		Where("doctor_id = ?", doctorID).
		OrderExpr("weekday ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return domain.WeeklyTemplate{}, err
	}
	return domain.WeeklyTemplate{DoctorID: doctorID, Rules: rules}, nil
}

// SetRule validates and writes under a per-doctor advisory lock so two
// concurrent edits cannot both pass the overlap check.
func (r *TemplateRepo) SetRule(ctx context.Context, rule domain.SlotRule) (domain.SlotRule, error) {
	var out domain.SlotRule
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockDoctorSchedule(ctx, tx, rule.DoctorID); err != nil {
			return err
		}

		if rule.Active {
			var active []domain.SlotRule
			err := tx.NewSelect().
				Model(&active).
				Where("doctor_id = ?", rule.DoctorID).
				Where("weekday = ?", rule.Weekday).
				Where("active").
				Scan(ctx)
			if err != nil {
				return err
			}
			template := domain.WeeklyTemplate{DoctorID: rule.DoctorID, Rules: active}
			if _, clash := template.ConflictingRule(rule); clash {
				return store.ErrRuleOverlap
			}
		}

		m := rule
		_, err := tx.NewInsert().
			Model(&m).
			On("CONFLICT (id) DO UPDATE").
			Set("weekday = EXCLUDED.weekday").
			Set("start_minute = EXCLUDED.start_minute").
			Set("end_minute = EXCLUDED.end_minute").
			Set("capacity = EXCLUDED.capacity").
			Set("active = EXCLUDED.active").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if err != nil {
		return domain.SlotRule{}, err
	}
	return out, nil
}

func lockDoctorSchedule(ctx context.Context, tx bun.Tx, doctorID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", doctorID).Exec(ctx)
	return err
}
