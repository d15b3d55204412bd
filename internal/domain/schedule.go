package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// DateFormat is the wire and key format for calendar dates.
	DateFormat = "2006-01-02"
	// ClockFormat is the wire format for times of day.
	ClockFormat = "15:04"
)

// SlotRule is one recurring weekly availability window of a doctor.
// Rules are never deleted; retired rules are kept with Active=false so
// historical slots keep their identity.
type SlotRule struct {
	bun.BaseModel `bun:"table:slot_rules"`

	ID          uuid.UUID `bun:"id,pk,type:uuid"`
	DoctorID    string    `bun:"doctor_id,notnull"`
	Weekday     int       `bun:"weekday,notnull"`
	StartMinute int       `bun:"start_minute,notnull"`
	EndMinute   int       `bun:"end_minute,notnull"`
	Capacity    int       `bun:"capacity,notnull"`
	Active      bool      `bun:"active,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

func (r *SlotRule) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			r.ID = id
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		if r.UpdatedAt.IsZero() {
			r.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Overlaps reports whether two rules collide on the same weekday.
// Touching ranges (one ends where the other starts) do not overlap.
func (r SlotRule) Overlaps(other SlotRule) bool {
	if r.Weekday != other.Weekday {
		return false
	}
	return r.StartMinute < other.EndMinute && r.EndMinute > other.StartMinute
}

// WeeklyTemplate is the full recurring availability of one doctor.
type WeeklyTemplate struct {
	DoctorID string
	Rules    []SlotRule
}

// ConflictingRule returns the first active rule that overlaps the given
// rule. The rule's own row (matched by ID) is ignored so edits can keep
// their current window.
func (t WeeklyTemplate) ConflictingRule(rule SlotRule) (SlotRule, bool) {
	for _, existing := range t.Rules {
		if !existing.Active {
			continue
		}
		if existing.ID == rule.ID {
			continue
		}
		if existing.Overlaps(rule) {
			return existing, true
		}
	}
	return SlotRule{}, false
}

// SlotKey identifies one bookable slot: one doctor, one date, one start
// time. It is the unit the booking ledger serializes reservations on.
type SlotKey struct {
	DoctorID    string
	Date        string
	StartMinute int
}

func (k SlotKey) String() string {
	return k.DoctorID + "|" + k.Date + "|" + strconv.Itoa(k.StartMinute)
}

// ConcreteSlot is a materialized instance of a SlotRule on a calendar
// date. It is derived data and never persisted on its own.
type ConcreteSlot struct {
	DoctorID    string
	Date        time.Time
	StartMinute int
	EndMinute   int
	Capacity    int
}

func (s ConcreteSlot) Key() SlotKey {
	return SlotKey{
		DoctorID:    s.DoctorID,
		Date:        s.Date.UTC().Format(DateFormat),
		StartMinute: s.StartMinute,
	}
}

// Start returns the slot's opening instant in UTC.
func (s ConcreteSlot) Start() time.Time {
	d := DateOnly(s.Date)
	return d.Add(time.Duration(s.StartMinute) * time.Minute)
}

// End returns the slot's closing instant in UTC.
func (s ConcreteSlot) End() time.Time {
	d := DateOnly(s.Date)
	return d.Add(time.Duration(s.EndMinute) * time.Minute)
}

// MaterializeSlots expands each active rule into one ConcreteSlot per
// matching date in [from, to]. The expansion is deterministic and free of
// side effects; calling it twice with the same inputs yields the same
// slots in the same order (date ascending, then start time).
func MaterializeSlots(doctorID string, rules []SlotRule, from, to time.Time) []ConcreteSlot {
	start := DateOnly(from)
	end := DateOnly(to)

	out := make([]ConcreteSlot, 0, 8)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for _, r := range rules {
			if !r.Active || r.DoctorID != doctorID {
				continue
			}
			if int(d.Weekday()) != r.Weekday {
				continue
			}
			out = append(out, ConcreteSlot{
				DoctorID:    doctorID,
				Date:        d,
				StartMinute: r.StartMinute,
				EndMinute:   r.EndMinute,
				Capacity:    r.Capacity,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartMinute < out[j].StartMinute
	})

	return out
}

// DateOnly truncates t to midnight UTC.
func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MinuteOfDay parses a "HH:MM" clock string into minutes from midnight.
func MinuteOfDay(s string) (int, error) {
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, errors.New("invalid time, want HH:MM")
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinute renders minutes from midnight back to "HH:MM".
func FormatMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
