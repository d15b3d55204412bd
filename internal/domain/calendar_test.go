package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCalendarWindow(t *testing.T) {
	// 2026-01-07 is a Wednesday.
	anchor := time.Date(2026, 1, 7, 15, 30, 0, 0, time.UTC)

	start, end, err := CalendarWindow(GranularityDay, anchor)
	if err != nil {
		t.Fatalf("day window error: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 8, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day window = [%v, %v)", start, end)
	}

	start, end, err = CalendarWindow(GranularityWeek, anchor)
	if err != nil {
		t.Fatalf("week window error: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week window = [%v, %v), want Monday through next Monday", start, end)
	}

	start, end, err = CalendarWindow(GranularityMonth, anchor)
	if err != nil {
		t.Fatalf("month window error: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) || !end.Equal(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("month window = [%v, %v)", start, end)
	}

	if _, _, err := CalendarWindow(Granularity("fortnight"), anchor); err == nil {
		t.Fatalf("expected error for unknown granularity")
	}
}

func TestCalendarWindow_WeekStartsMondayAcrossSunday(t *testing.T) {
	// 2026-01-11 is a Sunday; its week starts the previous Monday.
	anchor := time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC)
	start, _, err := CalendarWindow(GranularityWeek, anchor)
	if err != nil {
		t.Fatalf("week window error: %v", err)
	}
	if !start.Equal(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("week start = %v, want 2026-01-05", start)
	}
}

func TestProjectCalendar_EmptyMonthHasAllDates(t *testing.T) {
	anchor := time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

	days, err := ProjectCalendar(nil, GranularityMonth, anchor)
	if err != nil {
		t.Fatalf("ProjectCalendar error: %v", err)
	}
	if len(days) != 31 {
		t.Fatalf("days = %d, want 31", len(days))
	}
	for d := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC); d.Month() == time.July; d = d.AddDate(0, 0, 1) {
		bucket, ok := days[d]
		if !ok {
			t.Fatalf("missing date %v", d)
		}
		if bucket == nil {
			t.Fatalf("bucket for %v is nil, want empty list", d)
		}
		if len(bucket) != 0 {
			t.Fatalf("bucket for %v has %d entries, want 0", d, len(bucket))
		}
	}
}

func TestProjectCalendar_BucketsSortedAndWindowed(t *testing.T) {
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	early := Appointment{
		ID:        uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		DoctorID:  "d1",
		StartTime: day.Add(9 * time.Hour),
		EndTime:   day.Add(9*time.Hour + 30*time.Minute),
	}
	late := Appointment{
		ID:        uuid.MustParse("22222222-2222-2222-2222-222222222222"),
		DoctorID:  "d1",
		StartTime: day.Add(14 * time.Hour),
		EndTime:   day.Add(14*time.Hour + 30*time.Minute),
	}
	outside := Appointment{
		ID:        uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		DoctorID:  "d1",
		StartTime: day.AddDate(0, 0, 3).Add(9 * time.Hour),
		EndTime:   day.AddDate(0, 0, 3).Add(10 * time.Hour),
	}

	days, err := ProjectCalendar([]Appointment{late, outside, early}, GranularityDay, day)
	if err != nil {
		t.Fatalf("ProjectCalendar error: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("days = %d, want 1", len(days))
	}
	bucket := days[day]
	if len(bucket) != 2 {
		t.Fatalf("bucket size = %d, want 2", len(bucket))
	}
	if bucket[0].ID != early.ID || bucket[1].ID != late.ID {
		t.Fatalf("bucket order = [%s, %s], want earliest first", bucket[0].ID, bucket[1].ID)
	}
}

func TestProjectCalendar_TiesOrderedByID(t *testing.T) {
	day := time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)
	start := day.Add(9 * time.Hour)
	a := Appointment{ID: uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000"), DoctorID: "d1", StartTime: start, EndTime: start.Add(30 * time.Minute)}
	b := Appointment{ID: uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000"), DoctorID: "d1", StartTime: start, EndTime: start.Add(30 * time.Minute)}

	days, err := ProjectCalendar([]Appointment{b, a}, GranularityDay, day)
	if err != nil {
		t.Fatalf("ProjectCalendar error: %v", err)
	}
	bucket := days[day]
	if len(bucket) != 2 || bucket[0].ID != a.ID {
		t.Fatalf("tie broken wrong: %+v", bucket)
	}
}

func TestParseGranularity(t *testing.T) {
	for _, s := range []string{"day", "week", "month"} {
		g, err := ParseGranularity(s)
		if err != nil {
			t.Fatalf("ParseGranularity(%q) error: %v", s, err)
		}
		if string(g) != s {
			t.Fatalf("ParseGranularity(%q) = %q", s, g)
		}
	}
	if _, err := ParseGranularity("year"); err == nil {
		t.Fatalf("expected error for unsupported granularity")
	}
	if _, err := ParseGranularity(""); err == nil {
		t.Fatalf("expected error for empty granularity")
	}
}
