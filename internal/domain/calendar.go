package domain

import (
	"errors"
	"sort"
	"time"
)

// Granularity selects the calendar window projected around an anchor date.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityWeek  Granularity = "week"
	GranularityMonth Granularity = "month"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityWeek, GranularityMonth:
		return Granularity(s), nil
	}
	return "", errors.New("granularity must be day, week or month")
}

// CalendarWindow returns the [start, end) date range implied by the
// granularity and anchor. Weeks start on Monday.
func CalendarWindow(g Granularity, anchor time.Time) (time.Time, time.Time, error) {
	day := DateOnly(anchor)
	switch g {
	case GranularityDay:
		return day, day.AddDate(0, 0, 1), nil
	case GranularityWeek:
		monday := mondayDateUTC(day)
		return monday, monday.AddDate(0, 0, 7), nil
	case GranularityMonth:
		first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(0, 1, 0), nil
	}
	return time.Time{}, time.Time{}, errors.New("granularity must be day, week or month")
}

// ProjectCalendar groups appointments by slot date within the window
// implied by granularity and anchor. Every date in the window is present
// in the result, mapped to an empty (non-nil) list when nothing falls on
// it, so rendering never special-cases missing keys. The projection is a
// deterministic function of its inputs: buckets are ordered by start
// time, ties by id.
func ProjectCalendar(appointments []Appointment, g Granularity, anchor time.Time) (map[time.Time][]Appointment, error) {
	start, end, err := CalendarWindow(g, anchor)
	if err != nil {
		return nil, err
	}

	out := make(map[time.Time][]Appointment)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		out[d] = []Appointment{}
	}

	for _, a := range appointments {
		d := DateOnly(a.StartTime)
		if d.Before(start) || !d.Before(end) {
			continue
		}
		out[d] = append(out[d], a)
	}

	for d, bucket := range out {
		sort.Slice(bucket, func(i, j int) bool {
			if !bucket[i].StartTime.Equal(bucket[j].StartTime) {
				return bucket[i].StartTime.Before(bucket[j].StartTime)
			}
			return bucket[i].ID.String() < bucket[j].ID.String()
		})
		out[d] = bucket
	}

	return out, nil
}

func mondayDateUTC(t time.Time) time.Time {
	wd := t.Weekday()
	offset := 0
	if wd == time.Sunday {
		offset = 6
	} else {
		offset = int(wd) - 1
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -offset)
}
