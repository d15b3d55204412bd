package http

import (
	"sort"
	"strings"
	"time"

	"medibook/backend/internal/domain"
)

type slotRuleJSON struct {
	ID       string `json:"id"`
	DoctorID string `json:"doctor_id"`
	Weekday  int    `json:"weekday"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
	Active   bool   `json:"active"`
}

func toWireRule(r domain.SlotRule) slotRuleJSON {
	return slotRuleJSON{
		ID:       r.ID.String(),
		DoctorID: r.DoctorID,
		Weekday:  r.Weekday,
		Start:    domain.FormatMinute(r.StartMinute),
		End:      domain.FormatMinute(r.EndMinute),
		Capacity: r.Capacity,
		Active:   r.Active,
	}
}

type slotJSON struct {
	DoctorID string `json:"doctor_id"`
	Date     string `json:"date"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
}

func toWireSlot(s domain.ConcreteSlot) slotJSON {
	return slotJSON{
		DoctorID: s.DoctorID,
		Date:     s.Date.UTC().Format(domain.DateFormat),
		Start:    domain.FormatMinute(s.StartMinute),
		End:      domain.FormatMinute(s.EndMinute),
		Capacity: s.Capacity,
	}
}

type appointmentJSON struct {
	ID           string    `json:"id"`
	PatientID    string    `json:"patient_id"`
	DoctorID     string    `json:"doctor_id"`
	TreatmentID  string    `json:"treatment_id,omitempty"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Status       string    `json:"status"`
	Diagnosis    string    `json:"diagnosis,omitempty"`
	Prescription string    `json:"prescription,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toWireAppointment(a domain.Appointment) appointmentJSON {
	return appointmentJSON{
		ID:           a.ID.String(),
		PatientID:    a.PatientID,
		DoctorID:     a.DoctorID,
		TreatmentID:  a.TreatmentID,
		StartTime:    a.StartTime.UTC(),
		EndTime:      a.EndTime.UTC(),
		Status:       string(a.Status),
		Diagnosis:    a.Diagnosis,
		Prescription: a.Prescription,
		Notes:        a.Notes,
		CreatedAt:    a.CreatedAt.UTC(),
		UpdatedAt:    a.UpdatedAt.UTC(),
	}
}

type calendarDayJSON struct {
	Date         string            `json:"date"`
	Appointments []appointmentJSON `json:"appointments"`
}

func toWireCalendar(days map[time.Time][]domain.Appointment) []calendarDayJSON {
	out := make([]calendarDayJSON, 0, len(days))
	for date, appts := range days {
		wire := make([]appointmentJSON, 0, len(appts))
		for _, a := range appts {
			wire = append(wire, toWireAppointment(a))
		}
		out = append(out, calendarDayJSON{
			Date:         date.Format(domain.DateFormat),
			Appointments: wire,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// statusFromWire maps a wire status to the canonical vocabulary. The
// older dashboards spoke several dialects ("scheduled", "confirmed",
// American spelling of cancelled); all of them are accepted on input.
// Responses always carry canonical values.
func statusFromWire(s string) (domain.Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "scheduled":
		return domain.StatusPending, true
	case "approved", "confirmed":
		return domain.StatusApproved, true
	case "completed", "done":
		return domain.StatusCompleted, true
	case "cancelled", "canceled":
		return domain.StatusCancelled, true
	case "no_show", "no-show", "noshow":
		return domain.StatusNoShow, true
	}
	return "", false
}

func actorFromWire(s string) (domain.Actor, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "patient":
		return domain.ActorPatient, true
	case "doctor":
		return domain.ActorDoctor, true
	case "admin":
		return domain.ActorAdmin, true
	}
	return "", false
}
