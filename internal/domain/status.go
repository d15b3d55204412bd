package domain

import (
	"errors"
	"fmt"
)

// Status is the canonical appointment lifecycle state. The portal's older
// dashboards used several loose vocabularies ("scheduled", "confirmed");
// those are mapped to these values at the transport boundary.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Terminal reports whether no further transition is permitted.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// HoldsSlot reports whether an appointment in this status backs a live
// slot reservation. A reservation belongs to exactly one non-terminal
// appointment, so every terminal status is outside this set.
func (s Status) HoldsSlot() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Actor is the role requesting a transition.
type Actor string

const (
	ActorPatient Actor = "patient"
	ActorDoctor  Actor = "doctor"
	ActorAdmin   Actor = "admin"
)

func (a Actor) Valid() bool {
	switch a {
	case ActorPatient, ActorDoctor, ActorAdmin:
		return true
	}
	return false
}

var (
	// ErrAlreadyTerminal rejects any transition out of a terminal status.
	ErrAlreadyTerminal = errors.New("appointment is in a terminal status")
	// ErrActorNotAllowed rejects a legal transition requested by a role
	// that may not perform it.
	ErrActorNotAllowed = errors.New("actor may not perform this transition")
	// ErrIncompleteTreatment rejects completion without both a diagnosis
	// and a prescription.
	ErrIncompleteTreatment = errors.New("completion requires diagnosis and prescription")
)

// TransitionError marks a (from, to) pair outside the legal table.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition %s -> %s is not allowed", e.From, e.To)
}

// Transition is one row of the legal transition table.
type Transition struct {
	From              Status
	To                Status
	Actors            []Actor
	ReleasesSlot      bool
	RequiresTreatment bool
}

// Every transition into a terminal status releases the slot reservation:
// the reservation backs exactly one non-terminal appointment, so leaving
// the non-terminal set frees the capacity unit, completion included.
var transitions = []Transition{
	{From: StatusPending, To: StatusApproved, Actors: []Actor{ActorDoctor, ActorAdmin}},
	{From: StatusPending, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorDoctor, ActorAdmin}, ReleasesSlot: true},
	{From: StatusApproved, To: StatusCancelled, Actors: []Actor{ActorPatient, ActorDoctor, ActorAdmin}, ReleasesSlot: true},
	{From: StatusApproved, To: StatusCompleted, Actors: []Actor{ActorDoctor}, ReleasesSlot: true, RequiresTreatment: true},
	{From: StatusApproved, To: StatusNoShow, Actors: []Actor{ActorDoctor}, ReleasesSlot: true},
	{From: StatusPending, To: StatusNoShow, Actors: []Actor{ActorDoctor}, ReleasesSlot: true},
}

// CheckTransition validates one requested transition against the table.
// Terminal origins fail with ErrAlreadyTerminal before anything else;
// unknown pairs fail with *TransitionError; known pairs requested by the
// wrong role fail with ErrActorNotAllowed.
func CheckTransition(from, to Status, actor Actor) (Transition, error) {
	if from.Terminal() {
		return Transition{}, ErrAlreadyTerminal
	}

	for _, t := range transitions {
		if t.From != from || t.To != to {
			continue
		}
		for _, a := range t.Actors {
			if a == actor {
				return t, nil
			}
		}
		return Transition{}, ErrActorNotAllowed
	}

	return Transition{}, &TransitionError{From: from, To: to}
}
