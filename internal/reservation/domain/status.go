package domain

import "github.com/smallbiznis/condoledger/pkg/errs"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	default:
		return false
	}
}

// Terminal states accept no further events.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Holds reports whether a reservation in this state occupies its slot.
func (s Status) Holds() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Event string

const (
	EventConfirm  Event = "confirm"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"
)

type transition struct {
	from  Status
	event Event
}

var transitions = map[transition]Status{
	{StatusPending, EventConfirm}:    StatusConfirmed,
	{StatusPending, EventCancel}:     StatusCancelled,
	{StatusConfirmed, EventCancel}:   StatusCancelled,
	{StatusConfirmed, EventComplete}: StatusCompleted,
}

var ErrInvalidTransition = errs.New(errs.KindState, "invalid_transition")

// Next resolves the state reached from current on event.
func Next(current Status, event Event) (Status, error) {
	next, ok := transitions[transition{from: current, event: event}]
	if !ok {
		return "", ErrInvalidTransition
	}
	return next, nil
}
