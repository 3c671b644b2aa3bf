package reconciler

import (
	"errors"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
)

// Status is the kind of a reconciliation outcome.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

var (
	// ErrNoDate means the notice has no usable hearing date. Not retryable until the record is corrected.
	ErrNoDate = errors.New("no hearing date")
	// ErrAmbiguousMatch means more than one calendar event matched the notice.
	ErrAmbiguousMatch = errors.New("ambiguous calendar match")
)

// Outcome is the result of reconciling one notice. Event is set only for
// Created and Updated, and only when the gateway mutation succeeded.
type Outcome struct {
	Status        Status          `json:"status"`
	Event         *calendar.Event `json:"event,omitempty"`
	PreviousNotes string          `json:"previous_notes,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	Err           error           `json:"-"`
}

// NeedsAttention reports whether a human should look at this outcome.
// An idempotent skip (event already at the right time) does not.
func (o Outcome) NeedsAttention() bool {
	switch o.Status {
	case StatusFailed:
		return true
	case StatusSkipped:
		return o.Err != nil
	default:
		return false
	}
}

// Retryable reports whether re-running reconciliation could change the outcome
// without the notice being corrected first.
func (o Outcome) Retryable() bool {
	return o.Status == StatusFailed
}

func created(e calendar.Event) Outcome {
	return Outcome{Status: StatusCreated, Event: &e}
}

func updated(e calendar.Event, previousNotes string) Outcome {
	return Outcome{Status: StatusUpdated, Event: &e, PreviousNotes: previousNotes}
}

func skipped(reason string, err error) Outcome {
	return Outcome{Status: StatusSkipped, Reason: reason, Err: err}
}

func failed(reason string, err error) Outcome {
	return Outcome{Status: StatusFailed, Reason: reason, Err: err}
}
