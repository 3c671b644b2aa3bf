// Package calendar defines the calendar gateway consumed by the reconciler,
// a REST implementation of it, an in-memory implementation and ICS export.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Event status values. Cancelled events are soft-deleted and never returned by FindEvents.
const (
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

var (
	// ErrUnavailable covers transport failures, timeouts, 429 and 5xx responses.
	// Retrying later may succeed.
	ErrUnavailable = errors.New("calendar unavailable")
	// ErrRejected covers any other non-2xx response. Retrying the same request will not help.
	ErrRejected = errors.New("calendar rejected request")
)

// Event is a calendar entry. The reconciler only reads and writes these fields.
type Event struct {
	ID          string    `json:"id,omitempty"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Status      string    `json:"status,omitempty"`
}

// TimeWindow bounds a search to events overlapping [Min, Max).
type TimeWindow struct {
	Min time.Time
	Max time.Time
}

// Around returns a window of d on either side of t.
func Around(t time.Time, d time.Duration) *TimeWindow {
	return &TimeWindow{Min: t.Add(-d), Max: t.Add(d)}
}

// Contains reports whether the event overlaps the window.
func (w *TimeWindow) Contains(e Event) bool {
	if w == nil {
		return true
	}
	end := e.End
	if end.IsZero() {
		end = e.Start
	}
	return e.Start.Before(w.Max) && !end.Before(w.Min)
}

// Gateway is the calendar provider the reconciler talks to. Every method is a
// single request/response; implementations report failures as *GatewayError.
type Gateway interface {
	// FindEvents runs a free-text search, optionally bounded by window.
	// Cancelled events are never returned.
	FindEvents(ctx context.Context, calendarID, query string, window *TimeWindow) ([]Event, error)
	CreateEvent(ctx context.Context, calendarID string, e Event) (Event, error)
	UpdateEvent(ctx context.Context, calendarID, eventID string, e Event) (Event, error)
	// DeleteEvent reports false when the event did not exist.
	DeleteEvent(ctx context.Context, calendarID, eventID string) (bool, error)
}

// GatewayError is the error type returned by gateway implementations.
// Kind is ErrUnavailable or ErrRejected.
type GatewayError struct {
	Op         string
	StatusCode int
	Kind       error
	Err        error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("calendar %s: %v", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is.
func (e *GatewayError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Retryable reports whether err is a failure that may succeed on a later attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
