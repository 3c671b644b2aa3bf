// Package reconciler decides whether a parsed hearing notice creates,
// reschedules or leaves alone an event on an external calendar.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
)

// DefaultSearchWindow is applied on either side of the hearing date.
const DefaultSearchWindow = 7 * 24 * time.Hour

// SearchMode selects how broadly existing events are searched.
type SearchMode int

const (
	// SearchWindowed limits the search to the window around the hearing date.
	SearchWindowed SearchMode = iota
	// SearchUnbounded runs a plain text search. Used on the first ingestion of
	// a notice, when the previous date is unknown.
	SearchUnbounded
)

func (m SearchMode) String() string {
	if m == SearchUnbounded {
		return "unbounded"
	}
	return "windowed"
}

func (m SearchMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Reconciler matches notices against one calendar.
// It holds no state between calls; callers must serialize reconciliation of
// the same applicant and case numbers.
type Reconciler struct {
	gateway    calendar.Gateway
	calendarID string
	loc        *time.Location
	window     time.Duration
	logger     *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSearchWindow overrides DefaultSearchWindow.
func WithSearchWindow(d time.Duration) Option {
	return func(r *Reconciler) {
		if d > 0 {
			r.window = d
		}
	}
}

// New creates a Reconciler for calendarID. Event times are rendered in loc.
func New(gw calendar.Gateway, calendarID string, loc *time.Location, logger *slog.Logger, opts ...Option) *Reconciler {
	if loc == nil {
		loc = time.Local
	}
	r := &Reconciler{
		gateway:    gw,
		calendarID: calendarID,
		loc:        loc,
		window:     DefaultSearchWindow,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reconcile searches for an existing event and creates, updates or skips.
// It never panics and never returns an error: gateway failures become a Failed outcome.
func (r *Reconciler) Reconcile(ctx context.Context, n *notice.HearingNotice, mode SearchMode) (out Outcome) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("gateway panic: %v", p)
			r.logger.Error("reconcile panicked", "panic", p)
			out = failed(err.Error(), err)
		}
	}()

	if n == nil || n.HearingDate == nil {
		return skipped("no date", ErrNoDate)
	}
	start := n.HearingDate.In(r.loc)

	var window *calendar.TimeWindow
	if mode == SearchWindowed {
		window = calendar.Around(start, r.window)
	}

	events, err := r.gateway.FindEvents(ctx, r.calendarID, n.ApplicantName, window)
	if err != nil {
		return r.fail(n, "search", err)
	}
	matches := filterMatches(events, n)

	switch len(matches) {
	case 0:
		ev, err := r.gateway.CreateEvent(ctx, r.calendarID, BuildEvent(n, r.loc))
		if err != nil {
			return r.fail(n, "create", err)
		}
		r.logger.Info("hearing event created", "applicant", n.ApplicantName, "event_id", ev.ID, "start", start, "search", mode.String())
		return created(ev)

	case 1:
		prior := matches[0]
		if prior.Start.Equal(start) {
			r.logger.Debug("hearing already scheduled", "applicant", n.ApplicantName, "event_id", prior.ID)
			return skipped("event already scheduled at this time", nil)
		}
		next, previousNotes := rescheduledEvent(n, prior, r.loc)
		ev, err := r.gateway.UpdateEvent(ctx, r.calendarID, prior.ID, next)
		if err != nil {
			return r.fail(n, "update", err)
		}
		r.logger.Info("hearing event rescheduled",
			"applicant", n.ApplicantName,
			"event_id", ev.ID,
			"from", prior.Start,
			"to", start,
		)
		return updated(ev, previousNotes)

	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		r.logger.Warn("ambiguous calendar match", "applicant", n.ApplicantName, "event_ids", ids)
		return skipped(fmt.Sprintf("%d matching events: %s", len(matches), strings.Join(ids, ", ")), ErrAmbiguousMatch)
	}
}

func (r *Reconciler) fail(n *notice.HearingNotice, op string, err error) Outcome {
	r.logger.Warn("calendar gateway failed", "op", op, "applicant", n.ApplicantName, "error", err)
	return failed(fmt.Sprintf("%s: %v", op, err), err)
}

// filterMatches keeps events whose summary or description mentions one of the
// notice's case numbers, or the applicant name when there are none.
func filterMatches(events []calendar.Event, n *notice.HearingNotice) []calendar.Event {
	var needles []string
	for _, c := range n.CaseNumbers {
		needles = append(needles, strings.ToLower(c))
	}
	if len(needles) == 0 {
		needles = []string{strings.ToLower(n.ApplicantName)}
	}

	var out []calendar.Event
	for _, e := range events {
		if e.Status == calendar.StatusCancelled {
			continue
		}
		haystack := strings.ToLower(e.Summary + "\n" + e.Description)
		for _, needle := range needles {
			if needle != "" && strings.Contains(haystack, needle) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}
