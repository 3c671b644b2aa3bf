package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Gateway. Deleted events are kept as cancelled so
// searches behave like a provider with showDeleted=false.
type Memory struct {
	mu        sync.Mutex
	calendars map[string]map[string]Event
}

// NewMemory creates an empty in-memory calendar store.
func NewMemory() *Memory {
	return &Memory{calendars: make(map[string]map[string]Event)}
}

// FindEvents matches when every whitespace-separated term of query appears,
// case-insensitively, in the summary, description or location.
func (m *Memory) FindEvents(_ context.Context, calendarID, query string, window *TimeWindow) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	terms := strings.Fields(strings.ToLower(query))
	var out []Event
	for _, e := range m.calendars[calendarID] {
		if e.Status == StatusCancelled || !window.Contains(e) {
			continue
		}
		haystack := strings.ToLower(e.Summary + "\n" + e.Description + "\n" + e.Location)
		if matchesAll(haystack, terms) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func matchesAll(haystack string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(haystack, t) {
			return false
		}
	}
	return true
}

// CreateEvent stores e under a new ID.
func (m *Memory) CreateEvent(_ context.Context, calendarID string, e Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.ID = uuid.New().String()
	if e.Status == "" {
		e.Status = StatusConfirmed
	}
	cal, ok := m.calendars[calendarID]
	if !ok {
		cal = make(map[string]Event)
		m.calendars[calendarID] = cal
	}
	cal[e.ID] = e
	return e, nil
}

// UpdateEvent replaces an existing, non-cancelled event.
func (m *Memory) UpdateEvent(_ context.Context, calendarID, eventID string, e Event) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, ok := m.calendars[calendarID][eventID]
	if !ok || prev.Status == StatusCancelled {
		return Event{}, &GatewayError{Op: "update", StatusCode: 404, Kind: ErrRejected, Err: fmt.Errorf("event %s not found", eventID)}
	}
	e.ID = eventID
	if e.Status == "" {
		e.Status = prev.Status
	}
	m.calendars[calendarID][eventID] = e
	return e, nil
}

// DeleteEvent marks the event cancelled.
func (m *Memory) DeleteEvent(_ context.Context, calendarID, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.calendars[calendarID][eventID]
	if !ok || e.Status == StatusCancelled {
		return false, nil
	}
	e.Status = StatusCancelled
	m.calendars[calendarID][eventID] = e
	return true, nil
}

// Event returns a stored event by ID, including cancelled ones.
func (m *Memory) Event(calendarID, eventID string) (Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.calendars[calendarID][eventID]
	return e, ok
}

// Len returns the number of non-cancelled events in a calendar.
func (m *Memory) Len(calendarID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.calendars[calendarID] {
		if e.Status != StatusCancelled {
			n++
		}
	}
	return n
}
