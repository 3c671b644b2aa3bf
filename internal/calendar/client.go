package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the Google Calendar v3 REST root.
const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

const maxSearchResults = 250

// Client is a Gateway backed by a Google-Calendar-v3-shaped REST API.
// It authenticates with a pre-acquired bearer token and never retries.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures Client behavior.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a REST gateway. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL, token string, logger *slog.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type wireTime struct {
	DateTime *time.Time `json:"dateTime,omitempty"`
	Date     string     `json:"date,omitempty"`
}

type wireEvent struct {
	ID          string   `json:"id,omitempty"`
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Status      string   `json:"status,omitempty"`
	Start       wireTime `json:"start"`
	End         wireTime `json:"end"`
}

func toWire(e Event) wireEvent {
	start, end := e.Start, e.End
	return wireEvent{
		Summary:     e.Summary,
		Description: e.Description,
		Location:    e.Location,
		Status:      e.Status,
		Start:       wireTime{DateTime: &start},
		End:         wireTime{DateTime: &end},
	}
}

func (w wireEvent) event() Event {
	return Event{
		ID:          w.ID,
		Summary:     w.Summary,
		Description: w.Description,
		Location:    w.Location,
		Status:      w.Status,
		Start:       w.Start.value(),
		End:         w.End.value(),
	}
}

func (t wireTime) value() time.Time {
	if t.DateTime != nil {
		return *t.DateTime
	}
	if d, err := time.Parse("2006-01-02", t.Date); err == nil {
		return d
	}
	return time.Time{}
}

func (c *Client) eventsURL(calendarID string) string {
	return c.baseURL + "/calendars/" + url.PathEscape(calendarID) + "/events"
}

// FindEvents lists events matching query, excluding cancelled ones.
func (c *Client) FindEvents(ctx context.Context, calendarID, query string, window *TimeWindow) ([]Event, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("showDeleted", "false")
	q.Set("singleEvents", "true")
	q.Set("maxResults", fmt.Sprint(maxSearchResults))
	if window != nil {
		q.Set("timeMin", window.Min.Format(time.RFC3339))
		q.Set("timeMax", window.Max.Format(time.RFC3339))
	}

	var resp struct {
		Items []wireEvent `json:"items"`
	}
	if _, err := c.do(ctx, "find", http.MethodGet, c.eventsURL(calendarID)+"?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Status == StatusCancelled {
			continue
		}
		events = append(events, item.event())
	}
	c.logger.Debug("calendar search", "calendar_id", calendarID, "query", query, "results", len(events))
	return events, nil
}

// CreateEvent inserts e and returns it with the provider-assigned ID.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, e Event) (Event, error) {
	var out wireEvent
	if _, err := c.do(ctx, "create", http.MethodPost, c.eventsURL(calendarID), toWire(e), &out); err != nil {
		return Event{}, err
	}
	return out.event(), nil
}

// UpdateEvent replaces the event with eventID.
func (c *Client) UpdateEvent(ctx context.Context, calendarID, eventID string, e Event) (Event, error) {
	var out wireEvent
	u := c.eventsURL(calendarID) + "/" + url.PathEscape(eventID)
	if _, err := c.do(ctx, "update", http.MethodPut, u, toWire(e), &out); err != nil {
		return Event{}, err
	}
	return out.event(), nil
}

// DeleteEvent removes the event. A 404 or 410 means it was already gone.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) (bool, error) {
	u := c.eventsURL(calendarID) + "/" + url.PathEscape(eventID)
	status, err := c.do(ctx, "delete", http.MethodDelete, u, nil, nil)
	if err != nil {
		if status == http.StatusNotFound || status == http.StatusGone {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// do sends one request and decodes a 2xx JSON body into dest when dest is non-nil.
// It returns the HTTP status (0 on transport failure) alongside any *GatewayError.
func (c *Client) do(ctx context.Context, op, method, u string, payload, dest any) (int, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, &GatewayError{Op: op, Kind: ErrRejected, Err: fmt.Errorf("marshal event: %w", err)}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, &GatewayError{Op: op, Kind: ErrRejected, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &GatewayError{Op: op, Kind: ErrUnavailable, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, &GatewayError{Op: op, StatusCode: resp.StatusCode, Kind: ErrUnavailable, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(respBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		kind := ErrRejected
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = ErrUnavailable
		}
		c.logger.Warn("calendar request failed", "op", op, "status", resp.StatusCode)
		return resp.StatusCode, &GatewayError{Op: op, StatusCode: resp.StatusCode, Kind: kind, Err: errors.New(snippet)}
	}

	if dest != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, dest); err != nil {
			return resp.StatusCode, &GatewayError{Op: op, StatusCode: resp.StatusCode, Kind: ErrUnavailable, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return resp.StatusCode, nil
}
