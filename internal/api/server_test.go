package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/processor"
	"github.com/MikeSquared-Agency/bailiff/internal/reconciler"
	"github.com/MikeSquared-Agency/bailiff/internal/store"
)

const sampleNotice = "NOTICE OF HEARING\nAPPLICANT: JANE DOE\nCASE NUMBER: ADJ1234567\n" +
	"DATE: 06/26/2025\nTIME: 08:30 A.M.\nTYPE OF HEARING: STATUS CONFERENCE\n" +
	"LOCATION: WCAB OAKLAND\nSPECIAL COMMENTS: Bring records.\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeNotices struct {
	records   map[uuid.UUID]*store.NoticeRecord
	attention []store.AttentionItem
	limit     int
}

func (f *fakeNotices) GetNotice(_ context.Context, id uuid.UUID) (*store.NoticeRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeNotices) ListAttention(_ context.Context, limit int) ([]store.AttentionItem, error) {
	f.limit = limit
	return f.attention, nil
}

func newTestServer(t *testing.T, token string, notices NoticeReader) (*Server, *calendar.Memory) {
	t.Helper()
	mem := calendar.NewMemory()
	parser := notice.NewDefaultParser(time.UTC, discardLogger())
	rec := reconciler.New(mem, "hearings", time.UTC, discardLogger())
	proc := processor.New(parser, rec, discardLogger())
	return NewServer(8760, token, proc, parser, notices, discardLogger()), mem
}

func do(srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := do(srv, "GET", "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "secret", nil)

	w := do(srv, "GET", "/api/v1/bailiff/status", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["agent"] != "bailiff" {
		t.Errorf("expected agent bailiff, got %v", body["agent"])
	}
	if body["database"] != false {
		t.Errorf("expected database false, got %v", body["database"])
	}
}

func TestNotFoundEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := do(srv, "GET", "/nonexistent", "", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAuth(t *testing.T) {
	srv, _ := newTestServer(t, "secret", nil)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusUnauthorized},
		{"valid", "secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "POST", "/api/v1/classify", tt.token, NoticeRequest{Text: sampleNotice})
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestIngestNotice(t *testing.T) {
	srv, mem := newTestServer(t, "", nil)

	w := do(srv, "POST", "/api/v1/notices", "", NoticeRequest{Text: sampleNotice})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		SearchMode string `json:"search_mode"`
		Outcome    struct {
			Status string `json:"status"`
		} `json:"outcome"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Outcome.Status != "created" || body.SearchMode != "unbounded" {
		t.Errorf("unexpected result %+v", body)
	}
	if mem.Len("hearings") != 1 {
		t.Errorf("expected 1 event, got %d", mem.Len("hearings"))
	}
}

func TestIngestNotice_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty text", NoticeRequest{}, http.StatusBadRequest},
		{"not json", "APPLICANT: X", http.StatusBadRequest},
		{"missing field", NoticeRequest{Text: "APPLICANT: X\nDATE: 06/26/2025\n"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(srv, "POST", "/api/v1/notices", "", tt.body)
			if w.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestParseNotice(t *testing.T) {
	srv, mem := newTestServer(t, "", nil)

	w := do(srv, "POST", "/api/v1/notices/parse", "", NoticeRequest{Text: sampleNotice})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var n notice.HearingNotice
	if err := json.NewDecoder(w.Body).Decode(&n); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if n.ApplicantName != "JANE DOE" || n.Notes != "Bring records." {
		t.Errorf("unexpected notice %+v", n)
	}
	if mem.Len("hearings") != 0 {
		t.Error("parse must not touch the calendar")
	}

	w = do(srv, "POST", "/api/v1/notices/parse", "", NoticeRequest{Text: "DATE: 06/26/2025\nTIME: 08:30 A.M.\n"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["field"] != notice.FieldApplicant {
		t.Errorf("expected missing applicant, got %v", body)
	}
}

func TestClassify(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	w := do(srv, "POST", "/api/v1/classify", "", NoticeRequest{Text: sampleNotice})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]any
	json.NewDecoder(w.Body).Decode(&body)
	if _, ok := body["detected_legal_content"]; !ok {
		t.Errorf("unexpected body %v", body)
	}
}

func TestStoreEndpoints_NoDatabase(t *testing.T) {
	srv, _ := newTestServer(t, "", nil)

	for _, path := range []string{"/api/v1/attention", "/api/v1/notices/" + uuid.NewString()} {
		w := do(srv, "GET", path, "", nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
	}
}

func TestListAttention(t *testing.T) {
	fn := &fakeNotices{attention: []store.AttentionItem{{NoticeID: uuid.New(), ApplicantName: "JOHN ROE", Status: "skipped"}}}
	srv, _ := newTestServer(t, "", fn)

	w := do(srv, "GET", "/api/v1/attention?limit=5000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if fn.limit != maxListLimit {
		t.Errorf("limit = %d, want %d", fn.limit, maxListLimit)
	}
	var body struct {
		Count int `json:"count"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if body.Count != 1 {
		t.Errorf("count = %d", body.Count)
	}

	w = do(srv, "GET", "/api/v1/attention?limit=zero", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestNoticeICS(t *testing.T) {
	parser := notice.NewDefaultParser(time.UTC, discardLogger())
	n, err := parser.Parse(sampleNotice)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	undated := *n
	undated.HearingDate = nil

	id, undatedID := uuid.New(), uuid.New()
	fn := &fakeNotices{records: map[uuid.UUID]*store.NoticeRecord{
		id:        {ID: id, Notice: n, UpdatedAt: time.Now()},
		undatedID: {ID: undatedID, Notice: &undated, UpdatedAt: time.Now()},
	}}
	srv, _ := newTestServer(t, "", fn)

	w := do(srv, "GET", "/api/v1/notices/"+id.String()+"/hearing.ics", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "BEGIN:VEVENT") || !strings.Contains(body, id.String()+"@bailiff") {
		t.Errorf("unexpected calendar body:\n%s", body)
	}

	tests := []struct {
		path string
		want int
	}{
		{"/api/v1/notices/" + undatedID.String() + "/hearing.ics", http.StatusConflict},
		{"/api/v1/notices/" + uuid.NewString() + "/hearing.ics", http.StatusNotFound},
		{"/api/v1/notices/not-a-uuid/hearing.ics", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := do(srv, "GET", tt.path, "", nil); w.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, w.Code)
		}
	}
}
