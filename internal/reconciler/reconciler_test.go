package reconciler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/MikeSquared-Agency/bailiff/internal/calendar"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testLoc = time.FixedZone("PST", -8*60*60)

func hearing(applicant string, at time.Time, notes string, cases ...string) *notice.HearingNotice {
	return &notice.HearingNotice{
		RawText:              "APPLICANT: " + applicant + "\nSPECIAL COMMENTS: " + notes,
		ApplicantName:        applicant,
		HearingDate:          &at,
		HearingStatus:        notice.StatusScheduled,
		Judge:                "HON. R. SMITH",
		CaseNumbers:          cases,
		TypeOfHearing:        "MANDATORY SETTLEMENT CONFERENCE",
		TimeOfHearingRaw:     at.Format("03:04 PM"),
		LocationDetails:      "WCAB ANAHEIM\n1065 N. PACIFICENTER DR",
		Location:             "WCAB ANAHEIM",
		Notes:                notes,
		LengthOfHearingHours: 2,
	}
}

// stubGateway wraps Memory and lets a test intercept individual calls.
type stubGateway struct {
	*calendar.Memory
	calls  int
	find   func() ([]calendar.Event, error)
	create func() (calendar.Event, error)
}

func (s *stubGateway) FindEvents(ctx context.Context, calendarID, query string, w *calendar.TimeWindow) ([]calendar.Event, error) {
	s.calls++
	if s.find != nil {
		return s.find()
	}
	return s.Memory.FindEvents(ctx, calendarID, query, w)
}

func (s *stubGateway) CreateEvent(ctx context.Context, calendarID string, e calendar.Event) (calendar.Event, error) {
	s.calls++
	if s.create != nil {
		return s.create()
	}
	return s.Memory.CreateEvent(ctx, calendarID, e)
}

func TestReconcile_CreateThenSkip(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)
	n := hearing("Jane Doe", at, "Bring medical reports.", "ADJ1234567")

	first := r.Reconcile(ctx, n, SearchUnbounded)
	if first.Status != StatusCreated || first.Event == nil {
		t.Fatalf("first = %+v", first)
	}
	ev := first.Event
	if ev.Summary != "Hearing: Jane Doe (ADJ1234567)" {
		t.Errorf("summary = %q", ev.Summary)
	}
	if !ev.Start.Equal(at) || !ev.End.Equal(at.Add(2*time.Hour)) {
		t.Errorf("start/end = %v / %v", ev.Start, ev.End)
	}
	for _, want := range []string{"Hearing Type: MANDATORY SETTLEMENT CONFERENCE", "Judge: HON. R. SMITH", "WCAB ANAHEIM", "Bring medical reports.", "ORIGINAL NOTICE:"} {
		if !strings.Contains(ev.Description, want) {
			t.Errorf("description missing %q:\n%s", want, ev.Description)
		}
	}
	if ev.Location != "WCAB ANAHEIM, 1065 N. PACIFICENTER DR" {
		t.Errorf("location = %q", ev.Location)
	}

	second := r.Reconcile(ctx, n, SearchWindowed)
	if second.Status != StatusSkipped || second.Event != nil {
		t.Fatalf("second = %+v", second)
	}
	if second.NeedsAttention() {
		t.Error("idempotent skip should not need attention")
	}
	if mem.Len("primary") != 1 {
		t.Errorf("expected 1 event, got %d", mem.Len("primary"))
	}
}

func TestReconcile_RescheduleMergesNotes(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	first := r.Reconcile(ctx, hearing("Jane Doe", at, "Bring medical reports.", "ADJ1234567"), SearchUnbounded)
	if first.Status != StatusCreated {
		t.Fatalf("first = %+v", first)
	}

	moved := at.Add(3 * 24 * time.Hour)
	out := r.Reconcile(ctx, hearing("Jane Doe", moved, "Spanish interpreter required.", "ADJ1234567"), SearchWindowed)
	if out.Status != StatusUpdated || out.Event == nil {
		t.Fatalf("out = %+v", out)
	}
	if out.Event.ID != first.Event.ID {
		t.Errorf("expected same event to be updated")
	}
	if !out.Event.Start.Equal(moved) {
		t.Errorf("start = %v", out.Event.Start)
	}
	if out.PreviousNotes != "Bring medical reports." {
		t.Errorf("previous notes = %q", out.PreviousNotes)
	}

	desc := out.Event.Description
	if !strings.HasPrefix(desc, "MOVED FROM PREVIOUS DATE: 06/26/2025 08:30 AM PST") {
		t.Errorf("description prefix:\n%s", desc)
	}
	if !strings.Contains(desc, "Spanish interpreter required.") || !strings.Contains(desc, "Bring medical reports.") {
		t.Errorf("description lost notes:\n%s", desc)
	}
	if !strings.HasSuffix(out.Event.Summary, "(Rescheduled)") {
		t.Errorf("summary = %q", out.Event.Summary)
	}

	// A second reschedule keeps the full note history and does not stack suffixes.
	again := r.Reconcile(ctx, hearing("Jane Doe", moved.Add(24*time.Hour), "Virtual appearance.", "ADJ1234567"), SearchWindowed)
	if again.Status != StatusUpdated {
		t.Fatalf("again = %+v", again)
	}
	if strings.Count(again.Event.Summary, "(Rescheduled)") != 1 {
		t.Errorf("summary = %q", again.Event.Summary)
	}
	for _, want := range []string{"Virtual appearance.", "Spanish interpreter required.", "Bring medical reports."} {
		if !strings.Contains(again.Event.Description, want) {
			t.Errorf("description missing %q:\n%s", want, again.Event.Description)
		}
	}
	if mem.Len("primary") != 1 {
		t.Errorf("expected 1 event, got %d", mem.Len("primary"))
	}
}

func TestReconcile_SameNotesNotDuplicated(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	r.Reconcile(ctx, hearing("Jane Doe", at, "Bring reports.", "ADJ1"), SearchUnbounded)
	out := r.Reconcile(ctx, hearing("Jane Doe", at.Add(time.Hour), "Bring reports.", "ADJ1"), SearchWindowed)
	if out.Status != StatusUpdated {
		t.Fatalf("out = %+v", out)
	}
	if strings.Contains(out.Event.Description, "PREVIOUS NOTES:") {
		t.Errorf("identical notes should not be repeated:\n%s", out.Event.Description)
	}
}

func TestReconcile_NoDate(t *testing.T) {
	gw := &stubGateway{Memory: calendar.NewMemory()}
	r := New(gw, "primary", testLoc, discardLogger())
	n := hearing("Jane Doe", time.Now(), "", "ADJ1")
	n.HearingDate = nil

	out := r.Reconcile(context.Background(), n, SearchUnbounded)
	if out.Status != StatusSkipped || !errors.Is(out.Err, ErrNoDate) {
		t.Fatalf("out = %+v", out)
	}
	if gw.calls != 0 {
		t.Errorf("gateway called %d times without a date", gw.calls)
	}
	if !out.NeedsAttention() || out.Retryable() {
		t.Errorf("no-date skip should need attention and not be retryable")
	}
}

func TestReconcile_GatewayFailures(t *testing.T) {
	unavailable := &calendar.GatewayError{Op: "find", StatusCode: 503, Kind: calendar.ErrUnavailable}
	rejected := &calendar.GatewayError{Op: "create", StatusCode: 400, Kind: calendar.ErrRejected}

	tests := []struct {
		name string
		gw   *stubGateway
		kind error
	}{
		{"find unavailable", &stubGateway{find: func() ([]calendar.Event, error) { return nil, unavailable }}, calendar.ErrUnavailable},
		{"create rejected", &stubGateway{create: func() (calendar.Event, error) { return calendar.Event{}, rejected }}, calendar.ErrRejected},
		{"find panics", &stubGateway{find: func() ([]calendar.Event, error) { panic("boom") }}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.gw.Memory = calendar.NewMemory()
			r := New(tt.gw, "primary", testLoc, discardLogger())
			n := hearing("Jane Doe", time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc), "", "ADJ1")

			out := r.Reconcile(context.Background(), n, SearchWindowed)
			if out.Status != StatusFailed {
				t.Fatalf("status = %s", out.Status)
			}
			if out.Event != nil {
				t.Error("failed outcome must not carry an event")
			}
			if out.Reason == "" || out.Err == nil {
				t.Errorf("expected reason and error, got %+v", out)
			}
			if tt.kind != nil && !errors.Is(out.Err, tt.kind) {
				t.Errorf("expected %v, got %v", tt.kind, out.Err)
			}
			if !out.NeedsAttention() || !out.Retryable() {
				t.Error("failed outcome should need attention and be retryable")
			}
		})
	}
}

func TestReconcile_Ambiguous(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)
	mem.CreateEvent(ctx, "primary", calendar.Event{Summary: "Hearing: Jane Doe (ADJ1)", Start: at, End: at.Add(time.Hour)})
	mem.CreateEvent(ctx, "primary", calendar.Event{Summary: "Hearing: Jane Doe (ADJ1) depo", Start: at.Add(time.Hour), End: at.Add(2 * time.Hour)})

	r := New(mem, "primary", testLoc, discardLogger())
	out := r.Reconcile(ctx, hearing("Jane Doe", at.Add(48*time.Hour), "", "ADJ1"), SearchWindowed)
	if out.Status != StatusSkipped || !errors.Is(out.Err, ErrAmbiguousMatch) {
		t.Fatalf("out = %+v", out)
	}
	if !strings.Contains(out.Reason, "2 matching events") {
		t.Errorf("reason = %q", out.Reason)
	}
	if !out.NeedsAttention() {
		t.Error("ambiguous skip should need attention")
	}
}

func TestReconcile_CaseNumberFilter(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)
	mem.CreateEvent(ctx, "primary", calendar.Event{Summary: "Hearing: Jane Doe (ADJ999)", Start: at, End: at.Add(time.Hour)})

	r := New(mem, "primary", testLoc, discardLogger())
	out := r.Reconcile(ctx, hearing("Jane Doe", at.Add(time.Hour), "", "ADJ1"), SearchWindowed)
	if out.Status != StatusCreated {
		t.Fatalf("different case number should not match, got %+v", out)
	}
	if mem.Len("primary") != 2 {
		t.Errorf("expected 2 events, got %d", mem.Len("primary"))
	}
}

func TestReconcile_SearchModes(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)
	later := at.AddDate(0, 2, 0)

	t.Run("windowed misses distant event", func(t *testing.T) {
		mem := calendar.NewMemory()
		r := New(mem, "primary", testLoc, discardLogger())
		r.Reconcile(ctx, hearing("Jane Doe", at, "", "ADJ1"), SearchUnbounded)
		out := r.Reconcile(ctx, hearing("Jane Doe", later, "", "ADJ1"), SearchWindowed)
		if out.Status != StatusCreated {
			t.Fatalf("out = %+v", out)
		}
	})

	t.Run("unbounded finds distant event", func(t *testing.T) {
		mem := calendar.NewMemory()
		r := New(mem, "primary", testLoc, discardLogger())
		r.Reconcile(ctx, hearing("Jane Doe", at, "", "ADJ1"), SearchUnbounded)
		out := r.Reconcile(ctx, hearing("Jane Doe", later, "", "ADJ1"), SearchUnbounded)
		if out.Status != StatusUpdated {
			t.Fatalf("out = %+v", out)
		}
	})

	t.Run("wider window option", func(t *testing.T) {
		mem := calendar.NewMemory()
		r := New(mem, "primary", testLoc, discardLogger(), WithSearchWindow(90*24*time.Hour))
		r.Reconcile(ctx, hearing("Jane Doe", at, "", "ADJ1"), SearchUnbounded)
		out := r.Reconcile(ctx, hearing("Jane Doe", later, "", "ADJ1"), SearchWindowed)
		if out.Status != StatusUpdated {
			t.Fatalf("out = %+v", out)
		}
	})
}

func TestReconcile_NoCaseNumbersMatchesApplicant(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	first := r.Reconcile(ctx, hearing("Jane Doe", at, ""), SearchUnbounded)
	if first.Status != StatusCreated || first.Event.Summary != "Hearing: Jane Doe" {
		t.Fatalf("first = %+v", first)
	}
	second := r.Reconcile(ctx, hearing("Jane Doe", at, ""), SearchWindowed)
	if second.Status != StatusSkipped {
		t.Fatalf("second = %+v", second)
	}
}

func TestExtractNotes(t *testing.T) {
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	withNotes := BuildEvent(hearing("Jane Doe", at, "Line one.\nLine two.", "ADJ1"), testLoc)
	if got := ExtractNotes(withNotes.Description); got != "Line one.\nLine two." {
		t.Errorf("notes = %q", got)
	}

	without := BuildEvent(hearing("Jane Doe", at, "", "ADJ1"), testLoc)
	if got := ExtractNotes(without.Description); got != "" {
		t.Errorf("expected empty notes, got %q", got)
	}

	if got := ExtractNotes("  hand-written event\n"); got != "hand-written event" {
		t.Errorf("expected foreign description kept whole, got %q", got)
	}
	if got := ExtractNotes("MOVED FROM PREVIOUS DATE: 06/20/2025\nCall counsel first."); got != "Call counsel first." {
		t.Errorf("expected moved line dropped, got %q", got)
	}
}

func TestReconcile_RescheduleKeepsForeignDescription(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	manual := "Bring interpreter (Spanish). Call opposing counsel first."
	if _, err := mem.CreateEvent(ctx, "primary", calendar.Event{
		Summary:     "Jane Doe MSC ADJ1234567",
		Description: manual,
		Start:       at.Add(-6 * 24 * time.Hour),
		End:         at.Add(-6*24*time.Hour + time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	out := r.Reconcile(ctx, hearing("Jane Doe", at, "Parties appear by video.", "ADJ1234567"), SearchUnbounded)
	if out.Status != StatusUpdated {
		t.Fatalf("out = %+v", out)
	}
	if out.PreviousNotes != manual {
		t.Errorf("previous notes = %q", out.PreviousNotes)
	}
	for _, want := range []string{manual, "Parties appear by video.", "PREVIOUS NOTES:"} {
		if !strings.Contains(out.Event.Description, want) {
			t.Errorf("description missing %q:\n%s", want, out.Event.Description)
		}
	}
}

func TestReconcile_RepeatedRescheduleDoesNotNest(t *testing.T) {
	ctx := context.Background()
	mem := calendar.NewMemory()
	r := New(mem, "primary", testLoc, discardLogger())
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)

	if out := r.Reconcile(ctx, hearing("Jane Doe", at, "A notes", "ADJ1"), SearchUnbounded); out.Status != StatusCreated {
		t.Fatalf("create = %+v", out)
	}

	var last Outcome
	for i := 1; i <= 4; i++ {
		last = r.Reconcile(ctx, hearing("Jane Doe", at.Add(time.Duration(i)*time.Hour), "B notes", "ADJ1"), SearchWindowed)
		if last.Status != StatusUpdated {
			t.Fatalf("reschedule %d = %+v", i, last)
		}
	}

	section, ok := notesSection(last.Event.Description)
	if !ok {
		t.Fatalf("no notes section:\n%s", last.Event.Description)
	}
	if n := strings.Count(section, "B notes"); n != 1 {
		t.Errorf("B notes repeated %d times:\n%s", n, section)
	}
	if n := strings.Count(section, "A notes"); n != 1 {
		t.Errorf("A notes appears %d times:\n%s", n, section)
	}
	if n := strings.Count(section, "PREVIOUS NOTES:"); n != 1 {
		t.Errorf("previous headers = %d:\n%s", n, section)
	}
	if got := noteHistory(last.Event.Description); len(got) != 2 || got[0] != "B notes" || got[1] != "A notes" {
		t.Errorf("history = %q", got)
	}
}

func TestBuildEvent_TruncatesRawText(t *testing.T) {
	at := time.Date(2025, 6, 26, 8, 30, 0, 0, testLoc)
	n := hearing("Jane Doe", at, "", "ADJ1")
	n.RawText = strings.Repeat("é", 800)

	ev := BuildEvent(n, testLoc)
	if strings.Count(ev.Description, "é") != 500 {
		t.Errorf("expected 500-rune excerpt, got %d", strings.Count(ev.Description, "é"))
	}
}

func TestProperty_ReconcileIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		mem := calendar.NewMemory()
		r := New(mem, "primary", testLoc, discardLogger())

		name := rapid.StringMatching(`[A-Z][a-z]{2,8} [A-Z][a-z]{2,10}`).Draw(rt, "name")
		caseNo := rapid.StringMatching(`ADJ[0-9]{7}`).Draw(rt, "case")
		offset := rapid.IntRange(0, 365*24).Draw(rt, "hours")
		at := time.Date(2025, 1, 1, 8, 0, 0, 0, testLoc).Add(time.Duration(offset) * time.Hour)
		n := hearing(name, at, rapid.StringMatching(`[a-z ]{0,40}`).Draw(rt, "notes"), caseNo)

		first := r.Reconcile(ctx, n, SearchUnbounded)
		second := r.Reconcile(ctx, n, SearchWindowed)
		if first.Status != StatusCreated || second.Status != StatusSkipped {
			rt.Fatalf("got %s then %s", first.Status, second.Status)
		}
		if mem.Len("primary") != 1 {
			rt.Fatalf("expected 1 event, got %d", mem.Len("primary"))
		}
	})
}
