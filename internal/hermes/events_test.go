package hermes

import (
	"encoding/json"
	"testing"
	"time"
)

func TestNoticeReceivedParsing(t *testing.T) {
	raw := `{
		"source": "ocr-mailroom",
		"text": "APPLICANT: JANE DOE\nDATE: 06/26/2025",
		"received_at": "2025-06-01T10:00:00Z"
	}`

	var evt NoticeReceived
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		t.Fatalf("failed to parse NoticeReceived: %v", err)
	}
	if evt.Source != "ocr-mailroom" {
		t.Errorf("expected source 'ocr-mailroom', got '%s'", evt.Source)
	}
	if evt.Text != "APPLICANT: JANE DOE\nDATE: 06/26/2025" {
		t.Errorf("unexpected text %q", evt.Text)
	}
	if !evt.ReceivedAt.Equal(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected received_at %v", evt.ReceivedAt)
	}
}

func TestHearingReconciledOmitsEmpty(t *testing.T) {
	data, err := json.Marshal(HearingReconciled{Applicant: "Jane Doe", Status: "skipped", SearchMode: "windowed"})
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	for _, key := range []string{"notice_id", "hearing_date", "event_id", "reason"} {
		if _, ok := fields[key]; ok {
			t.Errorf("expected %q to be omitted", key)
		}
	}
	if fields["status"] != "skipped" {
		t.Errorf("expected status skipped, got %v", fields["status"])
	}
}
