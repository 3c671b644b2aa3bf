package hermes

import "time"

const (
	// SubjectNoticeReceived carries raw notice text from upstream OCR or mail intake.
	SubjectNoticeReceived = "legal.notice.received"
	// SubjectHearingReconciled is published after every reconciliation attempt.
	SubjectHearingReconciled = "legal.hearing.reconciled"
	// SubjectHearingAttention is published when an outcome needs human review.
	SubjectHearingAttention = "legal.hearing.attention"

	// QueueGroup spreads notice intake across service instances.
	QueueGroup = "bailiff"
)

// NoticeReceived is the inbound event for a single notice.
type NoticeReceived struct {
	Source     string    `json:"source"`
	Text       string    `json:"text"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// HearingReconciled reports the outcome for one notice.
type HearingReconciled struct {
	NoticeID    string     `json:"notice_id,omitempty"`
	Applicant   string     `json:"applicant"`
	CaseNumbers []string   `json:"case_numbers"`
	HearingDate *time.Time `json:"hearing_date,omitempty"`
	Status      string     `json:"status"`
	EventID     string     `json:"event_id,omitempty"`
	SearchMode  string     `json:"search_mode"`
	ClaimType   string     `json:"claim_type"`
	Reason      string     `json:"reason,omitempty"`
}

// AttentionRaised flags a notice for the needs-attention queue.
type AttentionRaised struct {
	NoticeID    string   `json:"notice_id,omitempty"`
	Applicant   string   `json:"applicant"`
	CaseNumbers []string `json:"case_numbers"`
	Status      string   `json:"status"`
	Reason      string   `json:"reason"`
	Retryable   bool     `json:"retryable"`
}
