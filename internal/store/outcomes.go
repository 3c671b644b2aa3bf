package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/bailiff/internal/notice"
	"github.com/MikeSquared-Agency/bailiff/internal/reconciler"
)

// AttentionItem is the latest outcome of a notice that needs a human.
type AttentionItem struct {
	ReconciliationID uuid.UUID  `json:"reconciliation_id"`
	NoticeID         uuid.UUID  `json:"notice_id"`
	ApplicantName    string     `json:"applicant_name"`
	CaseNumbers      []string   `json:"case_numbers"`
	HearingDate      *time.Time `json:"hearing_date,omitempty"`
	Status           string     `json:"status"`
	Reason           string     `json:"reason"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// RetryCandidate is a notice whose latest reconciliation failed.
type RetryCandidate struct {
	NoticeID uuid.UUID
	Notice   *notice.HearingNotice
	Mode     reconciler.SearchMode
}

// SaveOutcome appends a reconciliation result for a notice.
func (s *Store) SaveOutcome(ctx context.Context, noticeID uuid.UUID, mode reconciler.SearchMode, out reconciler.Outcome) (uuid.UUID, error) {
	var eventID, errText string
	if out.Event != nil {
		eventID = out.Event.ID
	}
	if out.Err != nil {
		errText = out.Err.Error()
	}

	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO reconciliations (id, notice_id, status, search_mode, event_id, reason, error, previous_notes, needs_attention)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, noticeID, string(out.Status), mode.String(), eventID, out.Reason, errText, out.PreviousNotes, out.NeedsAttention(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert reconciliation: %w", err)
	}
	return id, nil
}

// latestOutcomes selects the most recent reconciliation per notice.
const latestOutcomes = `
	SELECT DISTINCT ON (r.notice_id)
		r.id, r.notice_id, r.status, r.search_mode, r.reason, r.error, r.needs_attention, r.created_at,
		n.applicant_name, n.case_numbers, n.hearing_date, n.notice
	FROM reconciliations r
	JOIN hearing_notices n ON n.id = r.notice_id
	ORDER BY r.notice_id, r.created_at DESC`

// ListAttention returns notices whose latest outcome was a failure or a skip
// that needs review, newest first.
func (s *Store) ListAttention(ctx context.Context, limit int) ([]AttentionItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, notice_id, applicant_name, case_numbers, hearing_date, status, reason, error, created_at
		FROM (`+latestOutcomes+`) latest
		WHERE needs_attention
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attention: %w", err)
	}
	defer rows.Close()

	var items []AttentionItem
	for rows.Next() {
		var it AttentionItem
		if err := rows.Scan(&it.ReconciliationID, &it.NoticeID, &it.ApplicantName, &it.CaseNumbers, &it.HearingDate,
			&it.Status, &it.Reason, &it.Error, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attention row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attention rows: %w", err)
	}
	return items, nil
}

// ListRetryable returns notices whose latest outcome is Failed and still needs
// attention, oldest first. A resolved failure is not retried.
func (s *Store) ListRetryable(ctx context.Context, limit int) ([]RetryCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT notice_id, search_mode, notice
		FROM (`+latestOutcomes+`) latest
		WHERE status = $1 AND needs_attention
		ORDER BY created_at ASC
		LIMIT $2`, string(reconciler.StatusFailed), limit)
	if err != nil {
		return nil, fmt.Errorf("query retryable: %w", err)
	}
	defer rows.Close()

	var out []RetryCandidate
	for rows.Next() {
		var c RetryCandidate
		var mode string
		var noticeJSON []byte
		if err := rows.Scan(&c.NoticeID, &mode, &noticeJSON); err != nil {
			return nil, fmt.Errorf("scan retryable row: %w", err)
		}
		if err := json.Unmarshal(noticeJSON, &c.Notice); err != nil {
			return nil, fmt.Errorf("decode notice %s: %w", c.NoticeID, err)
		}
		c.Mode = reconciler.SearchWindowed
		if mode == reconciler.SearchUnbounded.String() {
			c.Mode = reconciler.SearchUnbounded
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retryable rows: %w", err)
	}
	return out, nil
}

// ResolveAttention clears the needs-attention flag on every outcome of a notice.
func (s *Store) ResolveAttention(ctx context.Context, noticeID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE reconciliations SET needs_attention = false WHERE notice_id = $1 AND needs_attention`,
		noticeID,
	)
	if err != nil {
		return fmt.Errorf("resolve attention: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
