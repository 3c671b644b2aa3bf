package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/bailiff/internal/classifier"
	"github.com/MikeSquared-Agency/bailiff/internal/notice"
)

// SavedNotice reports where a notice was stored and whether this is the first
// time its hearing has been seen.
type SavedNotice struct {
	ID uuid.UUID
	// First is true when the text is new and no earlier notice shares its case key.
	First bool
}

// NoticeRecord is a stored notice with its classification.
type NoticeRecord struct {
	ID             uuid.UUID             `json:"id"`
	Source         string                `json:"source"`
	Notice         *notice.HearingNotice `json:"notice"`
	Classification classifier.Result     `json:"classification"`
	IngestCount    int                   `json:"ingest_count"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// SaveNotice upserts a notice keyed by the fingerprint of its raw text.
// Re-ingesting identical text bumps ingest_count and keeps the original ID.
func (s *Store) SaveNotice(ctx context.Context, source string, n *notice.HearingNotice, cls classifier.Result) (SavedNotice, error) {
	noticeJSON, err := json.Marshal(n)
	if err != nil {
		return SavedNotice{}, fmt.Errorf("marshal notice: %w", err)
	}
	clsJSON, err := json.Marshal(cls)
	if err != nil {
		return SavedNotice{}, fmt.Errorf("marshal classification: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return SavedNotice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	caseKey := n.CaseKey()
	var saved SavedNotice
	var inserted bool
	err = tx.QueryRow(ctx, `
		INSERT INTO hearing_notices (id, fingerprint, case_key, source, applicant_name, case_numbers, hearing_date, raw_text, notice, classification)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (fingerprint) DO UPDATE SET
			ingest_count = hearing_notices.ingest_count + 1,
			updated_at = now()
		RETURNING id, (xmax = 0) AS inserted`,
		uuid.New(), Fingerprint(n.RawText), caseKey, source, n.ApplicantName, nonNil(n.CaseNumbers), n.HearingDate,
		n.RawText, string(noticeJSON), string(clsJSON),
	).Scan(&saved.ID, &inserted)
	if err != nil {
		return SavedNotice{}, fmt.Errorf("upsert notice: %w", err)
	}

	if inserted {
		var seen bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM hearing_notices WHERE case_key = $1 AND id <> $2)`,
			caseKey, saved.ID,
		).Scan(&seen)
		if err != nil {
			return SavedNotice{}, fmt.Errorf("check case history: %w", err)
		}
		saved.First = !seen
	}

	if err := tx.Commit(ctx); err != nil {
		return SavedNotice{}, fmt.Errorf("commit: %w", err)
	}
	return saved, nil
}

// GetNotice fetches a stored notice by ID.
func (s *Store) GetNotice(ctx context.Context, id uuid.UUID) (*NoticeRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, source, notice, classification, ingest_count, created_at, updated_at
		FROM hearing_notices WHERE id = $1`, id)

	var rec NoticeRecord
	var noticeJSON, clsJSON []byte
	err := row.Scan(&rec.ID, &rec.Source, &noticeJSON, &clsJSON, &rec.IngestCount, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notice: %w", err)
	}
	if err := json.Unmarshal(noticeJSON, &rec.Notice); err != nil {
		return nil, fmt.Errorf("decode notice: %w", err)
	}
	if err := json.Unmarshal(clsJSON, &rec.Classification); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}
	return &rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
