package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Fingerprint identifies a notice text independent of surrounding whitespace.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

const schema = `
CREATE TABLE IF NOT EXISTS hearing_notices (
	id             UUID PRIMARY KEY,
	fingerprint    TEXT NOT NULL UNIQUE,
	case_key       TEXT NOT NULL,
	source         TEXT NOT NULL DEFAULT '',
	applicant_name TEXT NOT NULL,
	case_numbers   TEXT[] NOT NULL DEFAULT '{}',
	hearing_date   TIMESTAMPTZ,
	raw_text       TEXT NOT NULL,
	notice         JSONB NOT NULL,
	classification JSONB NOT NULL,
	ingest_count   INT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS hearing_notices_case_key_idx ON hearing_notices (case_key);

CREATE TABLE IF NOT EXISTS reconciliations (
	id              UUID PRIMARY KEY,
	notice_id       UUID NOT NULL REFERENCES hearing_notices(id) ON DELETE CASCADE,
	status          TEXT NOT NULL,
	search_mode     TEXT NOT NULL,
	event_id        TEXT NOT NULL DEFAULT '',
	reason          TEXT NOT NULL DEFAULT '',
	error           TEXT NOT NULL DEFAULT '',
	previous_notes  TEXT NOT NULL DEFAULT '',
	needs_attention BOOLEAN NOT NULL DEFAULT false,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS reconciliations_notice_idx ON reconciliations (notice_id, created_at DESC);
`
