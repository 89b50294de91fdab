// Package postgres stores the utterance journal in PostgreSQL.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Record(ctx, entry)
//	recent, _ := store.Recent(ctx, runID, 20)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlUtterances = `
CREATE TABLE IF NOT EXISTS utterances (
    id               BIGSERIAL    PRIMARY KEY,
    run_id           TEXT         NOT NULL,
    seq              INTEGER      NOT NULL,
    source_locale    TEXT         NOT NULL DEFAULT '',
    target_code      TEXT         NOT NULL DEFAULT '',
    voice            TEXT         NOT NULL DEFAULT '',
    transcription    TEXT         NOT NULL,
    translation      TEXT         NOT NULL,
    segment_ns       BIGINT       NOT NULL DEFAULT 0,
    created_at       TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_utterances_run_seq
    ON utterances (run_id, seq);

CREATE INDEX IF NOT EXISTS idx_utterances_created_at
    ON utterances (created_at);
`

// Migrate creates the journal table and its indexes. It is idempotent and
// safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ddlUtterances); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
