package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/relayvox/pkg/journal"
)

var (
	_ journal.Writer = (*Store)(nil)
	_ journal.Reader = (*Store)(nil)
)

// Store is the PostgreSQL journal. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn, pings the server and runs [Migrate].
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks the connection; the readiness probe uses it.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all pooled connections.
func (s *Store) Close() {
	s.pool.Close()
}

// Record implements [journal.Writer]. A zero CreatedAt is stored as now().
func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	const q = `
		INSERT INTO utterances
		    (run_id, seq, source_locale, target_code, voice, transcription, translation, segment_ns, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))`

	var created *time.Time
	if !e.CreatedAt.IsZero() {
		created = &e.CreatedAt
	}
	_, err := s.pool.Exec(ctx, q,
		e.RunID,
		e.Seq,
		e.SourceLocale,
		e.TargetCode,
		e.Voice,
		e.Transcription,
		e.Translation,
		e.SegmentDuration.Nanoseconds(),
		created,
	)
	if err != nil {
		return fmt.Errorf("journal: record: %w", err)
	}
	return nil
}

// Recent implements [journal.Reader]. Entries come back oldest first.
func (s *Store) Recent(ctx context.Context, runID string, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
		SELECT run_id, seq, source_locale, target_code, voice, transcription, translation, segment_ns, created_at
		FROM (
		    SELECT *
		    FROM   utterances
		    WHERE  $1 = '' OR run_id = $1
		    ORDER  BY created_at DESC, id DESC
		    LIMIT  $2
		) recent
		ORDER  BY created_at, id`

	rows, err := s.pool.Query(ctx, q, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]journal.Entry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Entry, error) {
		var (
			e         journal.Entry
			segmentNS int64
		)
		if err := row.Scan(
			&e.RunID,
			&e.Seq,
			&e.SourceLocale,
			&e.TargetCode,
			&e.Voice,
			&e.Transcription,
			&e.Translation,
			&segmentNS,
			&e.CreatedAt,
		); err != nil {
			return journal.Entry{}, err
		}
		e.SegmentDuration = time.Duration(segmentNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("journal: scan rows: %w", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}
