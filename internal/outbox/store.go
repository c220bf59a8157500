package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store implements outbox persistence using pgxpool.
type Store struct {
	pool  *pgxpool.Pool
	lease time.Duration
}

// NewStore creates a new store. Claimed entries are hidden from other claimers for lease.
func NewStore(pool *pgxpool.Pool, lease time.Duration) *Store {
	if lease <= 0 {
		lease = 2 * time.Minute
	}
	return &Store{pool: pool, lease: lease}
}

const entryColumns = `id, lead_id, effect, status, attempts, next_attempt_at, last_error, created_at, done_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.LeadID, &e.Effect, &e.Status, &e.Attempts, &e.NextAttemptAt, &e.LastError, &e.CreatedAt, &e.DoneAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Claim locks up to limit due pending entries, pushes their next attempt past the
// lease and returns them. Concurrent relays never receive the same entry.
func (s *Store) Claim(ctx context.Context, limit int, now time.Time) ([]Entry, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT `+entryColumns+`
		FROM order_outbox
		WHERE status = 'pending' AND next_attempt_at <= $1
		ORDER BY next_attempt_at, created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, now, limit)
	if err != nil {
		return nil, err
	}
	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if _, err := tx.Exec(ctx, `UPDATE order_outbox SET next_attempt_at = $1 WHERE id = ANY($2)`, now.Add(s.lease), ids); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entries, nil
}

// Get loads one entry.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	return scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM order_outbox WHERE id = $1`, id))
}

// Latest returns the most recent entry for a lead and effect.
func (s *Store) Latest(ctx context.Context, leadID, effect string) (Entry, error) {
	return scanEntry(s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM order_outbox
		WHERE lead_id = $1 AND effect = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, leadID, effect))
}

// Enqueue inserts a pending entry outside any transition, or returns the one already pending.
func (s *Store) Enqueue(ctx context.Context, leadID, effect string, now time.Time) (Entry, error) {
	if err := Insert(ctx, s.pool, leadID, []string{effect}, now); err != nil {
		return Entry{}, fmt.Errorf("insert outbox entry: %w", err)
	}
	return scanEntry(s.pool.QueryRow(ctx, `
		SELECT `+entryColumns+`
		FROM order_outbox
		WHERE lead_id = $1 AND effect = $2 AND status = 'pending'
	`, leadID, effect))
}

// MarkDone completes an entry.
func (s *Store) MarkDone(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE order_outbox SET status = 'done', done_at = $1, last_error = NULL
		WHERE id = $2 AND status = 'pending'
	`, now, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRetry records a failed attempt. The entry becomes failed once the backoff is exhausted.
func (s *Store) MarkRetry(ctx context.Context, e Entry, cause error, backoff Backoff, now time.Time) (Entry, error) {
	e.Attempts++
	msg := cause.Error()
	e.LastError = &msg
	if backoff.Exhausted(e.Attempts) {
		e.Status = StatusFailed
	} else {
		e.NextAttemptAt = now.Add(backoff.Delay(e.Attempts))
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE order_outbox
		SET status = $1, attempts = $2, next_attempt_at = $3, last_error = $4
		WHERE id = $5 AND status = 'pending'
	`, e.Status, e.Attempts, e.NextAttemptAt, e.LastError, e.ID)
	if err != nil {
		return e, err
	}
	if tag.RowsAffected() == 0 {
		return e, ErrNotFound
	}
	return e, nil
}
