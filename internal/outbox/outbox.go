// Package outbox persists document side effects in the same transaction as the
// status change that caused them, and relays them to the background worker.
package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Status is the processing state of an outbox entry.
type Status string

const (
	StatusPending Status = "pending" // Waiting for (another) attempt
	StatusDone    Status = "done"    // Effect applied
	StatusFailed  Status = "failed"  // Attempts exhausted
)

// ErrNotFound is returned when no entry matches.
var ErrNotFound = errors.New("outbox entry not found")

// Entry is one pending unit of document work for an order.
type Entry struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        string     `json:"lead_id"`
	Effect        string     `json:"effect"`
	Status        Status     `json:"status"`
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	LastError     *string    `json:"last_error,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	DoneAt        *time.Time `json:"done_at,omitempty"`
}

// Execer is satisfied by pgx.Tx, pgx.Conn and pgxpool.Pool.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const insertSQL = `
	INSERT INTO order_outbox (id, lead_id, effect, status, attempts, next_attempt_at, created_at)
	VALUES ($1, $2, $3, 'pending', 0, $4, $4)
	ON CONFLICT (lead_id, effect) WHERE status = 'pending' DO NOTHING
`

// Insert writes one pending entry per effect. An effect that already has a pending
// entry for the lead is left alone.
func Insert(ctx context.Context, db Execer, leadID string, effects []string, now time.Time) error {
	for _, effect := range effects {
		if _, err := db.Exec(ctx, insertSQL, uuid.New(), leadID, effect, now); err != nil {
			return err
		}
	}
	return nil
}

// Backoff computes the delay before the next attempt of a failed entry.
type Backoff struct {
	Base        time.Duration
	Cap         time.Duration
	MaxAttempts int
}

// DefaultBackoff doubles from 30s up to 30m over 8 attempts.
var DefaultBackoff = Backoff{Base: 30 * time.Second, Cap: 30 * time.Minute, MaxAttempts: 8}

// Delay returns the wait after the given number of failed attempts.
func (b Backoff) Delay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := b.Base
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= b.Cap {
			return b.Cap
		}
	}
	if d > b.Cap {
		return b.Cap
	}
	return d
}

// Exhausted reports whether no further attempt should be made.
func (b Backoff) Exhausted(attempts int) bool {
	return b.MaxAttempts > 0 && attempts >= b.MaxAttempts
}
