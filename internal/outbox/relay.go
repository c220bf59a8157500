package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Claimer hands out due entries exclusively.
type Claimer interface {
	Claim(ctx context.Context, limit int, now time.Time) ([]Entry, error)
}

// Publisher hands an entry to the background worker. Publishing the same entry
// twice must not produce two tasks.
type Publisher interface {
	PublishEntry(ctx context.Context, e Entry) error
}

// Relay moves claimed entries onto the task queue.
type Relay struct {
	claimer   Claimer
	publisher Publisher
	logger    *slog.Logger
	batch     int
	now       func() time.Time
}

// NewRelay constructs a relay that claims up to batch entries per run.
func NewRelay(claimer Claimer, publisher Publisher, logger *slog.Logger, batch int) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if batch <= 0 {
		batch = 100
	}
	return &Relay{claimer: claimer, publisher: publisher, logger: logger, batch: batch, now: time.Now}
}

// Run publishes every due entry once and returns how many were handed over.
// An entry that fails to publish becomes due again when its claim lease expires.
func (r *Relay) Run(ctx context.Context) (int, error) {
	entries, err := r.claimer.Claim(ctx, r.batch, r.now().UTC())
	if err != nil {
		return 0, err
	}
	published := 0
	for _, e := range entries {
		if err := r.publisher.PublishEntry(ctx, e); err != nil {
			r.logger.Warn("outbox publish failed",
				slog.String("lead_id", e.LeadID),
				slog.String("kind", e.Effect),
				slog.String("outbox_id", e.ID.String()),
				slog.Any("error", err))
			continue
		}
		published++
	}
	if published > 0 {
		r.logger.Info("outbox relayed", slog.Int("published", published), slog.Int("claimed", len(entries)))
	}
	return published, nil
}
