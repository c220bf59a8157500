package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bulkmart/fulfillment/internal/documents"
	jobmetrics "github.com/bulkmart/fulfillment/internal/jobs"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
)

// EntryStore is the outbox persistence used by the processor. outbox.Store implements it.
type EntryStore interface {
	Get(ctx context.Context, id uuid.UUID) (outbox.Entry, error)
	MarkDone(ctx context.Context, id uuid.UUID, now time.Time) error
	MarkRetry(ctx context.Context, e outbox.Entry, cause error, backoff outbox.Backoff, now time.Time) (outbox.Entry, error)
}

// Syncer creates documents. documents.Orchestrator implements it.
type Syncer interface {
	SyncWithPrerequisites(ctx context.Context, leadID string, kind orders.DocumentKind) ([]documents.Result, error)
}

// DocumentSyncJob runs the document pipeline for one outbox entry and records the outcome on it.
type DocumentSyncJob struct {
	Store   EntryStore
	Syncer  Syncer
	Backoff outbox.Backoff
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// Handle processes TaskDocumentsSync tasks. Failures stay on the outbox entry
// and are retried by the relay, never by asynq: a failed task would be archived
// under the entry id and block republishing.
func (j *DocumentSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	err := j.Metrics.Track(TaskDocumentsSync).End(j.process(ctx, t))
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		return err
	}
	j.logger().Error("document sync task failed", slog.Any("error", err))
	return nil
}

func (j *DocumentSyncJob) process(ctx context.Context, t *asynq.Task) error {
	var payload DocumentSyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	entry, err := j.Store.Get(ctx, payload.EntryID)
	if errors.Is(err, outbox.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if entry.Status != outbox.StatusPending {
		return nil
	}

	logger := j.logger().With(
		slog.String("lead_id", entry.LeadID),
		slog.String("kind", entry.Effect),
		slog.String("entry_id", entry.ID.String()),
	)

	results, syncErr := j.sync(ctx, entry)
	now := j.now()
	if syncErr == nil {
		for _, res := range results {
			outcome := "created"
			if res.Skipped {
				outcome = "skipped"
			}
			j.Metrics.AddDocument(string(res.Kind), outcome)
		}
		if err := j.Store.MarkDone(ctx, entry.ID, now); err != nil && !errors.Is(err, outbox.ErrNotFound) {
			return err
		}
		logger.Info("document sync done", slog.Int("documents", len(results)))
		return nil
	}

	updated, err := j.Store.MarkRetry(ctx, entry, syncErr, j.backoff(), now)
	if err != nil && !errors.Is(err, outbox.ErrNotFound) {
		return err
	}
	if updated.Status == outbox.StatusFailed {
		j.Metrics.AddDocument(entry.Effect, "failed")
		logger.Error("document sync gave up", slog.Int("attempts", updated.Attempts), slog.Any("error", syncErr))
		return nil
	}
	j.Metrics.AddDocument(entry.Effect, "retry")
	logger.Warn("document sync failed, will retry",
		slog.Int("attempts", updated.Attempts),
		slog.Time("next_attempt_at", updated.NextAttemptAt),
		slog.Any("error", syncErr))
	return nil
}

func (j *DocumentSyncJob) sync(ctx context.Context, entry outbox.Entry) ([]documents.Result, error) {
	kind, ok := orders.ParseDocumentKind(entry.Effect)
	if !ok {
		return nil, fmt.Errorf("%w: %q", documents.ErrUnknownKind, entry.Effect)
	}
	return j.Syncer.SyncWithPrerequisites(ctx, entry.LeadID, kind)
}

func (j *DocumentSyncJob) backoff() outbox.Backoff {
	if j.Backoff.MaxAttempts <= 0 {
		return outbox.DefaultBackoff
	}
	return j.Backoff
}

func (j *DocumentSyncJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *DocumentSyncJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
