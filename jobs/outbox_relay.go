package jobs

import (
	"context"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bulkmart/fulfillment/internal/jobs"
)

// Relayer publishes due outbox entries. outbox.Relay implements it.
type Relayer interface {
	Run(ctx context.Context) (int, error)
}

// OutboxRelayJob runs the outbox relay on cron ticks and post-commit kicks.
type OutboxRelayJob struct {
	Relay   Relayer
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskOutboxRelay tasks.
func (j *OutboxRelayJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskOutboxRelay)
	defer func() { err = tracker.End(err) }()

	_, err = j.Relay.Run(ctx)
	return err
}
