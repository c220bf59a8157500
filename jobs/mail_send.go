package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/bulkmart/fulfillment/internal/jobs"
	"github.com/bulkmart/fulfillment/internal/notify"
)

// Mailer delivers one mail. notify.SMTPMailer implements it.
type Mailer interface {
	Send(ctx context.Context, mail notify.Mail) error
}

// MailJob delivers queued mails.
type MailJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	tracker := j.Metrics.Track(TaskTypeSendEmail)
	defer func() { err = tracker.End(err) }()

	var mail notify.Mail
	if err := json.Unmarshal(t.Payload(), &mail); err != nil {
		return fmt.Errorf("decode mail: %v: %w", err, asynq.SkipRetry)
	}
	if err := j.Mailer.Send(ctx, mail); err != nil {
		if errors.Is(err, notify.ErrInvalidMail) {
			j.logger().Warn("dropping invalid mail", slog.String("to", mail.To), slog.Any("error", err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.logger().Info("mail sent", slog.String("to", mail.To), slog.String("subject", mail.Subject))
	return nil
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
