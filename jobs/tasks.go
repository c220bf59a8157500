package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/bulkmart/fulfillment/internal/notify"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending transactional emails.
	TaskTypeSendEmail = "mail:send"
	// TaskDocumentsSync processes one outbox entry.
	TaskDocumentsSync = "documents:sync"
	// TaskOutboxRelay publishes due outbox entries.
	TaskOutboxRelay = "outbox:relay"
)

// DocumentSyncPayload identifies the outbox entry to process.
type DocumentSyncPayload struct {
	EntryID uuid.UUID `json:"entry_id"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(mail notify.Mail) (*asynq.Task, error) {
	data, err := json.Marshal(mail)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// NewDocumentSyncTask constructs the processing task of an outbox entry.
func NewDocumentSyncTask(entryID uuid.UUID) (*asynq.Task, error) {
	data, err := json.Marshal(DocumentSyncPayload{EntryID: entryID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDocumentsSync, data, asynq.MaxRetry(0)), nil
}

// NewOutboxRelayTask constructs the relay task used by cron and post-commit kicks.
func NewOutboxRelayTask() *asynq.Task {
	return asynq.NewTask(TaskOutboxRelay, nil, asynq.MaxRetry(0))
}
