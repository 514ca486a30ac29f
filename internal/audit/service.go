package audit

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

// Service enqueues audit entries for asynchronous persistence. A nil
// Service drops entries silently so handlers stay nil-safe in tests.
type Service struct {
	client *asynq.Client
}

// NewService constructs a Service around an asynq client.
func NewService(client *asynq.Client) *Service {
	return &Service{client: client}
}

// Record enqueues the entry. Enqueue failures are returned so callers can
// log them; they must never fail the originating request.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	if s == nil || s.client == nil {
		return nil
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	task, err := NewRecordTask(entry)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	return err
}
