package jobs

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqScheduler struct {
	client   Enqueuer
	queue    string
	maxRetry int
}

func NewAsynqScheduler(client Enqueuer, queue string, maxRetry int) *AsynqScheduler {
	return &AsynqScheduler{client: client, queue: queue, maxRetry: maxRetry}
}

var _ Scheduler = (*AsynqScheduler)(nil)

func (s *AsynqScheduler) Enqueue(ctx context.Context, job Job) error {
	task, opts, err := s.task(job)
	if err != nil {
		return err
	}
	_, err = s.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Already queued under the same id.
		return nil
	}
	return err
}

func (s *AsynqScheduler) task(job Job) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(job.Payload)
	if err != nil {
		return nil, nil, err
	}

	var opts []asynq.Option
	if s.queue != "" {
		opts = append(opts, asynq.Queue(s.queue))
	}
	if s.maxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(s.maxRetry))
	}
	if !job.ProcessAt.IsZero() {
		opts = append(opts, asynq.ProcessAt(job.ProcessAt))
	}
	if job.TaskID != "" {
		opts = append(opts, asynq.TaskID(job.TaskID))
	}
	return asynq.NewTask(string(job.Kind), b), opts, nil
}
