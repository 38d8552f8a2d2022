package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/device-issue-service/internal/notify"
	"github.com/spec-kit/device-issue-service/internal/observability"
)

// NotificationWorker drains the notification queue into a sender.
type NotificationWorker struct {
	queue   notify.Queue
	sender  notify.Sender
	metrics *observability.Metrics
	logger  *zap.Logger
	poll    time.Duration
	backoff time.Duration
}

// NewNotificationWorker builds a worker. poll bounds each blocking dequeue.
func NewNotificationWorker(queue notify.Queue, sender notify.Sender, metrics *observability.Metrics, logger *zap.Logger, poll time.Duration) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &NotificationWorker{
		queue:   queue,
		sender:  sender,
		metrics: metrics,
		logger:  logger,
		poll:    poll,
		backoff: time.Second,
	}
}

// Run processes jobs until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started")
	defer w.logger.Info("notification worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		job, err := w.queue.Dequeue(ctx, w.poll)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue notification failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		w.deliver(ctx, *job)
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, job notify.Job) {
	err := w.sender.Send(ctx, job)
	w.metrics.RecordNotification("send", err)
	if err != nil {
		w.logger.Warn("send notification failed",
			zap.String("job_id", job.ID),
			zap.String("issue_id", job.IssueID),
			zap.String("to", job.To),
			zap.Error(err))
		return
	}
	w.logger.Debug("notification sent", zap.String("job_id", job.ID), zap.String("to", job.To))
}

// StartNotificationWorker runs the worker in its own goroutine and returns a
// channel closed once it has stopped.
func StartNotificationWorker(ctx context.Context, w *NotificationWorker) <-chan struct{} {
	done := make(chan struct{})
	if w == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	return done
}
