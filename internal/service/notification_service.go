package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/device-issue-service/internal/config"
	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/events"
	"github.com/spec-kit/device-issue-service/internal/notify"
	"github.com/spec-kit/device-issue-service/internal/observability"
	"github.com/spec-kit/device-issue-service/internal/workflow"
)

// NotificationService turns domain events into email jobs for the next approvers.
type NotificationService struct {
	dispatcher events.Dispatcher
	queue      notify.Queue
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, queue notify.Queue, metrics *observability.Metrics, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		queue:      queue,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventIssueSubmitted, n.handleIssueSubmitted)
	n.dispatcher.Subscribe(events.EventIssueStatusChanged, n.handleIssueStatusChanged)
}

func (n *NotificationService) handleIssueSubmitted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueSubmittedPayload)
	if !ok {
		return nil
	}
	subject := fmt.Sprintf("New issue %s awaits DC review", payload.Reference)
	body := fmt.Sprintf("Device %s reported %q at %s (priority %s).\nIssue id: %s",
		payload.DeviceID, payload.ComplaintType, payload.Location, payload.Priority, event.IssueID)
	n.enqueueFor(ctx, event, []domain.Role{domain.RoleDC}, subject, body)
	return nil
}

func (n *NotificationService) handleIssueStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.IssueStatusChangedPayload)
	if !ok {
		return nil
	}
	next := workflow.NextActors(payload.NewStatus)
	if len(next) == 0 {
		n.logger.Debug("no approver waiting", zap.String("issue_id", event.IssueID), zap.String("status", string(payload.NewStatus)))
		return nil
	}
	subject := fmt.Sprintf("Issue %s is now %s", payload.Reference, payload.NewStatus)
	body := fmt.Sprintf("Issue %s for device %s moved from %q to %q by %s.\nIssue id: %s",
		payload.Reference, payload.DeviceID, payload.OldStatus, payload.NewStatus, event.Actor.Role, event.IssueID)
	if payload.Comment != "" {
		body += "\nComment: " + payload.Comment
	}
	n.enqueueFor(ctx, event, next, subject, body)
	return nil
}

// enqueueFor never fails the caller: a lost notification must not undo an approval.
func (n *NotificationService) enqueueFor(ctx context.Context, event events.Event, roles []domain.Role, subject, body string) {
	if n.queue == nil {
		return
	}
	for _, role := range roles {
		to := strings.TrimSpace(n.cfg.Recipients[role])
		if to == "" {
			continue
		}
		job := notify.Job{
			ID:        uuid.NewString(),
			EventType: string(event.Type),
			IssueID:   event.IssueID,
			To:        to,
			Subject:   subject,
			Body:      body,
			CreatedAt: time.Now().UTC(),
		}
		err := n.queue.Enqueue(ctx, job)
		n.metrics.RecordNotification("enqueue", err)
		if err != nil {
			n.logger.Warn("notification enqueue failed",
				zap.String("issue_id", event.IssueID),
				zap.String("role", string(role)),
				zap.Error(err))
		}
	}
}
