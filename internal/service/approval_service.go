package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/events"
	"github.com/spec-kit/device-issue-service/internal/observability"
	"github.com/spec-kit/device-issue-service/internal/repository"
	"github.com/spec-kit/device-issue-service/internal/workflow"
	apperrors "github.com/spec-kit/device-issue-service/pkg/util/errorutil"
)

// ApprovalService applies workflow actions to issues.
type ApprovalService struct {
	issues     repository.IssueRepository
	approvals  repository.ApprovalRepository
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// ApprovalDependencies bundles collaborators for the approval service.
type ApprovalDependencies struct {
	IssueRepo    repository.IssueRepository
	ApprovalRepo repository.ApprovalRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewApprovalService constructs the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		issues:     deps.IssueRepo,
		approvals:  deps.ApprovalRepo,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// ApplyApproval moves the issue along the rule for action. The status check
// and the write happen as one conditional update, so of two racing approvers
// exactly one succeeds.
func (s *ApprovalService) ApplyApproval(ctx context.Context, principal domain.Principal, issueID string, action workflow.Action, comment string) (*domain.Issue, error) {
	rule, ok := workflow.Lookup(action)
	if !ok {
		return nil, apperrors.NewValidationError("undefined approval action", map[string]any{"action": action.String()})
	}
	if principal.Role != rule.Action.Role {
		return nil, apperrors.NewForbidden(action.String() + " requires role " + string(rule.Action.Role))
	}
	if err := checkIssueID(issueID); err != nil {
		s.metrics.RecordTransition(action.String(), observability.OutcomeNotFound)
		return nil, err
	}

	record := &domain.ApprovalRecord{
		Role:     principal.Role,
		Decision: action.Decision,
		ActorID:  principal.SubjectID,
		Comment:  strings.TrimSpace(comment),
	}
	issue, err := s.issues.Transition(ctx, repository.StatusTransition{
		IssueID:  issueID,
		Expected: rule.From,
		Next:     rule.To,
		Record:   record,
	})
	if err != nil {
		return nil, s.transitionError(action, issueID, err)
	}
	s.metrics.RecordTransition(action.String(), observability.OutcomeApplied)

	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: issue.ID,
		Actor:   actorOf(principal),
		Payload: events.IssueStatusChangedPayload{
			Reference: issue.Reference,
			DeviceID:  issue.DeviceID,
			Decision:  action.Decision,
			OldStatus: rule.From,
			NewStatus: rule.To,
			Comment:   record.Comment,
		},
	})
	return issue, nil
}

// History lists the approval records for an issue, oldest first.
func (s *ApprovalService) History(ctx context.Context, issueID string) ([]domain.ApprovalRecord, error) {
	if err := checkIssueID(issueID); err != nil {
		return nil, err
	}
	if _, err := s.issues.GetByID(ctx, issueID); err != nil {
		return nil, storeError(err, issueID)
	}
	records, err := s.approvals.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, apperrors.NewStoreFailure(err)
	}
	return records, nil
}

func (s *ApprovalService) transitionError(action workflow.Action, issueID string, err error) error {
	var mismatch *repository.StatusMismatchError
	switch {
	case errors.As(err, &mismatch):
		s.metrics.RecordTransition(action.String(), observability.OutcomePreconditionFailed)
		precondition := &workflow.PreconditionError{Action: action, Expected: mismatch.Expected, Actual: mismatch.Actual}
		return apperrors.NewPreconditionFailed(precondition.Error(), map[string]any{
			"expected": string(mismatch.Expected),
			"actual":   string(mismatch.Actual),
		})
	case isMissing(err):
		s.metrics.RecordTransition(action.String(), observability.OutcomeNotFound)
		return apperrors.NewNotFound("issue", map[string]any{"id": issueID})
	default:
		s.metrics.RecordTransition(action.String(), observability.OutcomeError)
		s.logger.Error("transition failed", zap.String("issue_id", issueID), zap.Stringer("action", action), zap.Error(err))
		return apperrors.NewStoreFailure(err)
	}
}

func (s *ApprovalService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = time.Now().UTC()
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("issue_id", event.IssueID),
			zap.Error(err))
	}
}
