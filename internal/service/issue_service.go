package service

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/events"
	"github.com/spec-kit/device-issue-service/internal/repository"
	apperrors "github.com/spec-kit/device-issue-service/pkg/util/errorutil"
)

// Roles allowed to use the administrative paths.
var (
	UpdateRoles = []domain.Role{domain.RoleSuperUser, domain.RoleSuperAdmin, domain.RoleRoot}
	DeleteRoles = []domain.Role{domain.RoleSuperAdmin, domain.RoleRoot}
)

// IssueService coordinates issue intake and the administrative paths.
type IssueService struct {
	issues     repository.IssueRepository
	dispatcher events.Dispatcher
	validator  *validator.Validate
	logger     *zap.Logger
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	Dispatcher events.Dispatcher
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// SubmitIssueInput is the intake form.
type SubmitIssueInput struct {
	DeviceID      string `json:"device_id" validate:"required,max=64"`
	ComplaintType string `json:"complaint_type" validate:"required,max=64"`
	Title         string `json:"title" validate:"max=200"`
	Description   string `json:"description" validate:"required,max=4000"`
	Priority      string `json:"priority" validate:"required,oneof=Low Medium High"`
	Location      string `json:"location" validate:"required,max=200"`
	UnderWarranty bool   `json:"under_warranty"`
	Attachment    string `json:"attachment" validate:"max=512"`
}

// UpdateIssueInput overwrites any of the listed fields. Nil fields are untouched.
type UpdateIssueInput struct {
	Status            *string `json:"status"`
	Description       *string `json:"description" validate:"omitempty,max=4000"`
	Priority          *string `json:"priority" validate:"omitempty,oneof=Low Medium High"`
	Location          *string `json:"location" validate:"omitempty,max=200"`
	ResolutionDetails *string `json:"resolution_details" validate:"omitempty,max=4000"`
	AssignedTo        *string `json:"assigned_to" validate:"omitempty,max=128"`
}

// IssueListFilter narrows List. An empty Status lists everything.
type IssueListFilter struct {
	Status string
}

// StatusCount is one tile of the dashboard summary.
type StatusCount struct {
	Status domain.IssueStatus `json:"status"`
	Count  int                `json:"count"`
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}
	validate.RegisterTagNameFunc(jsonFieldName)
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		dispatcher: deps.Dispatcher,
		validator:  validate,
		logger:     logger,
	}
}

// Submit validates the form and stores a new Pending issue.
func (s *IssueService) Submit(ctx context.Context, input SubmitIssueInput) (*domain.Issue, error) {
	input = trimSubmitInput(input)
	if err := s.validator.Struct(input); err != nil {
		return nil, validationError(err)
	}

	issue := &domain.Issue{
		ID:            uuid.NewString(),
		Reference:     generateIssueKey(),
		DeviceID:      input.DeviceID,
		ComplaintType: input.ComplaintType,
		Title:         optional(input.Title),
		Description:   input.Description,
		Priority:      domain.Priority(input.Priority),
		Location:      input.Location,
		UnderWarranty: input.UnderWarranty,
		Attachment:    optional(input.Attachment),
		Status:        domain.IssueStatusPending,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.NewStoreFailure(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueSubmitted,
		IssueID: issue.ID,
		Payload: events.IssueSubmittedPayload{
			Reference:     issue.Reference,
			DeviceID:      issue.DeviceID,
			ComplaintType: issue.ComplaintType,
			Priority:      issue.Priority,
			Location:      issue.Location,
		},
	})
	return issue, nil
}

// List returns issues newest first.
func (s *IssueService) List(ctx context.Context, filter IssueListFilter) ([]domain.Issue, error) {
	repoFilter := repository.IssueFilter{}
	if raw := strings.TrimSpace(filter.Status); raw != "" {
		status, err := parseStatus(raw)
		if err != nil {
			return nil, err
		}
		repoFilter.Status = &status
	}
	issues, err := s.issues.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.NewStoreFailure(err)
	}
	return issues, nil
}

// Get fetches one issue.
func (s *IssueService) Get(ctx context.Context, id string) (*domain.Issue, error) {
	if err := checkIssueID(id); err != nil {
		return nil, err
	}
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	return issue, nil
}

// Update is the privileged bypass: it writes the given fields with no
// predecessor check and no approval record.
func (s *IssueService) Update(ctx context.Context, principal domain.Principal, id string, input UpdateIssueInput) (*domain.Issue, error) {
	if err := requireRole(principal, UpdateRoles...); err != nil {
		return nil, err
	}
	patch, fields, err := s.buildPatch(input)
	if err != nil {
		return nil, err
	}
	if err := checkIssueID(id); err != nil {
		return nil, err
	}

	current, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, storeError(err, id)
	}
	updated, err := s.issues.Update(ctx, id, patch)
	if err != nil {
		return nil, storeError(err, id)
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueUpdated,
		IssueID: id,
		Actor:   actorOf(principal),
		Payload: events.IssueUpdatedPayload{
			OldStatus: current.Status,
			NewStatus: updated.Status,
			Fields:    fields,
		},
	})
	return updated, nil
}

// Delete removes an issue and its approval history.
func (s *IssueService) Delete(ctx context.Context, principal domain.Principal, id string) error {
	if err := requireRole(principal, DeleteRoles...); err != nil {
		return err
	}
	if err := checkIssueID(id); err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, id); err != nil {
		return storeError(err, id)
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueDeleted,
		IssueID: id,
		Actor:   actorOf(principal),
	})
	return nil
}

// CountByStatus counts issues currently carrying status.
func (s *IssueService) CountByStatus(ctx context.Context, raw string) (int, error) {
	status, err := parseStatus(raw)
	if err != nil {
		return 0, err
	}
	count, err := s.issues.CountByStatus(ctx, status)
	if err != nil {
		return 0, apperrors.NewStoreFailure(err)
	}
	return count, nil
}

// Summary reports a count for every known status, zeros included.
func (s *IssueService) Summary(ctx context.Context) ([]StatusCount, error) {
	grouped, err := s.issues.CountGroupedByStatus(ctx)
	if err != nil {
		return nil, apperrors.NewStoreFailure(err)
	}
	statuses := domain.IssueStatuses()
	out := make([]StatusCount, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, StatusCount{Status: status, Count: grouped[status]})
	}
	return out, nil
}

func (s *IssueService) buildPatch(input UpdateIssueInput) (domain.IssuePatch, []string, error) {
	var patch domain.IssuePatch
	if err := s.validator.Struct(input); err != nil {
		return patch, nil, validationError(err)
	}

	var fields []string
	if input.Status != nil {
		status, err := parseStatus(*input.Status)
		if err != nil {
			return patch, nil, err
		}
		patch.Status = &status
		fields = append(fields, "status")
	}
	if input.Description != nil {
		patch.Description = input.Description
		fields = append(fields, "description")
	}
	if input.Priority != nil {
		priority := domain.Priority(*input.Priority)
		patch.Priority = &priority
		fields = append(fields, "priority")
	}
	if input.Location != nil {
		patch.Location = input.Location
		fields = append(fields, "location")
	}
	if input.ResolutionDetails != nil {
		patch.ResolutionDetails = input.ResolutionDetails
		fields = append(fields, "resolution_details")
	}
	if input.AssignedTo != nil {
		patch.AssignedTo = input.AssignedTo
		fields = append(fields, "assigned_to")
	}
	if patch.Empty() {
		return patch, nil, apperrors.NewValidationError("no fields provided to update", nil)
	}
	return patch, fields, nil
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("issue_id", event.IssueID),
			zap.Error(err))
	}
}

func trimSubmitInput(in SubmitIssueInput) SubmitIssueInput {
	in.DeviceID = strings.TrimSpace(in.DeviceID)
	in.ComplaintType = strings.TrimSpace(in.ComplaintType)
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Priority = strings.TrimSpace(in.Priority)
	in.Location = strings.TrimSpace(in.Location)
	in.Attachment = strings.TrimSpace(in.Attachment)
	return in
}

func parseStatus(raw string) (domain.IssueStatus, error) {
	status, err := domain.ParseIssueStatus(raw)
	if err != nil {
		return "", apperrors.NewValidationError("unknown status label", map[string]any{"status": raw})
	}
	return status, nil
}

// jsonFieldName reports validation failures under the request field name.
func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid payload", details)
}

// checkIssueID rejects ids that cannot name a stored issue. Issue ids are
// UUIDs, so anything else is reported as missing without a store round trip.
func checkIssueID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperrors.NewNotFound("issue", map[string]any{"id": id})
	}
	return nil
}

// invalidTextRepresentation is raised by Postgres when a value does not parse
// as the column type, e.g. a malformed UUID.
const invalidTextRepresentation = "22P02"

func isMissing(err error) bool {
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

// storeError maps a repository error for the issue id onto the API vocabulary.
func storeError(err error, id string) error {
	if isMissing(err) {
		return apperrors.NewNotFound("issue", map[string]any{"id": id})
	}
	return apperrors.NewStoreFailure(err)
}

func requireRole(principal domain.Principal, allowed ...domain.Role) error {
	for _, role := range allowed {
		if principal.Role == role {
			return nil
		}
	}
	return apperrors.NewForbidden("role " + string(principal.Role) + " may not perform this operation")
}

func actorOf(principal domain.Principal) events.Actor {
	return events.Actor{SubjectID: principal.SubjectID, Role: principal.Role}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func generateIssueKey() string {
	return "ISS-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
