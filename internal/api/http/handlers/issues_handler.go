package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/device-issue-service/internal/api/dto"
	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/service"
	"github.com/spec-kit/device-issue-service/internal/workflow"
	apperrors "github.com/spec-kit/device-issue-service/pkg/util/errorutil"
)

// IssuesHandler serves intake, reads and the administrative paths.
type IssuesHandler struct {
	service *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{service: issueService}
}

// Submit POST /api/issues.
func (h *IssuesHandler) Submit(c *fiber.Ctx) error {
	var req dto.SubmitIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.submit(c, req)
}

// SubmitForm POST /api/issues/submit. Accepts the clerk form field names as
// well as the snake_case ones.
func (h *IssuesHandler) SubmitForm(c *fiber.Ctx) error {
	var req dto.SubmitIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	var clerk dto.ClerkSubmitRequest
	if err := c.BodyParser(&clerk); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return h.submit(c, req.WithClerkFields(clerk))
}

func (h *IssuesHandler) submit(c *fiber.Ctx, req dto.SubmitIssueRequest) error {
	issue, err := h.service.Submit(c.UserContext(), service.SubmitIssueInput{
		DeviceID:      req.DeviceID,
		ComplaintType: req.ComplaintType,
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		Location:      req.Location,
		UnderWarranty: req.UnderWarranty,
		Attachment:    req.Attachment,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": issueResponse(issue)})
}

// List GET /api/issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	issues, err := h.service.List(c.UserContext(), service.IssueListFilter{Status: c.Query("status")})
	if err != nil {
		return err
	}
	items := make([]dto.IssueResponse, 0, len(issues))
	for i := range issues {
		items = append(items, issueResponse(&issues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /api/issues/:id.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	issue, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// Update PATCH /api/issues/:id.
func (h *IssuesHandler) Update(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.UpdateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	issue, err := h.service.Update(c.UserContext(), *principal, c.Params("id"), service.UpdateIssueInput{
		Status:            req.Status,
		Description:       req.Description,
		Priority:          req.Priority,
		Location:          req.Location,
		ResolutionDetails: req.ResolutionDetails,
		AssignedTo:        req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": issueResponse(issue)})
}

// Delete DELETE /api/issues/:id.
func (h *IssuesHandler) Delete(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.service.Delete(c.UserContext(), *principal, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Count GET /api/issues/count?status=.
func (h *IssuesHandler) Count(c *fiber.Ctx) error {
	raw := c.Query("status")
	if raw == "" {
		return apperrors.NewValidationError("status query parameter required", nil)
	}
	count, err := h.service.CountByStatus(c.UserContext(), raw)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.CountResponse{Status: domain.IssueStatus(raw), Count: count}})
}

// Summary GET /api/issues/summary.
func (h *IssuesHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func issueResponse(issue *domain.Issue) dto.IssueResponse {
	actors := workflow.NextActors(issue.Status)
	next := make([]string, 0, len(actors))
	for _, role := range actors {
		next = append(next, string(role))
	}
	return dto.IssueResponse{
		ID:                issue.ID,
		Reference:         issue.Reference,
		DeviceID:          issue.DeviceID,
		ComplaintType:     issue.ComplaintType,
		Title:             issue.Title,
		Description:       issue.Description,
		Priority:          issue.Priority,
		Location:          issue.Location,
		UnderWarranty:     issue.UnderWarranty,
		Attachment:        issue.Attachment,
		AssignedTo:        issue.AssignedTo,
		ResolutionDetails: issue.ResolutionDetails,
		Status:            issue.Status,
		NextActors:        next,
		SubmittedAt:       issue.SubmittedAt,
		UpdatedAt:         issue.UpdatedAt,
	}
}
