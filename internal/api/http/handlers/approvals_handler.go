package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/device-issue-service/internal/api/dto"
	"github.com/spec-kit/device-issue-service/internal/auth"
	"github.com/spec-kit/device-issue-service/internal/domain"
	"github.com/spec-kit/device-issue-service/internal/service"
	"github.com/spec-kit/device-issue-service/internal/workflow"
	apperrors "github.com/spec-kit/device-issue-service/pkg/util/errorutil"
)

// ApprovalsHandler exposes the workflow actions and their audit trail.
type ApprovalsHandler struct {
	service *service.ApprovalService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(approvalService *service.ApprovalService) *ApprovalsHandler {
	return &ApprovalsHandler{service: approvalService}
}

// Decide returns the handler for one workflow action, e.g.
// POST /api/issues/:id/approve/dc.
func (h *ApprovalsHandler) Decide(action workflow.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		var req dto.DecisionRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return apperrors.NewValidationError("invalid payload", nil)
			}
		}
		issue, err := h.service.ApplyApproval(c.UserContext(), *principal, c.Params("id"), action, req.Comment)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"data": issueResponse(issue)})
	}
}

// History GET /api/issues/:id/approvals.
func (h *ApprovalsHandler) History(c *fiber.Ctx) error {
	records, err := h.service.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ApprovalRecordResponse, 0, len(records))
	for _, r := range records {
		items = append(items, approvalResponse(r))
	}
	return c.JSON(fiber.Map{"data": items})
}

func approvalResponse(r domain.ApprovalRecord) dto.ApprovalRecordResponse {
	return dto.ApprovalRecordResponse{
		ID:         r.ID,
		Role:       r.Role,
		Decision:   r.Decision,
		ActorID:    r.ActorID,
		FromStatus: r.FromStatus,
		ToStatus:   r.ToStatus,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}
