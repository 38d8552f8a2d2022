package dto

import (
	"time"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

// SubmitIssueRequest payload. Accepted as JSON or as form fields.
type SubmitIssueRequest struct {
	DeviceID      string `json:"device_id" form:"device_id"`
	ComplaintType string `json:"complaint_type" form:"complaint_type"`
	Title         string `json:"title" form:"title"`
	Description   string `json:"description" form:"description"`
	Priority      string `json:"priority" form:"priority"`
	Location      string `json:"location" form:"location"`
	UnderWarranty bool   `json:"under_warranty" form:"under_warranty"`
	Attachment    string `json:"attachment" form:"attachment"`
}

// ClerkSubmitRequest carries the field names posted by the clerk intake form.
type ClerkSubmitRequest struct {
	DeviceID      string `json:"deviceId" form:"deviceId"`
	ComplaintType string `json:"complaintType" form:"complaintType"`
	Priority      string `json:"priorityLevel" form:"priorityLevel"`
	UnderWarranty bool   `json:"underWarranty" form:"underWarranty"`
}

// WithClerkFields fills fields left empty in r from the clerk form names.
func (r SubmitIssueRequest) WithClerkFields(clerk ClerkSubmitRequest) SubmitIssueRequest {
	if r.DeviceID == "" {
		r.DeviceID = clerk.DeviceID
	}
	if r.ComplaintType == "" {
		r.ComplaintType = clerk.ComplaintType
	}
	if r.Priority == "" {
		r.Priority = clerk.Priority
	}
	r.UnderWarranty = r.UnderWarranty || clerk.UnderWarranty
	return r
}

// UpdateIssueRequest payload for the administrative bypass. Omitted fields are untouched.
type UpdateIssueRequest struct {
	Status            *string `json:"status"`
	Description       *string `json:"description"`
	Priority          *string `json:"priority"`
	Location          *string `json:"location"`
	ResolutionDetails *string `json:"resolution_details"`
	AssignedTo        *string `json:"assigned_to"`
}

// DecisionRequest carries the optional approver comment.
type DecisionRequest struct {
	Comment string `json:"comment" form:"comment"`
}

// IssueResponse is the full issue view.
type IssueResponse struct {
	ID                string             `json:"id"`
	Reference         string             `json:"reference"`
	DeviceID          string             `json:"device_id"`
	ComplaintType     string             `json:"complaint_type"`
	Title             *string            `json:"title"`
	Description       string             `json:"description"`
	Priority          domain.Priority    `json:"priority"`
	Location          string             `json:"location"`
	UnderWarranty     bool               `json:"under_warranty"`
	Attachment        *string            `json:"attachment"`
	AssignedTo        *string            `json:"assigned_to"`
	ResolutionDetails *string            `json:"resolution_details"`
	Status            domain.IssueStatus `json:"status"`
	NextActors        []string           `json:"next_actors"`
	SubmittedAt       time.Time          `json:"submitted_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// ApprovalRecordResponse is one audit entry.
type ApprovalRecordResponse struct {
	ID         string             `json:"id"`
	Role       domain.Role        `json:"role"`
	Decision   domain.Decision    `json:"decision"`
	ActorID    string             `json:"actor_id"`
	FromStatus domain.IssueStatus `json:"from_status"`
	ToStatus   domain.IssueStatus `json:"to_status"`
	Comment    string             `json:"comment,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// CountResponse answers a per-status count.
type CountResponse struct {
	Status domain.IssueStatus `json:"status"`
	Count  int                `json:"count"`
}
