package events

import (
	"time"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueSubmitted     EventType = "issue.submitted"
	EventIssueStatusChanged EventType = "issue.status_changed"
	EventIssueUpdated       EventType = "issue.updated"
	EventIssueDeleted       EventType = "issue.deleted"
)

// Actor identifies who caused an event. Anonymous submissions carry an empty SubjectID.
type Actor struct {
	SubjectID string      `json:"subject_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	IssueID   string    `json:"issue_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// IssueSubmittedPayload payload.
type IssueSubmittedPayload struct {
	Reference     string          `json:"reference"`
	DeviceID      string          `json:"device_id"`
	ComplaintType string          `json:"complaint_type"`
	Priority      domain.Priority `json:"priority"`
	Location      string          `json:"location"`
}

// IssueStatusChangedPayload payload for workflow transitions.
type IssueStatusChangedPayload struct {
	Reference string             `json:"reference"`
	DeviceID  string             `json:"device_id"`
	Decision  domain.Decision    `json:"decision"`
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Comment   string             `json:"comment,omitempty"`
}

// IssueUpdatedPayload payload for the administrative update path.
type IssueUpdatedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Fields    []string           `json:"fields"`
}
