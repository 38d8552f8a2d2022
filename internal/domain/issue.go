package domain

import (
	"fmt"
	"time"
)

// IssueStatus enumerates the labels an issue may carry.
type IssueStatus string

const (
	IssueStatusPending            IssueStatus = "Pending"
	IssueStatusDCApproved         IssueStatus = "DC Approved"
	IssueStatusRejectedByDC       IssueStatus = "Rejected by DC"
	IssueStatusSuperUserApproved  IssueStatus = "Super User Approved"
	IssueStatusSuperAdminApproved IssueStatus = "Super Admin Approved"
	IssueStatusRootApproved       IssueStatus = "Root Approved"
	IssueStatusRejectedByRoot     IssueStatus = "Rejected by Root"
	IssueStatusResolved           IssueStatus = "Resolved"
	IssueStatusRejected           IssueStatus = "Rejected"
	IssueStatusInProgress         IssueStatus = "In Progress"
	IssueStatusOpen               IssueStatus = "Open"
	IssueStatusCompleted          IssueStatus = "Completed"
)

var issueStatuses = []IssueStatus{
	IssueStatusPending,
	IssueStatusDCApproved,
	IssueStatusRejectedByDC,
	IssueStatusSuperUserApproved,
	IssueStatusSuperAdminApproved,
	IssueStatusRootApproved,
	IssueStatusRejectedByRoot,
	IssueStatusResolved,
	IssueStatusRejected,
	IssueStatusInProgress,
	IssueStatusOpen,
	IssueStatusCompleted,
}

// IssueStatuses returns every known status label in display order.
func IssueStatuses() []IssueStatus {
	return append([]IssueStatus(nil), issueStatuses...)
}

// Valid reports whether s is a known label.
func (s IssueStatus) Valid() bool {
	for _, known := range issueStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseIssueStatus converts a raw label into an IssueStatus.
func ParseIssueStatus(raw string) (IssueStatus, error) {
	status := IssueStatus(raw)
	if !status.Valid() {
		return "", fmt.Errorf("unknown issue status %q", raw)
	}
	return status, nil
}

// Priority enumerates issue urgency.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Issue is a submitted device complaint moving through approval.
type Issue struct {
	ID                string      `db:"id"`
	Reference         string      `db:"reference"`
	DeviceID          string      `db:"device_id"`
	ComplaintType     string      `db:"complaint_type"`
	Title             *string     `db:"title"`
	Description       string      `db:"description"`
	Priority          Priority    `db:"priority"`
	Location          string      `db:"location"`
	UnderWarranty     bool        `db:"under_warranty"`
	Attachment        *string     `db:"attachment"`
	AssignedTo        *string     `db:"assigned_to"`
	ResolutionDetails *string     `db:"resolution_details"`
	Status            IssueStatus `db:"status"`
	SubmittedAt       time.Time   `db:"submitted_at"`
	UpdatedAt         time.Time   `db:"updated_at"`
}

// IssuePatch lists the fields the administrative update path may overwrite.
// Nil fields are left untouched.
type IssuePatch struct {
	Status            *IssueStatus
	Description       *string
	Priority          *Priority
	Location          *string
	ResolutionDetails *string
	AssignedTo        *string
}

// Empty reports whether the patch changes nothing.
func (p IssuePatch) Empty() bool {
	return p.Status == nil && p.Description == nil && p.Priority == nil &&
		p.Location == nil && p.ResolutionDetails == nil && p.AssignedTo == nil
}

// Apply copies the set fields onto issue.
func (p IssuePatch) Apply(issue *Issue) {
	if p.Status != nil {
		issue.Status = *p.Status
	}
	if p.Description != nil {
		issue.Description = *p.Description
	}
	if p.Priority != nil {
		issue.Priority = *p.Priority
	}
	if p.Location != nil {
		issue.Location = *p.Location
	}
	if p.ResolutionDetails != nil {
		issue.ResolutionDetails = p.ResolutionDetails
	}
	if p.AssignedTo != nil {
		issue.AssignedTo = p.AssignedTo
	}
}
