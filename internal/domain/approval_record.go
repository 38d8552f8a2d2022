package domain

import "time"

// Decision is the outcome an approver records.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ApprovalRecord is an immutable audit entry written alongside a workflow transition.
type ApprovalRecord struct {
	ID         string      `db:"id"`
	IssueID    string      `db:"issue_id"`
	Role       Role        `db:"role"`
	Decision   Decision    `db:"decision"`
	ActorID    string      `db:"actor_id"`
	FromStatus IssueStatus `db:"from_status"`
	ToStatus   IssueStatus `db:"to_status"`
	Comment    string      `db:"comment"`
	CreatedAt  time.Time   `db:"created_at"`
}
