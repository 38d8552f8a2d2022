package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

// ApprovalRepository reads the approval audit trail. Entries are written by
// IssueRepository.Transition.
type ApprovalRepository interface {
	ListByIssue(ctx context.Context, issueID string) ([]domain.ApprovalRecord, error)
}

type approvalRepository struct {
	db *sqlx.DB
}

// NewApprovalRepository builds repository.
func NewApprovalRepository(db *sqlx.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.ApprovalRecord, error) {
	const query = `
        SELECT id, issue_id, role, decision, actor_id, from_status, to_status, comment, created_at
        FROM issue_approvals WHERE issue_id = $1 ORDER BY created_at ASC`
	records := []domain.ApprovalRecord{}
	if err := r.db.SelectContext(ctx, &records, query, issueID); err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return records, nil
}

func insertApproval(ctx context.Context, tx *sqlx.Tx, record *domain.ApprovalRecord) error {
	const query = `
        INSERT INTO issue_approvals (id, issue_id, role, decision, actor_id, from_status, to_status, comment, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	if _, err := tx.ExecContext(ctx, query,
		record.ID,
		record.IssueID,
		record.Role,
		record.Decision,
		record.ActorID,
		record.FromStatus,
		record.ToStatus,
		record.Comment,
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}
	return nil
}
