package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

const issueColumns = `id, reference, device_id, complaint_type, title, description, priority, location,
       under_warranty, attachment, assigned_to, resolution_details, status, submitted_at, updated_at`

// IssueFilter narrows listings. A nil Status lists everything.
type IssueFilter struct {
	Status *domain.IssueStatus
}

// StatusTransition is a compare-and-swap on an issue's status plus the audit
// entry describing it.
type StatusTransition struct {
	IssueID  string
	Expected domain.IssueStatus
	Next     domain.IssueStatus
	Record   *domain.ApprovalRecord
}

// StatusMismatchError means the issue exists but was not in the expected status.
type StatusMismatchError struct {
	Expected domain.IssueStatus
	Actual   domain.IssueStatus
}

func (e *StatusMismatchError) Error() string {
	return fmt.Sprintf("issue status is %q, expected %q", e.Actual, e.Expected)
}

// IssueRepository encapsulates issue persistence. Missing rows surface as sql.ErrNoRows.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	CountByStatus(ctx context.Context, status domain.IssueStatus) (int, error)
	CountGroupedByStatus(ctx context.Context) (map[domain.IssueStatus]int, error)
	Update(ctx context.Context, id string, patch domain.IssuePatch) (*domain.Issue, error)
	Delete(ctx context.Context, id string) error
	Transition(ctx context.Context, t StatusTransition) (*domain.Issue, error)
}

type issueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository returns a Postgres-backed implementation.
func NewIssueRepository(db *sqlx.DB) IssueRepository {
	return &issueRepository{db: db}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if issue.SubmittedAt.IsZero() {
		issue.SubmittedAt = now
	}
	issue.UpdatedAt = issue.SubmittedAt

	const query = `
        INSERT INTO issues (id, reference, device_id, complaint_type, title, description, priority, location,
            under_warranty, attachment, assigned_to, resolution_details, status, submitted_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	if _, err := r.db.ExecContext(ctx, query,
		issue.ID,
		issue.Reference,
		issue.DeviceID,
		issue.ComplaintType,
		issue.Title,
		issue.Description,
		issue.Priority,
		issue.Location,
		issue.UnderWarranty,
		issue.Attachment,
		issue.AssignedTo,
		issue.ResolutionDetails,
		issue.Status,
		issue.SubmittedAt,
		issue.UpdatedAt,
	); err != nil {
		return fmt.Errorf("create issue: %w", err)
	}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id = $1`
	var issue domain.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues`
	args := []any{}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" WHERE status = $%d", len(args))
	}
	query += " ORDER BY submitted_at DESC"

	issues := []domain.Issue{}
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

func (r *issueRepository) CountByStatus(ctx context.Context, status domain.IssueStatus) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM issues WHERE status = $1`, status); err != nil {
		return 0, fmt.Errorf("count issues: %w", err)
	}
	return count, nil
}

func (r *issueRepository) CountGroupedByStatus(ctx context.Context) (map[domain.IssueStatus]int, error) {
	var rows []struct {
		Status domain.IssueStatus `db:"status"`
		Count  int                `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM issues GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count issues by status: %w", err)
	}
	counts := make(map[domain.IssueStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Update overwrites the set patch fields in one statement; unset fields keep
// their stored value. No status precondition is applied.
func (r *issueRepository) Update(ctx context.Context, id string, patch domain.IssuePatch) (*domain.Issue, error) {
	query := `
        UPDATE issues SET
            status = COALESCE($1, status),
            description = COALESCE($2, description),
            priority = COALESCE($3, priority),
            location = COALESCE($4, location),
            resolution_details = COALESCE($5, resolution_details),
            assigned_to = COALESCE($6, assigned_to),
            updated_at = $7
        WHERE id = $8
        RETURNING ` + issueColumns
	var issue domain.Issue
	if err := r.db.GetContext(ctx, &issue, query,
		nullableString(patch.Status),
		patch.Description,
		nullableString(patch.Priority),
		patch.Location,
		patch.ResolutionDetails,
		patch.AssignedTo,
		time.Now().UTC(),
		id,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}

func (r *issueRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Transition moves the issue from t.Expected to t.Next only if it is still in
// t.Expected, and inserts t.Record in the same transaction. When no row
// matches it re-reads the status to tell a missing issue (sql.ErrNoRows) from
// a stale one (*StatusMismatchError).
func (r *issueRepository) Transition(ctx context.Context, t StatusTransition) (*domain.Issue, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	query := `
        UPDATE issues SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4
        RETURNING ` + issueColumns
	var issue domain.Issue
	err = tx.GetContext(ctx, &issue, query, t.Next, now, t.IssueID, t.Expected)
	if errors.Is(err, sql.ErrNoRows) {
		var current domain.IssueStatus
		if err := tx.GetContext(ctx, &current, `SELECT status FROM issues WHERE id = $1`, t.IssueID); err != nil {
			return nil, err
		}
		return nil, &StatusMismatchError{Expected: t.Expected, Actual: current}
	}
	if err != nil {
		return nil, fmt.Errorf("transition issue: %w", err)
	}

	if t.Record != nil {
		if t.Record.ID == "" {
			t.Record.ID = uuid.NewString()
		}
		t.Record.IssueID = t.IssueID
		t.Record.FromStatus = t.Expected
		t.Record.ToStatus = t.Next
		t.Record.CreatedAt = now
		if err := insertApproval(ctx, tx, t.Record); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return &issue, nil
}

func nullableString[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
