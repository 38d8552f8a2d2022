package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

// MemoryStore is a process-local issue and approval store used when no
// database is configured. A single mutex makes Transition's check-and-write atomic.
type MemoryStore struct {
	mu        sync.Mutex
	issues    map[string]domain.Issue
	approvals map[string][]domain.ApprovalRecord
	now       func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:    make(map[string]domain.Issue),
		approvals: make(map[string][]domain.ApprovalRecord),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

var (
	_ IssueRepository    = (*MemoryStore)(nil)
	_ ApprovalRepository = (*MemoryStore)(nil)
)

func (s *MemoryStore) Create(_ context.Context, issue *domain.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if issue.SubmittedAt.IsZero() {
		issue.SubmittedAt = s.now()
	}
	issue.UpdatedAt = issue.SubmittedAt
	s.issues[issue.ID] = cloneIssue(*issue)
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	out := cloneIssue(issue)
	return &out, nil
}

func (s *MemoryStore) List(_ context.Context, filter IssueFilter) ([]domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]domain.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if filter.Status != nil && issue.Status != *filter.Status {
			continue
		}
		result = append(result, cloneIssue(issue))
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

func (s *MemoryStore) CountByStatus(_ context.Context, status domain.IssueStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, issue := range s.issues {
		if issue.Status == status {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) CountGroupedByStatus(_ context.Context) (map[domain.IssueStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[domain.IssueStatus]int{}
	for _, issue := range s.issues {
		counts[issue.Status]++
	}
	return counts, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch domain.IssuePatch) (*domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	patch.Apply(&issue)
	issue.UpdatedAt = s.now()
	s.issues[id] = cloneIssue(issue)
	out := cloneIssue(issue)
	return &out, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.issues[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.issues, id)
	delete(s.approvals, id)
	return nil
}

func (s *MemoryStore) Transition(_ context.Context, t StatusTransition) (*domain.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	issue, ok := s.issues[t.IssueID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if issue.Status != t.Expected {
		return nil, &StatusMismatchError{Expected: t.Expected, Actual: issue.Status}
	}
	now := s.now()
	issue.Status = t.Next
	issue.UpdatedAt = now
	s.issues[t.IssueID] = issue

	if t.Record != nil {
		if t.Record.ID == "" {
			t.Record.ID = uuid.NewString()
		}
		t.Record.IssueID = t.IssueID
		t.Record.FromStatus = t.Expected
		t.Record.ToStatus = t.Next
		t.Record.CreatedAt = now
		s.approvals[t.IssueID] = append(s.approvals[t.IssueID], *t.Record)
	}
	out := cloneIssue(issue)
	return &out, nil
}

func (s *MemoryStore) ListByIssue(_ context.Context, issueID string) ([]domain.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ApprovalRecord{}, s.approvals[issueID]...), nil
}

func cloneIssue(issue domain.Issue) domain.Issue {
	issue.Title = cloneString(issue.Title)
	issue.Attachment = cloneString(issue.Attachment)
	issue.AssignedTo = cloneString(issue.AssignedTo)
	issue.ResolutionDetails = cloneString(issue.ResolutionDetails)
	return issue
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
