package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, store.Create(ctx, &domain.Issue{ID: id, Status: domain.IssueStatusPending, SubmittedAt: base.Add(time.Duration(i) * time.Hour)}))
	}

	issues, err := store.List(ctx, IssueFilter{})
	require.NoError(t, err)
	require.Len(t, issues, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{issues[0].ID, issues[1].ID, issues[2].ID})
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	title := "fan"
	issue := &domain.Issue{ID: "a", Title: &title, Status: domain.IssueStatusPending}
	require.NoError(t, store.Create(ctx, issue))

	title = "mutated"
	got, err := store.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "fan", *got.Title)

	*got.Title = "also mutated"
	again, _ := store.GetByID(ctx, "a")
	assert.Equal(t, "fan", *again.Title)
}

func TestMemoryStoreTransition(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Issue{ID: "a", Status: domain.IssueStatusPending}))

	record := &domain.ApprovalRecord{Role: domain.RoleDC, Decision: domain.DecisionApprove, ActorID: "dc"}
	issue, err := store.Transition(ctx, StatusTransition{IssueID: "a", Expected: domain.IssueStatusPending, Next: domain.IssueStatusDCApproved, Record: record})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusDCApproved, issue.Status)

	_, err = store.Transition(ctx, StatusTransition{IssueID: "a", Expected: domain.IssueStatusPending, Next: domain.IssueStatusDCApproved})
	var mismatch *StatusMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, domain.IssueStatusDCApproved, mismatch.Actual)

	_, err = store.Transition(ctx, StatusTransition{IssueID: "missing", Expected: domain.IssueStatusPending, Next: domain.IssueStatusDCApproved})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	records, err := store.ListByIssue(ctx, "a")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.IssueStatusDCApproved, records[0].ToStatus)
}

func TestMemoryStoreConcurrentTransitionsHaveOneWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Issue{ID: "a", Status: domain.IssueStatusDCApproved}))

	targets := []domain.IssueStatus{domain.IssueStatusSuperUserApproved, domain.IssueStatusRootApproved, domain.IssueStatusRejectedByRoot}
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(next domain.IssueStatus) {
			defer wg.Done()
			_, err := store.Transition(ctx, StatusTransition{IssueID: "a", Expected: domain.IssueStatusDCApproved, Next: next})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(targets[i%len(targets)])
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestMemoryStoreUpdateDeleteCount(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &domain.Issue{ID: "a", Status: domain.IssueStatusPending}))
	require.NoError(t, store.Create(ctx, &domain.Issue{ID: "b", Status: domain.IssueStatusPending}))

	status := domain.IssueStatusCompleted
	updated, err := store.Update(ctx, "a", domain.IssuePatch{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusCompleted, updated.Status)

	_, err = store.Update(ctx, "missing", domain.IssuePatch{Status: &status})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	count, err := store.CountByStatus(ctx, domain.IssueStatusPending)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	grouped, err := store.CountGroupedByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, grouped[domain.IssueStatusCompleted])

	require.NoError(t, store.Delete(ctx, "a"))
	assert.ErrorIs(t, store.Delete(ctx, "a"), sql.ErrNoRows)
}
