package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

func TestNextAcrossEveryStatus(t *testing.T) {
	expected := map[Action]struct {
		from domain.IssueStatus
		to   domain.IssueStatus
	}{
		Approve(domain.RoleDC):         {domain.IssueStatusPending, domain.IssueStatusDCApproved},
		Reject(domain.RoleDC):          {domain.IssueStatusPending, domain.IssueStatusRejectedByDC},
		Approve(domain.RoleSuperUser):  {domain.IssueStatusDCApproved, domain.IssueStatusSuperUserApproved},
		Approve(domain.RoleSuperAdmin): {domain.IssueStatusSuperUserApproved, domain.IssueStatusSuperAdminApproved},
		Approve(domain.RoleRoot):       {domain.IssueStatusDCApproved, domain.IssueStatusRootApproved},
		Reject(domain.RoleRoot):        {domain.IssueStatusDCApproved, domain.IssueStatusRejectedByRoot},
	}

	for action, want := range expected {
		for _, current := range domain.IssueStatuses() {
			next, err := Next(current, action)
			if current == want.from {
				require.NoError(t, err, "%s from %s", action, current)
				assert.Equal(t, want.to, next)
				continue
			}
			var precondition *PreconditionError
			require.True(t, errors.As(err, &precondition), "%s from %s", action, current)
			assert.Equal(t, want.from, precondition.Expected)
			assert.Equal(t, current, precondition.Actual)
			assert.Empty(t, next)
		}
	}
}

func TestUndefinedActions(t *testing.T) {
	for _, action := range []Action{
		Reject(domain.RoleSuperUser),
		Reject(domain.RoleSuperAdmin),
		Approve(domain.RoleClerk),
		{Role: domain.RoleDC, Decision: "escalate"},
	} {
		_, ok := Lookup(action)
		assert.False(t, ok, action.String())
		_, err := Next(domain.IssueStatusPending, action)
		assert.ErrorIs(t, err, ErrUndefinedAction)
	}
}

func TestRulesAreUniqueAndClosed(t *testing.T) {
	seen := map[Action]bool{}
	for _, r := range Rules() {
		assert.False(t, seen[r.Action], "duplicate rule for %s", r.Action)
		seen[r.Action] = true
		assert.True(t, r.From.Valid())
		assert.True(t, r.To.Valid())
	}
	assert.Len(t, seen, 6)
}

func TestNextActors(t *testing.T) {
	assert.Equal(t, []domain.Role{domain.RoleDC}, NextActors(domain.IssueStatusPending))
	assert.ElementsMatch(t, []domain.Role{domain.RoleSuperUser, domain.RoleRoot}, NextActors(domain.IssueStatusDCApproved))
	assert.Equal(t, []domain.Role{domain.RoleSuperAdmin}, NextActors(domain.IssueStatusSuperUserApproved))
	assert.True(t, Terminal(domain.IssueStatusSuperAdminApproved))
	assert.True(t, Terminal(domain.IssueStatusRejectedByDC))
	assert.False(t, Terminal(domain.IssueStatusDCApproved))
}

func TestPreconditionErrorMessage(t *testing.T) {
	_, err := Next(domain.IssueStatusDCApproved, Approve(domain.RoleSuperAdmin))
	require.Error(t, err)
	assert.Equal(t, `approve(superadmin) requires status "Super User Approved", issue is "DC Approved"`, err.Error())
}
