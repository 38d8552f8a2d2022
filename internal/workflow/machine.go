// Package workflow holds the issue approval chain as an explicit transition table.
package workflow

import (
	"errors"
	"fmt"

	"github.com/spec-kit/device-issue-service/internal/domain"
)

// ErrUndefinedAction is returned for a role/decision pair with no rule.
var ErrUndefinedAction = errors.New("undefined approval action")

// Action is a decision taken by an approver role.
type Action struct {
	Role     domain.Role
	Decision domain.Decision
}

func (a Action) String() string {
	return fmt.Sprintf("%s(%s)", a.Decision, a.Role.Slug())
}

// Approve builds the approve action for role.
func Approve(role domain.Role) Action {
	return Action{Role: role, Decision: domain.DecisionApprove}
}

// Reject builds the reject action for role.
func Reject(role domain.Role) Action {
	return Action{Role: role, Decision: domain.DecisionReject}
}

// Rule maps an action to the status it requires and the status it produces.
type Rule struct {
	Action Action
	From   domain.IssueStatus
	To     domain.IssueStatus
}

// DC Approved feeds both the Super User chain and the Root chain. Whichever
// approver acts first moves the issue out of DC Approved.
var rules = []Rule{
	{Action: Approve(domain.RoleDC), From: domain.IssueStatusPending, To: domain.IssueStatusDCApproved},
	{Action: Reject(domain.RoleDC), From: domain.IssueStatusPending, To: domain.IssueStatusRejectedByDC},
	{Action: Approve(domain.RoleSuperUser), From: domain.IssueStatusDCApproved, To: domain.IssueStatusSuperUserApproved},
	{Action: Approve(domain.RoleSuperAdmin), From: domain.IssueStatusSuperUserApproved, To: domain.IssueStatusSuperAdminApproved},
	{Action: Approve(domain.RoleRoot), From: domain.IssueStatusDCApproved, To: domain.IssueStatusRootApproved},
	{Action: Reject(domain.RoleRoot), From: domain.IssueStatusDCApproved, To: domain.IssueStatusRejectedByRoot},
}

var rulesByAction = func() map[Action]Rule {
	m := make(map[Action]Rule, len(rules))
	for _, r := range rules {
		m[r.Action] = r
	}
	return m
}()

// PreconditionError reports an action attempted from the wrong status.
type PreconditionError struct {
	Action   Action
	Expected domain.IssueStatus
	Actual   domain.IssueStatus
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s requires status %q, issue is %q", e.Action, e.Expected, e.Actual)
}

// Rules returns the transition table in declaration order.
func Rules() []Rule {
	return append([]Rule(nil), rules...)
}

// Lookup returns the rule for action.
func Lookup(action Action) (Rule, bool) {
	r, ok := rulesByAction[action]
	return r, ok
}

// Next computes the status produced by applying action to current.
func Next(current domain.IssueStatus, action Action) (domain.IssueStatus, error) {
	r, ok := Lookup(action)
	if !ok {
		return "", ErrUndefinedAction
	}
	if current != r.From {
		return "", &PreconditionError{Action: action, Expected: r.From, Actual: current}
	}
	return r.To, nil
}

// NextActors lists the roles that can act on an issue in status.
func NextActors(status domain.IssueStatus) []domain.Role {
	var roles []domain.Role
	seen := map[domain.Role]bool{}
	for _, r := range rules {
		if r.From == status && !seen[r.Action.Role] {
			seen[r.Action.Role] = true
			roles = append(roles, r.Action.Role)
		}
	}
	return roles
}

// Terminal reports whether no rule consumes status.
func Terminal(status domain.IssueStatus) bool {
	return len(NextActors(status)) == 0
}
