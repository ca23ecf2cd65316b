// Package policy decides which actor may perform which action on a bug.
//
// Every rule lives in one capability table keyed by role and action. Route
// guards and services both read from it, so a rule is never restated inline.
package policy

import "github.com/spec-kit/bug-tracker/internal/domain"

// Action names an operation subject to authorization.
type Action string

const (
	ActionCreateBug       Action = "bug:create"
	ActionViewBug         Action = "bug:view"
	ActionUpdateBug       Action = "bug:update"
	ActionUpdateBugStatus Action = "bug:update_status"
	ActionAssignBug       Action = "bug:assign"
	ActionDeleteBug       Action = "bug:delete"
	ActionAddComment      Action = "comment:add"
	ActionDeleteComment   Action = "comment:delete"
	ActionListAllBugs     Action = "bug:list_all"
	ActionListOwnBugs     Action = "bug:list_own"
	ActionManageUsers     Action = "user:manage"
)

// Scope narrows an allowed action to resources the actor is related to.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeAny
	ScopeCreator
	ScopeAssignee
	ScopeAuthor
)

// Actor is the authenticated caller.
type Actor struct {
	ID   string
	Role domain.Role
}

// Resource carries the objects a scoped rule is checked against.
type Resource struct {
	Bug     *domain.Bug
	Comment *domain.Comment
}

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Table maps role and action to the granted scope. Missing entries deny.
type Table map[domain.Role]map[Action]Scope

// DefaultTable is the tracker's capability table.
func DefaultTable() Table {
	return Table{
		domain.RoleAdmin: {
			ActionViewBug:         ScopeAny,
			ActionUpdateBug:       ScopeAny,
			ActionUpdateBugStatus: ScopeAny,
			ActionAssignBug:       ScopeAny,
			ActionDeleteBug:       ScopeAny,
			ActionAddComment:      ScopeAny,
			ActionDeleteComment:   ScopeAny,
			ActionListAllBugs:     ScopeAny,
			ActionManageUsers:     ScopeAny,
		},
		domain.RoleTester: {
			ActionCreateBug:       ScopeAny,
			ActionViewBug:         ScopeAny,
			ActionUpdateBug:       ScopeCreator,
			ActionUpdateBugStatus: ScopeCreator,
			ActionAddComment:      ScopeAny,
			ActionDeleteComment:   ScopeAuthor,
			ActionListOwnBugs:     ScopeAny,
		},
		domain.RoleDeveloper: {
			ActionViewBug:         ScopeAny,
			ActionUpdateBugStatus: ScopeAssignee,
			ActionAddComment:      ScopeAny,
			ActionDeleteComment:   ScopeAuthor,
			ActionListOwnBugs:     ScopeAny,
		},
	}
}

var denyReasons = map[Action]string{
	ActionCreateBug:       "only testers can create bugs",
	ActionViewBug:         "no access to this bug",
	ActionUpdateBug:       "not creator or admin",
	ActionUpdateBugStatus: "not creator, assignee or admin",
	ActionAssignBug:       "only admins can assign bugs",
	ActionDeleteBug:       "only admins can delete bugs",
	ActionAddComment:      "no access to this bug",
	ActionDeleteComment:   "not comment creator or admin",
	ActionListAllBugs:     "only admins can list all bugs",
	ActionListOwnBugs:     "role has no personal bug list",
	ActionManageUsers:     "admin role required",
}

// Evaluator answers authorization questions from a Table.
type Evaluator struct {
	table Table
}

// New builds an evaluator over table. A nil table uses DefaultTable.
func New(table Table) *Evaluator {
	if table == nil {
		table = DefaultTable()
	}
	return &Evaluator{table: table}
}

// Permits reports whether role holds the action for at least some resources.
func (e *Evaluator) Permits(role domain.Role, action Action) bool {
	return e.scope(role, action) != ScopeNone
}

// Authorize evaluates action for actor against res.
func (e *Evaluator) Authorize(actor Actor, action Action, res Resource) Decision {
	if actor.ID == "" {
		return deny(action)
	}
	if matches(e.scope(actor.Role, action), actor, res) {
		return Decision{Allowed: true}
	}
	return deny(action)
}

// AuthorizePatch checks every action a bug patch implies and returns the
// first denial.
func (e *Evaluator) AuthorizePatch(actor Actor, bug *domain.Bug, patch domain.BugPatch) Decision {
	for _, action := range PatchActions(patch) {
		if d := e.Authorize(actor, action, Resource{Bug: bug}); !d.Allowed {
			return d
		}
	}
	return Decision{Allowed: true}
}

// PatchActions lists the actions needed to apply patch, most privileged first.
func PatchActions(patch domain.BugPatch) []Action {
	var actions []Action
	if patch.AssignSet {
		actions = append(actions, ActionAssignBug)
	}
	if patch.TouchesContent() {
		actions = append(actions, ActionUpdateBug)
	}
	if patch.Status != nil {
		actions = append(actions, ActionUpdateBugStatus)
	}
	return actions
}

func (e *Evaluator) scope(role domain.Role, action Action) Scope {
	actions, ok := e.table[role]
	if !ok {
		return ScopeNone
	}
	return actions[action]
}

func matches(scope Scope, actor Actor, res Resource) bool {
	switch scope {
	case ScopeAny:
		return true
	case ScopeCreator:
		return res.Bug != nil && res.Bug.CreatedBy == actor.ID
	case ScopeAssignee:
		return res.Bug != nil && res.Bug.IsAssignedTo(actor.ID)
	case ScopeAuthor:
		return res.Comment != nil && res.Comment.CreatedBy == actor.ID
	default:
		return false
	}
}

func deny(action Action) Decision {
	reason, ok := denyReasons[action]
	if !ok {
		reason = "access denied"
	}
	return Decision{Allowed: false, Reason: reason}
}

// DenyReason returns the fixed denial message for action.
func (e *Evaluator) DenyReason(action Action) string {
	return deny(action).Reason
}
