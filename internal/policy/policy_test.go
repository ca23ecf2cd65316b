package policy

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

var (
	admin     = Actor{ID: "admin-1", Role: domain.RoleAdmin}
	testerA   = Actor{ID: "tester-a", Role: domain.RoleTester}
	testerB   = Actor{ID: "tester-b", Role: domain.RoleTester}
	developer = Actor{ID: "dev-d", Role: domain.RoleDeveloper}
	otherDev  = Actor{ID: "dev-e", Role: domain.RoleDeveloper}
)

func assignedBug() *domain.Bug {
	assignee := developer.ID
	return &domain.Bug{ID: "bug-1", CreatedBy: testerA.ID, AssignedTo: &assignee}
}

func TestAuthorize(t *testing.T) {
	e := New(nil)
	bug := assignedBug()

	tests := []struct {
		name    string
		actor   Actor
		action  Action
		res     Resource
		allowed bool
		reason  string
	}{
		{"tester creates", testerA, ActionCreateBug, Resource{}, true, ""},
		{"developer cannot create", developer, ActionCreateBug, Resource{}, false, "only testers can create bugs"},
		{"admin cannot create", admin, ActionCreateBug, Resource{}, false, "only testers can create bugs"},

		{"creator views", testerA, ActionViewBug, Resource{Bug: bug}, true, ""},
		{"assignee views", developer, ActionViewBug, Resource{Bug: bug}, true, ""},
		{"admin views", admin, ActionViewBug, Resource{Bug: bug}, true, ""},
		{"other tester views", testerB, ActionViewBug, Resource{Bug: bug}, true, ""},
		{"other developer views", otherDev, ActionViewBug, Resource{Bug: bug}, true, ""},

		{"creator edits", testerA, ActionUpdateBug, Resource{Bug: bug}, true, ""},
		{"admin edits", admin, ActionUpdateBug, Resource{Bug: bug}, true, ""},
		{"assignee cannot edit content", developer, ActionUpdateBug, Resource{Bug: bug}, false, "not creator or admin"},
		{"other tester cannot edit", testerB, ActionUpdateBug, Resource{Bug: bug}, false, "not creator or admin"},

		{"assignee changes status", developer, ActionUpdateBugStatus, Resource{Bug: bug}, true, ""},
		{"creator changes status", testerA, ActionUpdateBugStatus, Resource{Bug: bug}, true, ""},
		{"stranger cannot change status", testerB, ActionUpdateBugStatus, Resource{Bug: bug}, false, "not creator, assignee or admin"},

		{"admin assigns", admin, ActionAssignBug, Resource{Bug: bug}, true, ""},
		{"creator cannot assign", testerA, ActionAssignBug, Resource{Bug: bug}, false, "only admins can assign bugs"},
		{"assignee cannot reassign", developer, ActionAssignBug, Resource{Bug: bug}, false, "only admins can assign bugs"},

		{"admin deletes", admin, ActionDeleteBug, Resource{Bug: bug}, true, ""},
		{"creator cannot delete", testerA, ActionDeleteBug, Resource{Bug: bug}, false, "only admins can delete bugs"},

		{"admin lists all", admin, ActionListAllBugs, Resource{}, true, ""},
		{"tester cannot list all", testerA, ActionListAllBugs, Resource{}, false, "only admins can list all bugs"},
		{"tester lists own", testerA, ActionListOwnBugs, Resource{}, true, ""},
		{"developer lists own", developer, ActionListOwnBugs, Resource{}, true, ""},
		{"admin has no own list", admin, ActionListOwnBugs, Resource{}, false, "role has no personal bug list"},

		{"unknown role denied", Actor{ID: "x", Role: "Manager"}, ActionViewBug, Resource{Bug: bug}, false, "no access to this bug"},
		{"anonymous denied", Actor{Role: domain.RoleAdmin}, ActionViewBug, Resource{Bug: bug}, false, "no access to this bug"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.Authorize(tt.actor, tt.action, tt.res)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestAuthorizeComments(t *testing.T) {
	e := New(nil)
	bug := assignedBug()
	comment := &domain.Comment{ID: "c1", CreatedBy: developer.ID}

	assert.True(t, e.Authorize(developer, ActionAddComment, Resource{Bug: bug}).Allowed)
	assert.True(t, e.Authorize(testerA, ActionAddComment, Resource{Bug: bug}).Allowed)
	assert.True(t, e.Authorize(testerB, ActionAddComment, Resource{Bug: bug}).Allowed)
	assert.True(t, e.Authorize(otherDev, ActionAddComment, Resource{Bug: bug}).Allowed)
	assert.False(t, e.Authorize(Actor{ID: "x", Role: "Manager"}, ActionAddComment, Resource{Bug: bug}).Allowed)

	assert.True(t, e.Authorize(developer, ActionDeleteComment, Resource{Bug: bug, Comment: comment}).Allowed)
	assert.True(t, e.Authorize(admin, ActionDeleteComment, Resource{Bug: bug, Comment: comment}).Allowed)

	d := e.Authorize(testerA, ActionDeleteComment, Resource{Bug: bug, Comment: comment})
	assert.False(t, d.Allowed)
	assert.Equal(t, "not comment creator or admin", d.Reason)
}

func TestPatchActions(t *testing.T) {
	status := domain.BugStatusClosed
	title := "New title"

	got := PatchActions(domain.BugPatch{Status: &status, Title: &title, AssignSet: true})
	want := []Action{ActionAssignBug, ActionUpdateBug, ActionUpdateBugStatus}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("PatchActions mismatch (-want +got):\n%s", diff)
	}

	got = PatchActions(domain.BugPatch{Status: &status})
	if diff := cmp.Diff([]Action{ActionUpdateBugStatus}, got); diff != "" {
		t.Fatalf("PatchActions mismatch (-want +got):\n%s", diff)
	}
}

func TestAuthorizePatch(t *testing.T) {
	e := New(nil)
	bug := assignedBug()
	status := domain.BugStatusInProgress
	title := "Retitled"

	assert.True(t, e.AuthorizePatch(developer, bug, domain.BugPatch{Status: &status}).Allowed)

	d := e.AuthorizePatch(developer, bug, domain.BugPatch{Status: &status, Title: &title})
	assert.False(t, d.Allowed)
	assert.Equal(t, "not creator or admin", d.Reason)

	d = e.AuthorizePatch(testerA, bug, domain.BugPatch{AssignSet: true})
	assert.False(t, d.Allowed)
	assert.Equal(t, "only admins can assign bugs", d.Reason)

	assert.True(t, e.AuthorizePatch(admin, bug, domain.BugPatch{AssignSet: true, Title: &title}).Allowed)
}

func TestPermits(t *testing.T) {
	e := New(nil)
	assert.True(t, e.Permits(domain.RoleTester, ActionCreateBug))
	assert.False(t, e.Permits(domain.RoleDeveloper, ActionCreateBug))
	assert.True(t, e.Permits(domain.RoleDeveloper, ActionUpdateBugStatus))
	assert.False(t, e.Permits(domain.RoleDeveloper, ActionUpdateBug))
	assert.True(t, e.Permits(domain.RoleAdmin, ActionManageUsers))
	assert.False(t, e.Permits(domain.RoleTester, ActionManageUsers))
}

func TestCustomTable(t *testing.T) {
	e := New(Table{domain.RoleDeveloper: {ActionCreateBug: ScopeAny}})
	assert.True(t, e.Authorize(developer, ActionCreateBug, Resource{}).Allowed)
	assert.False(t, e.Authorize(testerA, ActionCreateBug, Resource{}).Allowed)
}
