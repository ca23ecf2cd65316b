package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBugPatchApplyLeavesUnsetFields(t *testing.T) {
	assignee := "dev-1"
	bug := Bug{
		Title:       "Crash on save",
		Description: "stack trace attached",
		Status:      BugStatusOpen,
		Priority:    BugPriorityHigh,
		AssignedTo:  &assignee,
	}

	status := BugStatusInProgress
	BugPatch{Status: &status}.Apply(&bug)

	assert.Equal(t, BugStatusInProgress, bug.Status)
	assert.Equal(t, "Crash on save", bug.Title)
	assert.Equal(t, "stack trace attached", bug.Description)
	assert.Equal(t, BugPriorityHigh, bug.Priority)
	if assert.NotNil(t, bug.AssignedTo) {
		assert.Equal(t, "dev-1", *bug.AssignedTo)
	}
}

func TestBugPatchClearsAssignee(t *testing.T) {
	assignee := "dev-1"
	bug := Bug{AssignedTo: &assignee}

	BugPatch{AssignSet: true}.Apply(&bug)

	assert.Nil(t, bug.AssignedTo)
}

func TestBugPatchEmpty(t *testing.T) {
	assert.True(t, BugPatch{}.Empty())
	assert.False(t, BugPatch{AssignSet: true}.Empty())

	title := "x"
	assert.True(t, BugPatch{Title: &title}.TouchesContent())
	status := BugStatusClosed
	assert.False(t, BugPatch{Status: &status}.TouchesContent())
}

func TestRanks(t *testing.T) {
	assert.Less(t, BugPriorityLow.Rank(), BugPriorityMedium.Rank())
	assert.Less(t, BugPriorityMedium.Rank(), BugPriorityHigh.Rank())
	assert.Less(t, BugStatusOpen.Rank(), BugStatusInProgress.Rank())
	assert.Less(t, BugStatusInProgress.Rank(), BugStatusClosed.Rank())
	assert.False(t, BugStatus("Reopened").Valid())
	assert.False(t, BugPriority("Urgent").Valid())
}

func TestParseRole(t *testing.T) {
	cases := map[string]Role{
		"Admin":     RoleAdmin,
		"Tester":    RoleTester,
		"Developer": RoleDeveloper,
		"User":      RoleDeveloper,
	}
	for raw, want := range cases {
		got, ok := ParseRole(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParseRole("Manager")
	assert.False(t, ok)
}

func TestFindComment(t *testing.T) {
	bug := Bug{Comments: []Comment{{ID: "c1", Text: "first"}, {ID: "c2", Text: "second"}}}

	c, ok := bug.FindComment("c2")
	assert.True(t, ok)
	assert.Equal(t, "second", c.Text)

	_, ok = bug.FindComment("c3")
	assert.False(t, ok)
}
