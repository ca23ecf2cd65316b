package repository

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

func seedUser(t *testing.T, repo UserRepository, email string, role domain.Role) *domain.User {
	t.Helper()
	user := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role}
	require.NoError(t, repo.Create(context.Background(), user))
	return user
}

func seedBug(t *testing.T, repo BugRepository, title string, status domain.BugStatus, priority domain.BugPriority) *domain.Bug {
	t.Helper()
	bug := &domain.Bug{Title: title, Description: "d", Status: status, Priority: priority, CreatedBy: "tester"}
	require.NoError(t, repo.Create(context.Background(), bug))
	return bug
}

func titles(bugs []domain.Bug) []string {
	out := make([]string, 0, len(bugs))
	for _, b := range bugs {
		out = append(out, b.Title)
	}
	return out
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()

	dev := seedUser(t, stores.Users, "dev@example.com", domain.RoleDeveloper)
	seedUser(t, stores.Users, "tester@example.com", domain.RoleTester)

	err := stores.Users.Create(ctx, &domain.User{Email: "dev@example.com", Role: domain.RoleTester})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	got, err := stores.Users.GetByEmail(ctx, "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, dev.ID, got.ID)

	role := domain.RoleDeveloper
	devs, err := stores.Users.List(ctx, UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, dev.ID, devs[0].ID)

	_, err = stores.Users.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryBugListFiltersAndPaging(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()

	seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)
	seedBug(t, stores.Bugs, "b", domain.BugStatusClosed, domain.BugPriorityHigh)
	seedBug(t, stores.Bugs, "c", domain.BugStatusOpen, domain.BugPriorityLow)
	seedBug(t, stores.Bugs, "d", domain.BugStatusOpen, domain.BugPriorityHigh)
	seedBug(t, stores.Bugs, "e", domain.BugStatusOpen, domain.BugPriorityHigh)

	status := domain.BugStatusOpen
	priority := domain.BugPriorityHigh
	page, total, err := stores.Bugs.List(ctx, BugFilter{
		Status:   &status,
		Priority: &priority,
		Sort:     DefaultBugSort,
		Limit:    2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	if diff := cmp.Diff([]string{"e", "d"}, titles(page)); diff != "" {
		t.Fatalf("first page mismatch (-want +got):\n%s", diff)
	}

	page, total, err = stores.Bugs.List(ctx, BugFilter{
		Status:   &status,
		Priority: &priority,
		Sort:     DefaultBugSort,
		Limit:    2,
		Offset:   2,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	if diff := cmp.Diff([]string{"a"}, titles(page)); diff != "" {
		t.Fatalf("second page mismatch (-want +got):\n%s", diff)
	}

	page, _, err = stores.Bugs.List(ctx, BugFilter{Offset: 50, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryBugSorting(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()

	seedBug(t, stores.Bugs, "medium", domain.BugStatusClosed, domain.BugPriorityMedium)
	seedBug(t, stores.Bugs, "high", domain.BugStatusOpen, domain.BugPriorityHigh)
	seedBug(t, stores.Bugs, "low", domain.BugStatusInProgress, domain.BugPriorityLow)

	cases := map[string][]string{
		"priority":   {"low", "medium", "high"},
		"-priority":  {"high", "medium", "low"},
		"status":     {"high", "low", "medium"},
		"createdAt":  {"medium", "high", "low"},
		"-createdAt": {"low", "high", "medium"},
		"":           {"low", "high", "medium"},
	}
	for raw, want := range cases {
		order, ok := ParseBugSort(raw)
		require.True(t, ok, raw)
		page, _, err := stores.Bugs.List(ctx, BugFilter{Sort: order})
		require.NoError(t, err)
		if diff := cmp.Diff(want, titles(page)); diff != "" {
			t.Errorf("sort %q mismatch (-want +got):\n%s", raw, diff)
		}
	}

	_, ok := ParseBugSort("title")
	assert.False(t, ok)
}

func TestMemoryBugUpdateRevalidatesAssignee(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()

	dev := seedUser(t, stores.Users, "dev@example.com", domain.RoleDeveloper)
	tester := seedUser(t, stores.Users, "tester@example.com", domain.RoleTester)
	bug := seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)

	_, err := stores.Bugs.Update(ctx, bug.ID, domain.BugPatch{AssignSet: true, AssignedTo: &tester.ID})
	assert.ErrorIs(t, err, ErrInvalidAssignee)

	updated, err := stores.Bugs.Update(ctx, bug.ID, domain.BugPatch{AssignSet: true, AssignedTo: &dev.ID})
	require.NoError(t, err)
	assert.True(t, updated.IsAssignedTo(dev.ID))
	assert.True(t, updated.UpdatedAt.After(bug.UpdatedAt))

	// deleting the developer between authorization and write fails the write
	require.NoError(t, stores.Users.Delete(ctx, dev.ID))
	_, err = stores.Bugs.Update(ctx, bug.ID, domain.BugPatch{AssignSet: true, AssignedTo: &dev.ID})
	assert.ErrorIs(t, err, ErrInvalidAssignee)

	stored, err := stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo, "deleting a user clears their assignments")
}

func TestMemoryComments(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()
	bug := seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)

	updated, err := stores.Bugs.AddComment(ctx, bug.ID, domain.Comment{ID: "c1", Text: "first", CreatedBy: "u1"})
	require.NoError(t, err)
	require.Len(t, updated.Comments, 1)

	_, err = stores.Bugs.AddComment(ctx, bug.ID, domain.Comment{ID: "c2", Text: "second", CreatedBy: "u2"})
	require.NoError(t, err)

	require.NoError(t, stores.Bugs.DeleteComment(ctx, bug.ID, "c1"))
	assert.ErrorIs(t, stores.Bugs.DeleteComment(ctx, bug.ID, "c1"), ErrNotFound)

	stored, err := stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "c2", stored.Comments[0].ID)
}

func TestMemoryBugDelete(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()
	bug := seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)

	require.NoError(t, stores.Bugs.Delete(ctx, bug.ID))
	assert.ErrorIs(t, stores.Bugs.Delete(ctx, bug.ID), ErrNotFound)
	_, err := stores.Bugs.GetByID(ctx, bug.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()
	bug := seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)

	got, err := stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	got.Title = "mutated"

	again, err := stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", again.Title)
}

func TestMemoryRoleChangeClearsAssignments(t *testing.T) {
	ctx := context.Background()
	stores := NewMemoryStore().Stores()

	dev := seedUser(t, stores.Users, "dev@example.com", domain.RoleDeveloper)
	bug := seedBug(t, stores.Bugs, "a", domain.BugStatusOpen, domain.BugPriorityHigh)
	_, err := stores.Bugs.Update(ctx, bug.ID, domain.BugPatch{AssignSet: true, AssignedTo: &dev.ID})
	require.NoError(t, err)

	dev.Name = "renamed"
	require.NoError(t, stores.Users.Update(ctx, dev))
	stored, err := stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAssignedTo(dev.ID))

	dev.Role = domain.RoleAdmin
	require.NoError(t, stores.Users.Update(ctx, dev))
	stored, err = stores.Bugs.GetByID(ctx, bug.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)
}
