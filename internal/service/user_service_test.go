package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-tracker/internal/domain"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, token, err := f.auth.Register(ctx, RegisterInput{Name: "Ann", Email: " Ann@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, domain.RoleDeveloper, user.Role)
	assert.NotEmpty(t, token.Value)

	legacy, _, err := f.auth.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "secret1", Role: "User"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDeveloper, legacy.Role)

	_, _, err = f.auth.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "secret1"})
	requireCode(t, err, apperrors.CodeConflict)
	assert.Equal(t, 400, apperrors.ToDomainError(err).HTTPStatus)

	_, _, err = f.auth.Register(ctx, RegisterInput{Name: "", Email: "bad", Password: "123"})
	requireCode(t, err, apperrors.CodeValidation)
	details := apperrors.ToDomainError(err).Details["errors"]
	assert.Len(t, details, 3)

	_, _, err = f.auth.Register(ctx, RegisterInput{Name: "Root", Email: "root@example.com", Password: "secret1", Role: "Admin"})
	requireCode(t, err, apperrors.CodeForbidden)

	logged, _, err := f.auth.Login(ctx, "ANN@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	_, _, err = f.auth.Login(ctx, "ann@example.com", "wrong")
	requireCode(t, err, apperrors.CodeUnauthorized)
	wrongPassword := apperrors.ToDomainError(err).Message

	_, _, err = f.auth.Login(ctx, "nobody@example.com", "secret1")
	requireCode(t, err, apperrors.CodeUnauthorized)
	assert.Equal(t, wrongPassword, apperrors.ToDomainError(err).Message, "no account enumeration")
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ann := f.user(t, "ann@example.com", domain.RoleTester)
	bo := f.user(t, "bo@example.com", domain.RoleTester)

	_, err := f.auth.UpdateProfile(ctx, ann, bo.ID, ProfileInput{Name: strPtr("x")})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = f.auth.UpdateProfile(ctx, ann, ann.ID, ProfileInput{Email: strPtr("bo@example.com")})
	requireCode(t, err, apperrors.CodeConflict)

	updated, err := f.auth.UpdateProfile(ctx, ann, ann.ID, ProfileInput{Name: strPtr("Ann B"), Password: strPtr("newpass")})
	require.NoError(t, err)
	assert.Equal(t, "Ann B", updated.Name)

	_, _, err = f.auth.Login(ctx, "ann@example.com", "newpass")
	assert.NoError(t, err)
}

func TestAdminUserManagement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", domain.RoleAdmin)
	tester := f.user(t, "t@example.com", domain.RoleTester)
	dev := f.user(t, "d@example.com", domain.RoleDeveloper)

	_, err := f.users.List(ctx, tester, "")
	requireCode(t, err, apperrors.CodeForbidden)

	all, err := f.users.List(ctx, admin, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	devs, err := f.users.Developers(ctx, admin)
	require.NoError(t, err)
	require.Len(t, devs, 1)
	assert.Equal(t, dev.ID, devs[0].ID)

	promoted, err := f.users.Update(ctx, admin, tester.ID, AdminUserInput{Role: strPtr("Developer")})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDeveloper, promoted.Role)

	_, err = f.users.Update(ctx, admin, admin.ID, AdminUserInput{Role: strPtr("Tester")})
	requireCode(t, err, apperrors.CodeForbidden)

	requireCode(t, f.users.Delete(ctx, admin, admin.ID), apperrors.CodeForbidden)
	requireCode(t, f.users.Delete(ctx, tester, dev.ID), apperrors.CodeForbidden)
	requireCode(t, f.users.Delete(ctx, admin, "missing"), apperrors.CodeNotFound)
}

func TestDeletingDeveloperUnassignsBugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", domain.RoleAdmin)
	tester := f.user(t, "t@example.com", domain.RoleTester)
	dev := f.user(t, "d@example.com", domain.RoleDeveloper)

	bug, err := f.bugs.Create(ctx, tester, CreateBugInput{Title: "t", Description: "d"})
	require.NoError(t, err)
	_, err = f.bugs.Update(ctx, admin, bug.ID, UpdateBugInput{AssignSet: true, AssignedTo: &dev.ID})
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, admin, dev.ID))

	stored, err := f.bugs.Get(ctx, admin, bug.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)

	names, err := f.users.Names(ctx, tester.ID, dev.ID, tester.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{tester.ID: "t@example.com", dev.ID: ""}, names)
}


func TestRoleChangeAwayFromDeveloperUnassignsBugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.user(t, "admin@example.com", domain.RoleAdmin)
	tester := f.user(t, "t@example.com", domain.RoleTester)
	dev := f.user(t, "d@example.com", domain.RoleDeveloper)
	other := f.user(t, "o@example.com", domain.RoleDeveloper)

	mine, err := f.bugs.Create(ctx, tester, CreateBugInput{Title: "mine", Description: "d"})
	require.NoError(t, err)
	theirs, err := f.bugs.Create(ctx, tester, CreateBugInput{Title: "theirs", Description: "d"})
	require.NoError(t, err)
	_, err = f.bugs.Update(ctx, admin, mine.ID, UpdateBugInput{AssignSet: true, AssignedTo: &dev.ID})
	require.NoError(t, err)
	_, err = f.bugs.Update(ctx, admin, theirs.ID, UpdateBugInput{AssignSet: true, AssignedTo: &other.ID})
	require.NoError(t, err)

	// a rename keeps the assignment
	_, err = f.users.Update(ctx, admin, dev.ID, AdminUserInput{Name: strPtr("Dee")})
	require.NoError(t, err)
	stored, err := f.bugs.Get(ctx, admin, mine.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsAssignedTo(dev.ID))

	demoted, err := f.users.Update(ctx, admin, dev.ID, AdminUserInput{Role: strPtr("Tester")})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTester, demoted.Role)

	stored, err = f.bugs.Get(ctx, admin, mine.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.AssignedTo)

	untouched, err := f.bugs.Get(ctx, admin, theirs.ID)
	require.NoError(t, err)
	assert.True(t, untouched.IsAssignedTo(other.ID))
}
