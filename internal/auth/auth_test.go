package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", time.Hour, "bug-tracker")
	user := &domain.User{ID: "u-1", Role: domain.RoleTester}

	token, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.Equal(t, "u-1", token.SubjectID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	claims, err := tm.ParseToken(token.Value)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, domain.RoleTester, claims.Role)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	tm := NewTokenManager("secret", time.Minute, "bug-tracker")
	token, err := tm.GenerateToken(&domain.User{ID: "u-1", Role: domain.RoleAdmin})
	require.NoError(t, err)

	other := NewTokenManager("other", time.Minute, "bug-tracker")
	_, err = other.ParseToken(token.Value)
	assert.Error(t, err)

	tm.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = tm.ParseToken(token.Value)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter22", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter22"))
	assert.ErrorIs(t, ComparePassword(hash, "wrong"), ErrPasswordMismatch)
}

func newTestApp(t *testing.T) (*fiber.App, *TokenManager, repository.UserRepository) {
	t.Helper()
	stores := repository.NewMemoryStore().Stores()
	tm := NewTokenManager("secret", time.Hour, "bug-tracker")
	mw := NewAuthMiddleware(tm, stores.Users)
	evaluator := policy.New(nil)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	app.Get("/me", mw.Handle, func(c *fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrUnauthorized
		}
		return c.SendString(p.User.Email)
	})
	app.Get("/admin", mw.Handle, Require(evaluator, policy.ActionManageUsers), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})
	return app, tm, stores.Users
}

func call(t *testing.T, app *fiber.App, path, token string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestAuthMiddleware(t *testing.T) {
	app, tm, users := newTestApp(t)
	ctx := context.Background()

	tester := &domain.User{Name: "T", Email: "t@example.com", PasswordHash: "x", Role: domain.RoleTester}
	require.NoError(t, users.Create(ctx, tester))
	token, err := tm.GenerateToken(tester)
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", ""))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", "garbage"))
	assert.Equal(t, http.StatusOK, call(t, app, "/me", token.Value))
	assert.Equal(t, http.StatusForbidden, call(t, app, "/admin", token.Value))

	// promotion takes effect without a new token
	tester.Role = domain.RoleAdmin
	require.NoError(t, users.Update(ctx, tester))
	assert.Equal(t, http.StatusOK, call(t, app, "/admin", token.Value))

	require.NoError(t, users.Delete(ctx, tester.ID))
	assert.Equal(t, http.StatusUnauthorized, call(t, app, "/me", token.Value))
}
