package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/policy"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

// Require lets the request through when the caller's role holds action in
// the capability table at any scope. Ownership is checked later by services.
func Require(evaluator *policy.Evaluator, action policy.Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !evaluator.Permits(principal.User.Role, action) {
			return apperrors.NewForbidden(evaluator.DenyReason(action))
		}
		return c.Next()
	}
}
