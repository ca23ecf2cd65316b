package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/api/http/handlers"
	"github.com/spec-kit/bug-tracker/internal/auth"
	"github.com/spec-kit/bug-tracker/internal/policy"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Bugs           *handlers.BugsHandler
	Users          *handlers.UsersHandler
	AuthMiddleware *auth.AuthMiddleware
	Policy         *policy.Evaluator
}

// RegisterRoutes wires HTTP routes. Route gates only check that the role
// holds the action at all; ownership is decided in the services.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	api := app.Group("/api")
	authn := cfg.AuthMiddleware.Handle
	gate := func(action policy.Action) fiber.Handler { return auth.Require(cfg.Policy, action) }

	authGroup := api.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Get("/profile", authn, cfg.Auth.Profile)
	authGroup.Put("/profile/:id", authn, cfg.Auth.UpdateProfile)

	bugs := api.Group("/bugs", authn)
	bugs.Post("/", gate(policy.ActionCreateBug), cfg.Bugs.Create)
	bugs.Get("/", gate(policy.ActionListAllBugs), cfg.Bugs.List)
	bugs.Get("/my-bugs", gate(policy.ActionListOwnBugs), cfg.Bugs.ListOwn)
	bugs.Get("/:id", cfg.Bugs.Get)
	bugs.Put("/:id", cfg.Bugs.Update)
	bugs.Delete("/:id", gate(policy.ActionDeleteBug), cfg.Bugs.Delete)
	bugs.Post("/:id/comments", gate(policy.ActionAddComment), cfg.Bugs.AddComment)
	bugs.Delete("/:id/comments/:commentId", gate(policy.ActionDeleteComment), cfg.Bugs.DeleteComment)

	users := api.Group("/users", authn, gate(policy.ActionManageUsers))
	users.Get("/", cfg.Users.List)
	users.Get("/developers", cfg.Users.Developers)
	users.Get("/:id", cfg.Users.Get)
	users.Put("/:id", cfg.Users.Update)
	users.Delete("/:id", cfg.Users.Delete)
}
