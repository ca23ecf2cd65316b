package app

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/bug-tracker/internal/api/http"
	"github.com/spec-kit/bug-tracker/internal/api/http/handlers"
	"github.com/spec-kit/bug-tracker/internal/auth"
	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/events"
	"github.com/spec-kit/bug-tracker/internal/observability"
	"github.com/spec-kit/bug-tracker/internal/persistence"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	"github.com/spec-kit/bug-tracker/internal/service"
	"github.com/spec-kit/bug-tracker/internal/worker"
)

// Deps are the long-lived collaborators a server is built from.
type Deps struct {
	Config  *config.Config
	Logger  *zap.Logger
	Stores  repository.Stores
	Redis   *persistence.Redis
	Metrics *observability.Metrics
}

// NewServer wires services, handlers and routes into a fiber app.
func NewServer(deps Deps) *fiber.App {
	cfg := deps.Config
	logger := deps.Logger
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observability.NewMetrics()
	}

	evaluator := policy.New(nil)
	dispatcher := events.NewInMemoryDispatcher()

	var publisher service.Publisher
	if deps.Redis != nil {
		publisher = deps.Redis
	}
	notifications := service.NewNotificationService(dispatcher, publisher, metrics, logger, cfg.Events)
	worker.StartNotificationWorker(notifications, logger)

	authService := service.NewAuthService(*cfg, deps.Stores.Users)
	userService := service.NewUserService(deps.Stores.Users, evaluator)
	bugService := service.NewBugService(service.BugDependencies{
		BugRepo:    deps.Stores.Bugs,
		UserRepo:   deps.Stores.Users,
		Policy:     evaluator,
		Dispatcher: dispatcher,
		Logger:     logger,
		Paging:     cfg.Bugs,
	})

	checks := map[string]handlers.Checker{"store": deps.Stores.Health}
	if deps.Redis.Enabled() {
		checks["redis"] = deps.Redis
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ErrorHandler: httptransport.ErrorHandler,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Bugs:           handlers.NewBugsHandler(bugService, userService),
		Users:          handlers.NewUsersHandler(userService),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), deps.Stores.Users),
		Policy:         evaluator,
	})
	return app
}
