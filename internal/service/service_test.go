package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/events"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

type fixture struct {
	stores     repository.Stores
	dispatcher events.Dispatcher
	published  []events.Event
	auth       *AuthService
	users      *UserService
	bugs       *BugService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		stores:     repository.NewMemoryStore().Stores(),
		dispatcher: events.NewInMemoryDispatcher(),
	}
	events.SubscribeAll(f.dispatcher, func(_ context.Context, e events.Event) error {
		f.published = append(f.published, e)
		return nil
	})

	cfg := config.Config{
		App:  config.AppConfig{Name: "bug-tracker"},
		Auth: config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 60, BcryptCost: bcrypt.MinCost},
		Bugs: config.BugsConfig{DefaultPageSize: 10, MaxPageSize: 100},
	}
	evaluator := policy.New(nil)
	f.auth = NewAuthService(cfg, f.stores.Users)
	f.users = NewUserService(f.stores.Users, evaluator)
	f.bugs = NewBugService(BugDependencies{
		BugRepo:    f.stores.Bugs,
		UserRepo:   f.stores.Users,
		Policy:     evaluator,
		Dispatcher: f.dispatcher,
		Paging:     cfg.Bugs,
	})
	return f
}

func (f *fixture) user(t *testing.T, email string, role domain.Role) policy.Actor {
	t.Helper()
	u, err := f.auth.Provision(context.Background(), RegisterInput{
		Name:     email,
		Email:    email,
		Password: "secret1",
		Role:     string(role),
	})
	require.NoError(t, err)
	return policy.Actor{ID: u.ID, Role: u.Role}
}

func (f *fixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.True(t, apperrors.HasCode(err, code), "want %s, got %v", code, err)
}

func strPtr(s string) *string { return &s }
