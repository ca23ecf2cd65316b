package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

// UserService implements the admin user-management surface.
type UserService struct {
	users  repository.UserRepository
	policy *policy.Evaluator
}

// NewUserService constructs the service.
func NewUserService(users repository.UserRepository, evaluator *policy.Evaluator) *UserService {
	return &UserService{users: users, policy: evaluator}
}

// AdminUserInput is a sparse admin edit of another account.
type AdminUserInput struct {
	Name  *string
	Email *string
	Role  *string
}

func (s *UserService) authorize(actor policy.Actor) error {
	if d := s.policy.Authorize(actor, policy.ActionManageUsers, policy.Resource{}); !d.Allowed {
		return apperrors.NewForbidden(d.Reason)
	}
	return nil
}

// List returns every account, optionally narrowed to one role.
func (s *UserService) List(ctx context.Context, actor policy.Actor, role string) ([]domain.User, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	filter := repository.UserFilter{}
	if strings.TrimSpace(role) != "" {
		parsed, ok := domain.ParseRole(role)
		if !ok {
			return nil, apperrors.NewValidationError("role must be one of Admin, Tester, Developer", nil)
		}
		filter.Role = &parsed
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// Developers lists the accounts bugs can be assigned to.
func (s *UserService) Developers(ctx context.Context, actor policy.Actor) ([]domain.User, error) {
	return s.List(ctx, actor, string(domain.RoleDeveloper))
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, actor policy.Actor, id string) (*domain.User, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

// Update edits name, email or role of any account.
func (s *UserService) Update(ctx context.Context, actor policy.Actor, id string, input AdminUserInput) (*domain.User, error) {
	if err := s.authorize(actor); err != nil {
		return nil, err
	}

	var errs fieldErrors
	var (
		name, email string
		role        domain.Role
	)
	if input.Name != nil {
		name = errs.text("name", *input.Name, 100)
	}
	if input.Email != nil {
		email = errs.email(*input.Email)
	}
	if input.Role != nil {
		role = errs.role(*input.Role)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if input.Name == nil && input.Email == nil && input.Role == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if input.Role != nil && user.ID == actor.ID && role != domain.RoleAdmin {
		return nil, apperrors.NewForbidden("cannot remove your own admin role")
	}
	if input.Name != nil {
		user.Name = name
	}
	if input.Email != nil {
		user.Email = email
	}
	if input.Role != nil {
		user.Role = role
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

// Delete removes an account. Bugs assigned to it become unassigned.
func (s *UserService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if err := s.authorize(actor); err != nil {
		return err
	}
	if id == actor.ID {
		return apperrors.NewForbidden("cannot delete your own account")
	}
	return mapUserRepoError(s.users.Delete(ctx, id))
}

// Names resolves display names for ids. Deleted users map to "".
func (s *UserService) Names(ctx context.Context, ids ...string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, seen := names[id]; seen {
			continue
		}
		user, err := s.users.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			names[id] = ""
			continue
		}
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		names[id] = user.Name
	}
	return names, nil
}
