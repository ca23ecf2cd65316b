package service

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/bug-tracker/internal/auth"
	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

const invalidCredentials = "invalid email or password"

// AuthService coordinates registration, login and self-service profile edits.
type AuthService struct {
	users            repository.UserRepository
	tokenMgr         *auth.TokenManager
	bcryptCost       int
	allowAdminSignup bool
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:            users,
		tokenMgr:         auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL(), cfg.App.Name),
		bcryptCost:       cfg.Auth.BcryptCost,
		allowAdminSignup: cfg.Auth.AllowAdminSignup,
	}
}

// TokenManager exposes the manager so middleware verifies with the same key.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// RegisterInput is the sign-up payload. An empty role means Developer.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// ProfileInput is a sparse self-service update.
type ProfileInput struct {
	Name     *string
	Email    *string
	Password *string
}

// Register creates an account and signs the caller in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*domain.User, domain.Token, error) {
	user, err := s.create(ctx, input, s.allowAdminSignup)
	if err != nil {
		return nil, domain.Token{}, err
	}
	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// Provision creates an account of any role without issuing a token. It backs
// operator tooling and is never routed over HTTP.
func (s *AuthService) Provision(ctx context.Context, input RegisterInput) (*domain.User, error) {
	return s.create(ctx, input, true)
}

func (s *AuthService) create(ctx context.Context, input RegisterInput, adminAllowed bool) (*domain.User, error) {
	var errs fieldErrors
	name := errs.text("name", input.Name, 100)
	email := errs.email(input.Email)
	errs.password(input.Password)
	role := domain.RoleDeveloper
	if strings.TrimSpace(input.Role) != "" {
		role = errs.role(input.Role)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if role == domain.RoleAdmin && !adminAllowed {
		return nil, apperrors.NewForbidden("admin accounts cannot be self-registered")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password produce the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, domain.Token, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.Token{}, apperrors.NewValidationError("email and password are required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, domain.Token{}, apperrors.NewUnauthorized(invalidCredentials)
	}
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, domain.Token{}, apperrors.NewUnauthorized(invalidCredentials)
	}

	token, err := s.tokenMgr.GenerateToken(user)
	if err != nil {
		return nil, domain.Token{}, apperrors.NewInternalError(err)
	}
	return user, token, nil
}

// UpdateProfile lets a user edit their own name, email or password.
func (s *AuthService) UpdateProfile(ctx context.Context, actor policy.Actor, id string, input ProfileInput) (*domain.User, error) {
	if id != actor.ID {
		return nil, apperrors.NewForbidden("can only update your own profile")
	}

	var errs fieldErrors
	var name, email string
	if input.Name != nil {
		name = errs.text("name", *input.Name, 100)
	}
	if input.Email != nil {
		email = errs.email(*input.Email)
	}
	if input.Password != nil {
		errs.password(*input.Password)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}
	if input.Name == nil && input.Email == nil && input.Password == nil {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if input.Name != nil {
		user.Name = name
	}
	if input.Email != nil {
		user.Email = email
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password, s.bcryptCost)
		if err != nil {
			return nil, apperrors.NewInternalError(err)
		}
		user.PasswordHash = hash
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	return user, nil
}

func mapUserRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("user", nil)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict("email already registered", nil)
	default:
		return apperrors.NewInternalError(err)
	}
}
