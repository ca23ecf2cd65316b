package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/api/dto"
	"github.com/spec-kit/bug-tracker/internal/auth"
	"github.com/spec-kit/bug-tracker/internal/service"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

// AuthHandler exposes registration, login and profile endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.UserRegisterRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	user, token, err := h.auth.Register(c.UserContext(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "User created successfully.", fiber.Map{
		"token":     token.Value,
		"expiresAt": token.ExpiresAt,
		"user":      dto.NewUserResponse(user),
	})
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.UserLoginRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	user, token, err := h.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Login successful", fiber.Map{
		"token":     token.Value,
		"expiresAt": token.ExpiresAt,
		"user":      dto.NewUserResponse(user),
	})
}

// Profile handles GET /auth/profile.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	return respond(c, http.StatusOK, "Profile loaded", fiber.Map{
		"user": dto.NewUserResponse(principal.User),
	})
}

// UpdateProfile handles PUT /auth/profile/:id.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.ProfileUpdateRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	user, err := h.auth.UpdateProfile(c.UserContext(), actor, c.Params("id"), service.ProfileInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Profile updated successfully", fiber.Map{
		"user": dto.NewUserResponse(user),
	})
}
