package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/api/dto"
	"github.com/spec-kit/bug-tracker/internal/service"
)

// UsersHandler exposes admin user management.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// List handles GET /users, optionally filtered by ?role=.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	users, err := h.users.List(c.UserContext(), actor, c.Query("role"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Users loaded", fiber.Map{"users": dto.NewUserResponses(users)})
}

// Developers handles GET /users/developers.
func (h *UsersHandler) Developers(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	users, err := h.users.Developers(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Developers loaded", fiber.Map{"users": dto.NewUserResponses(users)})
}

// Get handles GET /users/:id.
func (h *UsersHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	user, err := h.users.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User loaded", fiber.Map{"user": dto.NewUserResponse(user)})
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.AdminUserUpdateRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	user, err := h.users.Update(c.UserContext(), actor, c.Params("id"), service.AdminUserInput{
		Name:  req.Name,
		Email: req.Email,
		Role:  req.Role,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User updated successfully", fiber.Map{"user": dto.NewUserResponse(user)})
}

// Delete handles DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.users.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "User deleted successfully", nil)
}
