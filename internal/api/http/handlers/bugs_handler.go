package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/bug-tracker/internal/api/dto"
	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/service"
)

// BugsHandler manages bug and comment endpoints.
type BugsHandler struct {
	bugs  *service.BugService
	users *service.UserService
}

// NewBugsHandler constructs handler.
func NewBugsHandler(bugService *service.BugService, userService *service.UserService) *BugsHandler {
	return &BugsHandler{bugs: bugService, users: userService}
}

// Create POST /bugs.
func (h *BugsHandler) Create(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateBugRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	bug, err := h.bugs.Create(c.UserContext(), actor, createBugInput(req))
	if err != nil {
		return err
	}
	return h.respondBug(c, http.StatusCreated, "Bug created successfully", bug)
}

// List GET /bugs.
func (h *BugsHandler) List(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query, err := listQuery(c)
	if err != nil {
		return err
	}
	page, err := h.bugs.List(c.UserContext(), actor, query)
	if err != nil {
		return err
	}
	return h.respondPage(c, page)
}

// ListOwn GET /bugs/my-bugs.
func (h *BugsHandler) ListOwn(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	query, err := listQuery(c)
	if err != nil {
		return err
	}
	page, err := h.bugs.ListOwn(c.UserContext(), actor, query)
	if err != nil {
		return err
	}
	return h.respondPage(c, page)
}

// Get GET /bugs/:id.
func (h *BugsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	bug, err := h.bugs.Get(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respondBug(c, http.StatusOK, "Bug loaded", bug)
}

// Update PUT /bugs/:id.
func (h *BugsHandler) Update(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.UpdateBugRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	bug, err := h.bugs.Update(c.UserContext(), actor, c.Params("id"), updateBugInput(req))
	if err != nil {
		return err
	}
	return h.respondBug(c, http.StatusOK, "Bug updated successfully", bug)
}

// Delete DELETE /bugs/:id.
func (h *BugsHandler) Delete(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.bugs.Delete(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Bug deleted successfully", nil)
}

// AddComment POST /bugs/:id/comments.
func (h *BugsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := decodeStrict(c, &req); err != nil {
		return err
	}
	bug, err := h.bugs.AddComment(c.UserContext(), actor, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return h.respondBug(c, http.StatusCreated, "Comment added successfully", bug)
}

// DeleteComment DELETE /bugs/:id/comments/:commentId.
func (h *BugsHandler) DeleteComment(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	if err := h.bugs.DeleteComment(c.UserContext(), actor, c.Params("id"), c.Params("commentId")); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "Comment deleted successfully", nil)
}

func listQuery(c *fiber.Ctx) (service.ListQuery, error) {
	page, err := queryInt(c, "page")
	if err != nil {
		return service.ListQuery{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return service.ListQuery{}, err
	}
	return service.ListQuery{
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		AssignedTo: c.Query("assignedTo"),
		Sort:       c.Query("sort"),
		Page:       page,
		Limit:      limit,
	}, nil
}

func (h *BugsHandler) respondBug(c *fiber.Ctx, status int, message string, bug *domain.Bug) error {
	names, err := h.users.Names(c.UserContext(), dto.UserIDs(bug)...)
	if err != nil {
		return err
	}
	return respond(c, status, message, fiber.Map{"bug": dto.NewBugResponse(bug, names)})
}

func (h *BugsHandler) respondPage(c *fiber.Ctx, page *service.BugPage) error {
	refs := make([]*domain.Bug, 0, len(page.Bugs))
	for i := range page.Bugs {
		refs = append(refs, &page.Bugs[i])
	}
	names, err := h.users.Names(c.UserContext(), dto.UserIDs(refs...)...)
	if err != nil {
		return err
	}
	items := make([]dto.BugResponse, 0, len(refs))
	for _, b := range refs {
		items = append(items, dto.NewBugResponse(b, names))
	}
	return respond(c, http.StatusOK, "Bugs loaded", fiber.Map{
		"bugs":       items,
		"pagination": paginationResponse(page.Pagination),
	})
}

// createBugInput keeps only the presence of status and assignedTo; creation
// rejects both.
func createBugInput(req dto.CreateBugRequest) service.CreateBugInput {
	return service.CreateBugInput{
		Title:         req.Title,
		Description:   req.Description,
		Priority:      req.Priority,
		HasStatus:     req.Status.Set,
		HasAssignedTo: req.AssignedTo.Set,
	}
}

func updateBugInput(req dto.UpdateBugRequest) service.UpdateBugInput {
	return service.UpdateBugInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssignSet:   req.AssignedTo.Set,
		AssignedTo:  req.AssignedTo.Value,
	}
}

func paginationResponse(p service.Pagination) dto.PaginationResponse {
	return dto.PaginationResponse{
		TotalItems:   p.TotalItems,
		TotalPages:   p.TotalPages,
		CurrentPage:  p.CurrentPage,
		ItemsPerPage: p.ItemsPerPage,
	}
}
