package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/bug-tracker/internal/config"
	"github.com/spec-kit/bug-tracker/internal/domain"
	"github.com/spec-kit/bug-tracker/internal/events"
	"github.com/spec-kit/bug-tracker/internal/policy"
	"github.com/spec-kit/bug-tracker/internal/repository"
	apperrors "github.com/spec-kit/bug-tracker/pkg/util/errorutil"
)

const invalidAssignee = "invalid assignee: user must exist and have the Developer role"

// BugService coordinates the bug lifecycle. Every operation validates input,
// then authorizes through the policy evaluator, then writes.
type BugService struct {
	bugs       repository.BugRepository
	users      repository.UserRepository
	policy     *policy.Evaluator
	dispatcher events.Dispatcher
	logger     *zap.Logger
	paging     config.BugsConfig
	now        func() time.Time
}

// BugDependencies bundles collaborators for the bug service.
type BugDependencies struct {
	BugRepo    repository.BugRepository
	UserRepo   repository.UserRepository
	Policy     *policy.Evaluator
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Paging     config.BugsConfig
}

// NewBugService constructs the service.
func NewBugService(deps BugDependencies) *BugService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	evaluator := deps.Policy
	if evaluator == nil {
		evaluator = policy.New(nil)
	}
	paging := deps.Paging
	if paging.DefaultPageSize <= 0 {
		paging.DefaultPageSize = 10
	}
	if paging.MaxPageSize <= 0 {
		paging.MaxPageSize = 100
	}
	return &BugService{
		bugs:       deps.BugRepo,
		users:      deps.UserRepo,
		policy:     evaluator,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		paging:     paging,
		now:        time.Now,
	}
}

// CreateBugInput is the creation payload. The Has flags record keys the
// client sent that creation does not accept.
type CreateBugInput struct {
	Title       string
	Description string
	Priority    string

	HasStatus     bool
	HasAssignedTo bool
}

// UpdateBugInput is a sparse patch. AssignedTo distinguishes an absent key
// (AssignSet false) from an explicit null (AssignSet true, nil value).
type UpdateBugInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssignSet   bool
	AssignedTo  *string
}

// ListQuery holds listing filters and paging. Zero Page and Limit use defaults.
type ListQuery struct {
	Status     string
	Priority   string
	AssignedTo string
	Sort       string
	Page       int
	Limit      int
}

// Pagination describes the page returned alongside a listing.
type Pagination struct {
	TotalItems   int64
	TotalPages   int
	CurrentPage  int
	ItemsPerPage int
}

// BugPage is one page of a listing.
type BugPage struct {
	Bugs       []domain.Bug
	Pagination Pagination
}

// Create files a new bug. Status is always Open and the bug starts unassigned.
func (s *BugService) Create(ctx context.Context, actor policy.Actor, input CreateBugInput) (*domain.Bug, error) {
	var errs fieldErrors
	if input.HasStatus {
		errs.add("status cannot be set when creating a bug")
	}
	if input.HasAssignedTo {
		errs.add("assignedTo cannot be set when creating a bug")
	}
	title := errs.text("title", input.Title, domain.MaxTitleLength)
	description := errs.text("description", input.Description, domain.MaxDescriptionLength)
	priority := domain.BugPriorityMedium
	if strings.TrimSpace(input.Priority) != "" {
		priority = errs.priority(input.Priority)
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	if d := s.policy.Authorize(actor, policy.ActionCreateBug, policy.Resource{}); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}

	bug := &domain.Bug{
		Title:       title,
		Description: description,
		Status:      domain.BugStatusOpen,
		Priority:    priority,
		CreatedBy:   actor.ID,
		AssignedTo:  nil,
		Comments:    []domain.Comment{},
	}
	if err := s.bugs.Create(ctx, bug); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventBugCreated, bug.ID, eventActor(actor), events.BugCreatedPayload{
		Title:    bug.Title,
		Priority: bug.Priority,
	}))
	return bug, nil
}

// Get loads a bug the actor may view.
func (s *BugService) Get(ctx context.Context, actor policy.Actor, id string) (*domain.Bug, error) {
	bug, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.Authorize(actor, policy.ActionViewBug, policy.Resource{Bug: bug}); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}
	return bug, nil
}

// Update applies a sparse patch after checking every action it implies.
func (s *BugService) Update(ctx context.Context, actor policy.Actor, id string, input UpdateBugInput) (*domain.Bug, error) {
	patch, err := s.buildPatch(input)
	if err != nil {
		return nil, err
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := s.policy.AuthorizePatch(actor, current, patch); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}
	if patch.AssignSet && patch.AssignedTo != nil {
		if err := s.checkAssignee(ctx, *patch.AssignedTo); err != nil {
			return nil, err
		}
	}

	updated, err := s.bugs.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperrors.NewNotFound("bug", nil)
	case errors.Is(err, repository.ErrInvalidAssignee):
		return nil, apperrors.NewValidationError(invalidAssignee, nil)
	case err != nil:
		return nil, apperrors.NewInternalError(err)
	}

	s.publishUpdate(ctx, actor, current, updated, patch)
	return updated, nil
}

func (s *BugService) buildPatch(input UpdateBugInput) (domain.BugPatch, error) {
	var (
		errs  fieldErrors
		patch domain.BugPatch
	)
	if input.Title != nil {
		title := errs.text("title", *input.Title, domain.MaxTitleLength)
		patch.Title = &title
	}
	if input.Description != nil {
		description := errs.text("description", *input.Description, domain.MaxDescriptionLength)
		patch.Description = &description
	}
	if input.Status != nil {
		status := errs.status(*input.Status)
		patch.Status = &status
	}
	if input.Priority != nil {
		priority := errs.priority(*input.Priority)
		patch.Priority = &priority
	}
	if input.AssignSet {
		patch.AssignSet = true
		if input.AssignedTo != nil {
			assignee := strings.TrimSpace(*input.AssignedTo)
			if assignee == "" {
				errs.add("assignedTo must be a user id or null")
			}
			patch.AssignedTo = &assignee
		}
	}
	if err := errs.err(); err != nil {
		return domain.BugPatch{}, err
	}
	if patch.Empty() {
		return domain.BugPatch{}, apperrors.NewValidationError("no fields to update", nil)
	}
	return patch, nil
}

func (s *BugService) checkAssignee(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewValidationError(invalidAssignee, nil)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if user.Role != domain.RoleDeveloper {
		return apperrors.NewValidationError(invalidAssignee, nil)
	}
	return nil
}

// Delete removes a bug and its comments. Non-admins are refused before the
// bug is looked up.
func (s *BugService) Delete(ctx context.Context, actor policy.Actor, id string) error {
	if d := s.policy.Authorize(actor, policy.ActionDeleteBug, policy.Resource{}); !d.Allowed {
		return apperrors.NewForbidden(d.Reason)
	}
	err := s.bugs.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("bug", nil)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	s.publish(ctx, events.NewEvent(events.EventBugDeleted, id, eventActor(actor), nil))
	return nil
}

// List returns a filtered page over all bugs.
func (s *BugService) List(ctx context.Context, actor policy.Actor, query ListQuery) (*BugPage, error) {
	filter, page, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	if d := s.policy.Authorize(actor, policy.ActionListAllBugs, policy.Resource{}); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}
	return s.page(ctx, filter, page)
}

// ListOwn returns the bugs a tester created or a developer is assigned.
func (s *BugService) ListOwn(ctx context.Context, actor policy.Actor, query ListQuery) (*BugPage, error) {
	filter, page, err := s.buildFilter(query)
	if err != nil {
		return nil, err
	}
	if d := s.policy.Authorize(actor, policy.ActionListOwnBugs, policy.Resource{}); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}

	self := actor.ID
	switch actor.Role {
	case domain.RoleTester:
		filter.CreatedBy = &self
	case domain.RoleDeveloper:
		filter.AssignedTo = &self
	default:
		return nil, apperrors.NewForbidden(s.policy.DenyReason(policy.ActionListOwnBugs))
	}
	return s.page(ctx, filter, page)
}

// buildFilter validates query and returns the store filter with the requested page.
func (s *BugService) buildFilter(query ListQuery) (repository.BugFilter, int, error) {
	var errs fieldErrors
	filter := repository.BugFilter{}

	if strings.TrimSpace(query.Status) != "" {
		status := errs.status(query.Status)
		filter.Status = &status
	}
	if strings.TrimSpace(query.Priority) != "" {
		priority := errs.priority(query.Priority)
		filter.Priority = &priority
	}
	if assignee := strings.TrimSpace(query.AssignedTo); assignee != "" {
		filter.AssignedTo = &assignee
	}
	order, ok := repository.ParseBugSort(query.Sort)
	if !ok {
		errs.add("sort must be one of createdAt, priority, status, optionally prefixed with -")
	}
	filter.Sort = order

	page := query.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		errs.add("page must be at least 1")
	}
	limit := query.Limit
	if limit == 0 {
		limit = s.paging.DefaultPageSize
	}
	if limit < 1 {
		errs.add("limit must be at least 1")
	}
	if limit > s.paging.MaxPageSize {
		limit = s.paging.MaxPageSize
	}
	if page > 1 && limit >= 1 && page-1 > math.MaxInt/limit {
		errs.add("page is too large")
	}
	if err := errs.err(); err != nil {
		return repository.BugFilter{}, 0, err
	}

	filter.Limit = limit
	filter.Offset = (page - 1) * limit
	return filter, page, nil
}

func (s *BugService) page(ctx context.Context, filter repository.BugFilter, current int) (*BugPage, error) {
	bugs, total, err := s.bugs.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &BugPage{
		Bugs: bugs,
		Pagination: Pagination{
			TotalItems:   total,
			TotalPages:   totalPages,
			CurrentPage:  current,
			ItemsPerPage: filter.Limit,
		},
	}, nil
}

// AddComment appends a comment to a bug the actor may comment on.
func (s *BugService) AddComment(ctx context.Context, actor policy.Actor, bugID, text string) (*domain.Bug, error) {
	var errs fieldErrors
	text = errs.text("text", text, domain.MaxCommentLength)
	if err := errs.err(); err != nil {
		return nil, err
	}

	bug, err := s.load(ctx, bugID)
	if err != nil {
		return nil, err
	}
	if d := s.policy.Authorize(actor, policy.ActionAddComment, policy.Resource{Bug: bug}); !d.Allowed {
		return nil, apperrors.NewForbidden(d.Reason)
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedBy: actor.ID,
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}
	updated, err := s.bugs.AddComment(ctx, bugID, comment)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("bug", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventCommentAdded, bugID, eventActor(actor), events.CommentPayload{
		CommentID:   comment.ID,
		BodyPreview: preview(comment.Text),
	}))
	return updated, nil
}

// DeleteComment removes a comment written by the actor, or any comment for admins.
func (s *BugService) DeleteComment(ctx context.Context, actor policy.Actor, bugID, commentID string) error {
	bug, err := s.load(ctx, bugID)
	if err != nil {
		return err
	}
	comment, ok := bug.FindComment(commentID)
	if !ok {
		return apperrors.NewNotFound("comment", nil)
	}
	if d := s.policy.Authorize(actor, policy.ActionDeleteComment, policy.Resource{Bug: bug, Comment: comment}); !d.Allowed {
		return apperrors.NewForbidden(d.Reason)
	}

	err = s.bugs.DeleteComment(ctx, bugID, commentID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("comment", nil)
	}
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.NewEvent(events.EventCommentDeleted, bugID, eventActor(actor), events.CommentPayload{
		CommentID: commentID,
	}))
	return nil
}

func (s *BugService) load(ctx context.Context, id string) (*domain.Bug, error) {
	bug, err := s.bugs.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewNotFound("bug", nil)
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return bug, nil
}

func (s *BugService) publishUpdate(ctx context.Context, actor policy.Actor, before, after *domain.Bug, patch domain.BugPatch) {
	who := eventActor(actor)
	s.publish(ctx, events.NewEvent(events.EventBugUpdated, after.ID, who, events.BugUpdatedPayload{
		Fields: patchFields(patch),
	}))
	if before.Status != after.Status {
		s.publish(ctx, events.NewEvent(events.EventBugStatusChanged, after.ID, who, events.BugStatusChangedPayload{
			OldStatus: before.Status,
			NewStatus: after.Status,
		}))
	}
	if patch.AssignSet && !sameAssignee(before.AssignedTo, after.AssignedTo) {
		s.publish(ctx, events.NewEvent(events.EventBugAssigned, after.ID, who, events.BugAssignedPayload{
			OldAssignee: before.AssignedTo,
			NewAssignee: after.AssignedTo,
		}))
	}
}

// publish never fails the caller; the write has already happened.
func (s *BugService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("bug_id", event.BugID),
			zap.Error(err))
	}
}

func eventActor(actor policy.Actor) events.Actor {
	return events.Actor{ID: actor.ID, Role: actor.Role}
}

func patchFields(patch domain.BugPatch) []string {
	var fields []string
	if patch.Title != nil {
		fields = append(fields, "title")
	}
	if patch.Description != nil {
		fields = append(fields, "description")
	}
	if patch.Status != nil {
		fields = append(fields, "status")
	}
	if patch.Priority != nil {
		fields = append(fields, "priority")
	}
	if patch.AssignSet {
		fields = append(fields, "assignedTo")
	}
	return fields
}

func sameAssignee(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func preview(text string) string {
	const previewRunes = 80
	if utf8.RuneCountInString(text) <= previewRunes {
		return text
	}
	return string([]rune(text)[:previewRunes]) + "..."
}
