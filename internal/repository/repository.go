package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

var (
	// ErrNotFound is returned when a record does not exist or the id is malformed.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail is returned when a user email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrInvalidAssignee is returned when an assignee is missing or not a developer at write time.
	ErrInvalidAssignee = errors.New("assignee must be an existing developer")
)

// UserFilter narrows user listings.
type UserFilter struct {
	Role *domain.Role
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	// Update stores the account. When the stored role is not Developer, bugs
	// assigned to the user are unassigned.
	Update(ctx context.Context, user *domain.User) error
	// Delete removes the account and unassigns its bugs.
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
}

// SortField names a sortable bug attribute.
type SortField string

const (
	SortCreatedAt SortField = "createdAt"
	SortPriority  SortField = "priority"
	SortStatus    SortField = "status"
)

// BugSort orders a listing.
type BugSort struct {
	Field      SortField
	Descending bool
}

// DefaultBugSort is newest first.
var DefaultBugSort = BugSort{Field: SortCreatedAt, Descending: true}

// ParseBugSort reads "field" or "-field". Empty input yields DefaultBugSort.
func ParseBugSort(raw string) (BugSort, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBugSort, true
	}
	sort := BugSort{}
	if strings.HasPrefix(raw, "-") {
		sort.Descending = true
		raw = raw[1:]
	}
	switch SortField(raw) {
	case SortCreatedAt, SortPriority, SortStatus:
		sort.Field = SortField(raw)
		return sort, true
	default:
		return BugSort{}, false
	}
}

// BugFilter captures exact-match filters plus paging for bug listings.
type BugFilter struct {
	CreatedBy  *string
	AssignedTo *string
	Status     *domain.BugStatus
	Priority   *domain.BugPriority
	Sort       BugSort
	Limit      int
	Offset     int
}

// BugRepository encapsulates bug persistence. Each method is atomic for a
// single bug.
type BugRepository interface {
	Create(ctx context.Context, bug *domain.Bug) error
	GetByID(ctx context.Context, id string) (*domain.Bug, error)
	// Update applies patch and returns the stored bug. When the patch sets an
	// assignee, the assignee is re-checked as part of the write.
	Update(ctx context.Context, id string, patch domain.BugPatch) (*domain.Bug, error)
	Delete(ctx context.Context, id string) error
	// List returns one page of matches and the total match count.
	List(ctx context.Context, filter BugFilter) ([]domain.Bug, int64, error)
	AddComment(ctx context.Context, bugID string, comment domain.Comment) (*domain.Bug, error)
	DeleteComment(ctx context.Context, bugID, commentID string) error
}

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Stores bundles the repositories of one backend.
type Stores struct {
	Users  UserRepository
	Bugs   BugRepository
	Health Pinger
}
