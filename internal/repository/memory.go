package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

// MemoryStore keeps users and bugs in process. It backs local development and
// tests; all state is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]domain.User
	bugs  map[string]domain.Bug
	now   func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]domain.User),
		bugs:  make(map[string]domain.Bug),
		now:   time.Now,
	}
}

// Stores exposes the memory store through the repository interfaces.
func (s *MemoryStore) Stores() Stores {
	return Stores{Users: memoryUsers{s}, Bugs: memoryBugs{s}, Health: s}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// tick returns a strictly increasing timestamp so ordering by creation time is stable.
func (s *MemoryStore) tick(last time.Time) time.Time {
	t := s.now().UTC()
	if !t.After(last) {
		t = last.Add(time.Microsecond)
	}
	return t
}

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = r.s.now().UTC()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r memoryUsers) Update(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range r.s.users {
		if id != user.ID && existing.Email == user.Email {
			return ErrDuplicateEmail
		}
	}
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = r.s.now().UTC()
	r.s.users[user.ID] = *user
	if user.Role != domain.RoleDeveloper {
		r.s.unassign(user.ID)
	}
	return nil
}

func (r memoryUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.users, id)
	r.s.unassign(id)
	return nil
}

// unassign clears userID from every bug. Callers hold the write lock.
func (s *MemoryStore) unassign(userID string) {
	for bugID, bug := range s.bugs {
		if bug.IsAssignedTo(userID) {
			bug.AssignedTo = nil
			bug.UpdatedAt = s.tick(bug.UpdatedAt)
			s.bugs[bugID] = bug
		}
	}
}

func (r memoryUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r memoryUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (r memoryUsers) List(_ context.Context, filter UserFilter) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.User, 0, len(r.s.users))
	for _, user := range r.s.users {
		if filter.Role != nil && user.Role != *filter.Role {
			continue
		}
		result = append(result, user)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type memoryBugs struct{ s *MemoryStore }

func (r memoryBugs) Create(_ context.Context, bug *domain.Bug) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest time.Time
	for _, existing := range r.s.bugs {
		if existing.CreatedAt.After(latest) {
			latest = existing.CreatedAt
		}
	}
	bug.ID = uuid.NewString()
	bug.CreatedAt = r.s.tick(latest)
	bug.UpdatedAt = bug.CreatedAt
	if bug.Comments == nil {
		bug.Comments = []domain.Comment{}
	}
	r.s.bugs[bug.ID] = cloneBug(*bug)
	return nil
}

func (r memoryBugs) GetByID(_ context.Context, id string) (*domain.Bug, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	bug, ok := r.s.bugs[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneBug(bug)
	return &out, nil
}

func (r memoryBugs) Update(_ context.Context, id string, patch domain.BugPatch) (*domain.Bug, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bug, ok := r.s.bugs[id]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.AssignSet && patch.AssignedTo != nil {
		assignee, ok := r.s.users[*patch.AssignedTo]
		if !ok || assignee.Role != domain.RoleDeveloper {
			return nil, ErrInvalidAssignee
		}
	}
	patch.Apply(&bug)
	bug.UpdatedAt = r.s.tick(bug.UpdatedAt)
	r.s.bugs[id] = bug
	out := cloneBug(bug)
	return &out, nil
}

func (r memoryBugs) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bugs[id]; !ok {
		return ErrNotFound
	}
	delete(r.s.bugs, id)
	return nil
}

func (r memoryBugs) List(_ context.Context, filter BugFilter) ([]domain.Bug, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matches := make([]domain.Bug, 0)
	for _, bug := range r.s.bugs {
		if filter.CreatedBy != nil && bug.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && !bug.IsAssignedTo(*filter.AssignedTo) {
			continue
		}
		if filter.Status != nil && bug.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && bug.Priority != *filter.Priority {
			continue
		}
		matches = append(matches, bug)
	}
	sortBugs(matches, filter.Sort)

	total := int64(len(matches))
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > len(matches) {
		offset = len(matches)
	}
	end := len(matches)
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	page := make([]domain.Bug, 0, end-offset)
	for _, bug := range matches[offset:end] {
		page = append(page, cloneBug(bug))
	}
	return page, total, nil
}

func (r memoryBugs) AddComment(_ context.Context, bugID string, comment domain.Comment) (*domain.Bug, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bug, ok := r.s.bugs[bugID]
	if !ok {
		return nil, ErrNotFound
	}
	bug.Comments = append(append([]domain.Comment{}, bug.Comments...), comment)
	bug.UpdatedAt = r.s.tick(bug.UpdatedAt)
	r.s.bugs[bugID] = bug
	out := cloneBug(bug)
	return &out, nil
}

func (r memoryBugs) DeleteComment(_ context.Context, bugID, commentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bug, ok := r.s.bugs[bugID]
	if !ok {
		return ErrNotFound
	}
	kept := make([]domain.Comment, 0, len(bug.Comments))
	for _, c := range bug.Comments {
		if c.ID != commentID {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(bug.Comments) {
		return ErrNotFound
	}
	bug.Comments = kept
	bug.UpdatedAt = r.s.tick(bug.UpdatedAt)
	r.s.bugs[bugID] = bug
	return nil
}

func sortBugs(bugs []domain.Bug, order BugSort) {
	if order.Field == "" {
		order = DefaultBugSort
	}
	sort.SliceStable(bugs, func(i, j int) bool {
		a, b := bugs[i], bugs[j]
		var cmp int
		switch order.Field {
		case SortPriority:
			cmp = a.Priority.Rank() - b.Priority.Rank()
		case SortStatus:
			cmp = a.Status.Rank() - b.Status.Rank()
		}
		if cmp != 0 {
			if order.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		if order.Field == SortCreatedAt && !order.Descending {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		// ties on rank fall back to newest first
		return a.CreatedAt.After(b.CreatedAt)
	})
}

func cloneBug(bug domain.Bug) domain.Bug {
	if bug.AssignedTo != nil {
		assignee := *bug.AssignedTo
		bug.AssignedTo = &assignee
	}
	bug.Comments = append([]domain.Comment{}, bug.Comments...)
	return bug
}
