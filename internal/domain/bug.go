package domain

import "time"

// BugStatus enumerates lifecycle states for bugs. Any state may follow any other.
type BugStatus string

const (
	BugStatusOpen       BugStatus = "Open"
	BugStatusInProgress BugStatus = "In Progress"
	BugStatusClosed     BugStatus = "Closed"
)

// BugPriority enumerates urgency levels.
type BugPriority string

const (
	BugPriorityLow    BugPriority = "Low"
	BugPriorityMedium BugPriority = "Medium"
	BugPriorityHigh   BugPriority = "High"
)

const (
	MaxTitleLength       = 100
	MaxDescriptionLength = 1000
	MaxCommentLength     = 1000
)

// Valid reports whether s is a known status.
func (s BugStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank orders statuses for sorting.
func (s BugStatus) Rank() int {
	switch s {
	case BugStatusOpen:
		return 0
	case BugStatusInProgress:
		return 1
	case BugStatusClosed:
		return 2
	default:
		return -1
	}
}

// Valid reports whether p is a known priority.
func (p BugPriority) Valid() bool {
	return p.Rank() >= 0
}

// Rank orders priorities from Low to High.
func (p BugPriority) Rank() int {
	switch p {
	case BugPriorityLow:
		return 0
	case BugPriorityMedium:
		return 1
	case BugPriorityHigh:
		return 2
	default:
		return -1
	}
}

// Bug is the aggregate root; comments live inside it.
type Bug struct {
	ID          string
	Title       string
	Description string
	Status      BugStatus
	Priority    BugPriority
	CreatedBy   string
	AssignedTo  *string
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Comment is a note attached to a bug.
type Comment struct {
	ID        string    `json:"id" bson:"id"`
	Text      string    `json:"text" bson:"text"`
	CreatedBy string    `json:"createdBy" bson:"created_by"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// FindComment returns the comment with id, if present.
func (b *Bug) FindComment(id string) (*Comment, bool) {
	for i := range b.Comments {
		if b.Comments[i].ID == id {
			return &b.Comments[i], true
		}
	}
	return nil, false
}

// IsAssignedTo reports whether userID is the current assignee.
func (b *Bug) IsAssignedTo(userID string) bool {
	return b.AssignedTo != nil && *b.AssignedTo == userID
}

// BugPatch is a sparse update. Nil fields are left untouched.
type BugPatch struct {
	Title       *string
	Description *string
	Status      *BugStatus
	Priority    *BugPriority

	// AssignSet marks that the assignee is being written; a nil AssignedTo
	// with AssignSet clears the assignment.
	AssignSet  bool
	AssignedTo *string
}

// Empty reports whether the patch changes nothing.
func (p BugPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil && p.Priority == nil && !p.AssignSet
}

// TouchesContent reports whether the patch edits title, description or priority.
func (p BugPatch) TouchesContent() bool {
	return p.Title != nil || p.Description != nil || p.Priority != nil
}

// Apply writes the patch onto bug in place.
func (p BugPatch) Apply(bug *Bug) {
	if p.Title != nil {
		bug.Title = *p.Title
	}
	if p.Description != nil {
		bug.Description = *p.Description
	}
	if p.Status != nil {
		bug.Status = *p.Status
	}
	if p.Priority != nil {
		bug.Priority = *p.Priority
	}
	if p.AssignSet {
		if p.AssignedTo == nil {
			bug.AssignedTo = nil
		} else {
			assignee := *p.AssignedTo
			bug.AssignedTo = &assignee
		}
	}
}
