package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventBugCreated       EventType = "bug.created"
	EventBugUpdated       EventType = "bug.updated"
	EventBugStatusChanged EventType = "bug.status_changed"
	EventBugAssigned      EventType = "bug.assigned"
	EventBugDeleted       EventType = "bug.deleted"
	EventCommentAdded     EventType = "comment.added"
	EventCommentDeleted   EventType = "comment.deleted"
)

// AllEventTypes lists every event the services emit.
var AllEventTypes = []EventType{
	EventBugCreated,
	EventBugUpdated,
	EventBugStatusChanged,
	EventBugAssigned,
	EventBugDeleted,
	EventCommentAdded,
	EventCommentDeleted,
}

// Actor identifies who caused an event.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	BugID     string    `json:"bugId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent stamps an event with a fresh id and the current time.
func NewEvent(eventType EventType, bugID string, actor Actor, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		BugID:     bugID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// BugCreatedPayload payload.
type BugCreatedPayload struct {
	Title    string             `json:"title"`
	Priority domain.BugPriority `json:"priority"`
}

// BugUpdatedPayload lists the fields a patch touched.
type BugUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// BugStatusChangedPayload payload.
type BugStatusChangedPayload struct {
	OldStatus domain.BugStatus `json:"oldStatus"`
	NewStatus domain.BugStatus `json:"newStatus"`
}

// BugAssignedPayload payload. A nil assignee means the bug was unassigned.
type BugAssignedPayload struct {
	OldAssignee *string `json:"oldAssignee"`
	NewAssignee *string `json:"newAssignee"`
}

// CommentPayload is shared by comment.added and comment.deleted.
type CommentPayload struct {
	CommentID   string `json:"commentId"`
	BodyPreview string `json:"bodyPreview,omitempty"`
}
