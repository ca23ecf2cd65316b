package dto

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

// Nullable records whether a JSON key was present and, if so, whether it was
// null. A plain *string cannot tell an absent key from an explicit null.
type Nullable struct {
	Set   bool
	Value *string
}

// UnmarshalJSON implements json.Unmarshaler. It is only invoked for keys
// present in the document.
func (n *Nullable) UnmarshalJSON(data []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		n.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	n.Value = &s
	return nil
}

// CreateBugRequest payload. Status and AssignedTo are decoded only to detect
// that a client sent them.
type CreateBugRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	Status      Nullable `json:"status"`
	AssignedTo  Nullable `json:"assignedTo"`
}

// UpdateBugRequest is the allow-listed patch. Unknown keys fail decoding.
type UpdateBugRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	AssignedTo  Nullable `json:"assignedTo"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text string `json:"text"`
}

// UserRef is a populated user reference.
type UserRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CommentResponse represents one comment.
type CommentResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedBy UserRef   `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// BugResponse provides full bug info with populated user references.
type BugResponse struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      domain.BugStatus   `json:"status"`
	Priority    domain.BugPriority `json:"priority"`
	CreatedBy   UserRef            `json:"createdBy"`
	AssignedTo  *UserRef           `json:"assignedTo"`
	Comments    []CommentResponse  `json:"comments"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

// PaginationResponse is the page metadata of a listing.
type PaginationResponse struct {
	TotalItems   int64 `json:"totalItems"`
	TotalPages   int   `json:"totalPages"`
	CurrentPage  int   `json:"currentPage"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

// UserIDs returns every user id a set of bugs references, for name lookup.
func UserIDs(bugs ...*domain.Bug) []string {
	var ids []string
	for _, b := range bugs {
		ids = append(ids, b.CreatedBy)
		if b.AssignedTo != nil {
			ids = append(ids, *b.AssignedTo)
		}
		for _, c := range b.Comments {
			ids = append(ids, c.CreatedBy)
		}
	}
	return ids
}

// NewBugResponse maps a bug, resolving names from names.
func NewBugResponse(b *domain.Bug, names map[string]string) BugResponse {
	ref := func(id string) UserRef { return UserRef{ID: id, Name: names[id]} }

	comments := make([]CommentResponse, 0, len(b.Comments))
	for _, c := range b.Comments {
		comments = append(comments, CommentResponse{
			ID:        c.ID,
			Text:      c.Text,
			CreatedBy: ref(c.CreatedBy),
			CreatedAt: c.CreatedAt,
		})
	}
	resp := BugResponse{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Status:      b.Status,
		Priority:    b.Priority,
		CreatedBy:   ref(b.CreatedBy),
		Comments:    comments,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.AssignedTo != nil {
		assignee := ref(*b.AssignedTo)
		resp.AssignedTo = &assignee
	}
	return resp
}
