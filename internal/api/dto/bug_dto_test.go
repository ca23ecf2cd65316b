package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-tracker/internal/domain"
)

func TestUpdateBugRequestAssigneePresence(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValue *string
	}{
		{name: "absent", body: `{"status":"Closed"}`},
		{name: "null", body: `{"assignedTo":null}`, wantSet: true},
		{name: "value", body: `{"assignedTo":"dev-1"}`, wantSet: true, wantValue: ptr("dev-1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req UpdateBugRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			assert.Equal(t, tt.wantSet, req.AssignedTo.Set)
			assert.Equal(t, tt.wantValue, req.AssignedTo.Value)
		})
	}
}

func TestCreateBugRequestDetectsForbiddenKeys(t *testing.T) {
	var req CreateBugRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","description":"d","status":null}`), &req))
	assert.True(t, req.Status.Set)
	assert.Nil(t, req.Status.Value)
	assert.False(t, req.AssignedTo.Set)
}

func TestNullableRejectsNonString(t *testing.T) {
	var req UpdateBugRequest
	assert.Error(t, json.Unmarshal([]byte(`{"assignedTo":42}`), &req))
}

func TestNewBugResponsePopulatesNames(t *testing.T) {
	assignee := "dev"
	bug := &domain.Bug{
		ID:         "b1",
		CreatedBy:  "tester",
		AssignedTo: &assignee,
		Comments:   []domain.Comment{{ID: "c1", CreatedBy: "dev"}},
	}
	names := map[string]string{"tester": "Tess", "dev": "Dev"}

	resp := NewBugResponse(bug, names)
	assert.Equal(t, UserRef{ID: "tester", Name: "Tess"}, resp.CreatedBy)
	require.NotNil(t, resp.AssignedTo)
	assert.Equal(t, "Dev", resp.AssignedTo.Name)
	assert.Equal(t, "Dev", resp.Comments[0].CreatedBy.Name)
	assert.Equal(t, []string{"tester", "dev", "dev"}, UserIDs(bug))

	bug.AssignedTo = nil
	encoded, err := json.Marshal(NewBugResponse(bug, names))
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"assignedTo":null`)
}

func ptr(s string) *string { return &s }
