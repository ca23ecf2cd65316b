package handlers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/bug-tracker/internal/api/dto"
	"github.com/spec-kit/bug-tracker/internal/service"
)

func TestUpdateBugInputMapsAssignee(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantSet   bool
		wantValue string
	}{
		{name: "absent keeps assignee", body: `{"status":"Closed"}`},
		{name: "null unassigns", body: `{"assignedTo":null}`, wantSet: true},
		{name: "id assigns", body: `{"assignedTo":"dev-1"}`, wantSet: true, wantValue: "dev-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req dto.UpdateBugRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))

			in := updateBugInput(req)
			assert.Equal(t, tt.wantSet, in.AssignSet)
			if tt.wantValue == "" {
				assert.Nil(t, in.AssignedTo)
			} else {
				require.NotNil(t, in.AssignedTo)
				assert.Equal(t, tt.wantValue, *in.AssignedTo)
			}
		})
	}
}

func TestCreateBugInputFlagsForbiddenKeys(t *testing.T) {
	var req dto.CreateBugRequest
	require.NoError(t, json.Unmarshal([]byte(`{"title":"t","description":"d","priority":"Low","assignedTo":null}`), &req))

	in := createBugInput(req)
	assert.Equal(t, service.CreateBugInput{
		Title:         "t",
		Description:   "d",
		Priority:      "Low",
		HasAssignedTo: true,
	}, in)
}

func TestPaginationResponse(t *testing.T) {
	got := paginationResponse(service.Pagination{TotalItems: 21, TotalPages: 3, CurrentPage: 7, ItemsPerPage: 10})
	assert.Equal(t, dto.PaginationResponse{TotalItems: 21, TotalPages: 3, CurrentPage: 7, ItemsPerPage: 10}, got)
}
