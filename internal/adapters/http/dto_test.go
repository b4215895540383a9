package http

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auratask/core/internal/domain/entities"
)

func TestMapErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", fmt.Errorf("%w: title required", entities.ErrValidation), http.StatusBadRequest},
		{"unauthenticated", entities.ErrUnauthenticated, http.StatusUnauthorized},
		{"task not found", entities.ErrTaskNotFound, http.StatusNotFound},
		{"group not found", fmt.Errorf("%w: id x", entities.ErrGroupNotFound), http.StatusNotFound},
		{"enrichment", fmt.Errorf("%w: analyzer returned 500", entities.ErrEnrichment), http.StatusBadGateway},
		{"persistence", fmt.Errorf("%w: insert task", entities.ErrPersistence), http.StatusInternalServerError},
		{"unknown", errors.New("something else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := mapError(tt.err)
			assert.Equal(t, tt.code, httpErr.Code)
		})
	}
}

func TestMapErrorHidesInternalDetail(t *testing.T) {
	httpErr := mapError(fmt.Errorf("%w: duplicate key value violates unique constraint", entities.ErrPersistence))
	assert.Equal(t, "internal error", httpErr.Message)
}

func TestUpdateTaskRequestPatchDistinguishesAbsentFromNull(t *testing.T) {
	// Absent fields leave the patch untouched.
	patch := UpdateTaskRequest{}.toPatch()
	assert.Nil(t, patch.GroupID)
	assert.Nil(t, patch.DueDate)

	// A present value sets the inner pointer.
	groupID := uuid.New()
	due := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	patch = UpdateTaskRequest{GroupID: &groupID, DueDate: &due}.toPatch()
	require.NotNil(t, patch.GroupID)
	require.NotNil(t, *patch.GroupID)
	assert.Equal(t, groupID, **patch.GroupID)
	require.NotNil(t, patch.DueDate)
	require.NotNil(t, *patch.DueDate)

	// Clear flags express an explicit null: outer pointer set, inner nil.
	patch = UpdateTaskRequest{ClearGroup: true, ClearDueDate: true}.toPatch()
	require.NotNil(t, patch.GroupID)
	assert.Nil(t, *patch.GroupID)
	require.NotNil(t, patch.DueDate)
	assert.Nil(t, *patch.DueDate)
}
