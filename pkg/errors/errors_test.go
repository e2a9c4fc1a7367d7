package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewCircularReferenceError_Message(t *testing.T) {
	err := NewCircularReferenceError([]string{"a", "b"})

	assert.Equal(t, "Circular reference detected: Node(s) a, b cannot be both a generalization and specialization of the same node", err.Message)
	assert.True(t, IsValidation(err))
	assert.True(t, HasCode(err, CodeCircularReference))
}

func TestNewDuplicateReferenceError_ListsEverySet(t *testing.T) {
	err := NewDuplicateReferenceError(map[string]map[string][]string{
		"parts":           {"main": {"p"}},
		"generalizations": {"main": {"x"}},
		"specializations": {},
	})

	assert.Equal(t, "Duplicate node references found: generalizations[main]: x; parts[main]: p", err.Message)
	assert.Contains(t, err.Details, "parts")
	assert.NotContains(t, err.Details, "specializations")
}

func TestDomainError_SentinelsAreNotMutated(t *testing.T) {
	wrapped := ErrTransactionFailed.WithCause(fmt.Errorf("boom"))

	assert.Nil(t, ErrTransactionFailed.Cause)
	assert.True(t, IsTransactionFailure(wrapped))
	assert.True(t, IsTransactionFailure(fmt.Errorf("commit: %w", wrapped)))
	assert.False(t, IsTransactionFailure(ErrConcurrentModification))
	assert.True(t, IsRetryable(wrapped))
}

func TestErrorHandler_Handle(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"not found", NewNotFoundError("Node"), http.StatusNotFound, "NOT_FOUND"},
		{"invalid state", NewInvalidStateError("Cannot update deleted node"), http.StatusConflict, "INVALID_STATE"},
		{"validation", NewCircularReferenceError([]string{"a"}), http.StatusBadRequest, "VALIDATION"},
		{"transaction", ErrTransactionFailed.WithCause(fmt.Errorf("x")), http.StatusServiceUnavailable, "INFRASTRUCTURE_ERROR"},
		{"unknown", fmt.Errorf("plain"), http.StatusInternalServerError, "INTERNAL"},
	}

	handler := NewErrorHandler(zap.NewNop(), false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v2/nodes/x", nil)

			// Act
			handler.Handle(rec, req, tt.err)

			// Assert
			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.True(t, body.Error)
			assert.Equal(t, tt.wantType, body.Type)
		})
	}
}
