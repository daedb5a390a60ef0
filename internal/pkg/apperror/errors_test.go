package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeAndStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"plain sentinel", ErrNotFound, "not_found", http.StatusNotFound},
		{"app error", Validation("question is empty"), "validation_error", http.StatusBadRequest},
		{"wrapped app error", fmt.Errorf("join: %w", Forbidden("not your conversation")), "forbidden", http.StatusForbidden},
		{"persistence", Persistence("append message", errors.New("conn reset")), "persistence_error", http.StatusInternalServerError},
		{"unknown", errors.New("boom"), "internal_error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, Code(tt.err))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
		})
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("deadlock detected")
	err := Persistence("append message", cause)

	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "append message: deadlock detected", err.Error())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "question is empty", Message(Validation("question is empty")))
	assert.Equal(t, "not found", Message(fmt.Errorf("lookup: %w", ErrNotFound)))
	assert.Equal(t, "internal server error", Message(errors.New("sql: connection refused")))
}
