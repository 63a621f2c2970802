package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{NotFoundError("job", "abc"), http.StatusNotFound},
		{fmt.Errorf("submit: %w", ErrValidation), http.StatusBadRequest},
		{ErrQueueFull, http.StatusServiceUnavailable},
		{DatabaseError("insert job", errors.New("boom")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, "job abc not found", PublicMessage(NotFoundError("job", "abc")))
	assert.Equal(t, "internal server error", PublicMessage(errors.New("pq: connection refused")))
	assert.Equal(t, ErrQueueFull.Error(), PublicMessage(ErrQueueFull))
}

func TestDatabaseErrorKeepsCause(t *testing.T) {
	cause := errors.New("deadlock")
	err := DatabaseError("update job", cause)
	assert.ErrorIs(t, err, ErrDatabase)
	assert.ErrorIs(t, err, cause)
}

func TestValidatorCollectsFirstFailurePerField(t *testing.T) {
	v := NewValidator().
		Field("query", "  ", Required, MaxLength(10)).
		Field("max_results", 200, IntRange(5, 50)).
		Field("id", "not-a-uuid", UUID)

	err := ValidateAndReturnError(v)
	assert.ErrorIs(t, err, ErrValidation)

	var appErr *AppError
	assert.True(t, errors.As(err, &appErr))
	assert.Len(t, appErr.Fields, 3)
	assert.Equal(t, "query", appErr.Fields[0].Field)
	assert.Equal(t, "is required", appErr.Fields[0].Message)
	assert.Equal(t, "must be between 5 and 50", appErr.Fields[1].Message)
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().
		Field("query", "laptops", Required, MaxLength(10)).
		Field("max_results", 15, IntRange(5, 50))
	assert.NoError(t, ValidateAndReturnError(v))
	assert.NoError(t, v.Error())
}
