package errorutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestIsPermanent(t *testing.T) {
	assert.False(t, IsPermanent(nil))
	assert.False(t, IsPermanent(errors.New("connection reset")))
	assert.True(t, IsPermanent(NewValidationError("bad", nil)))
	assert.True(t, IsPermanent(fmt.Errorf("wrapped: %w", NewValidationError("bad", nil))))
	assert.True(t, IsPermanent(context.Canceled))
	assert.False(t, IsPermanent(NewStepFailed("notify", 3, errors.New("smtp down"))))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(NewValidationError("bad", nil)))
	assert.Equal(t, CodeStepFailed, CodeOf(fmt.Errorf("run: %w", NewStepFailed("classify", 1, nil))))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	notFound := ToDomainError(pgx.ErrNoRows)
	assert.Equal(t, CodeNotFound, notFound.Code)
	assert.Equal(t, http.StatusNotFound, notFound.HTTPStatus)

	internal := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)

	stepErr := NewStepFailed("notify", 2, errors.New("smtp down"))
	assert.Contains(t, stepErr.Error(), "smtp down")
	assert.ErrorContains(t, stepErr, `step "notify" failed after 2 attempt(s)`)
}
