package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"

	apperrors "github.com/spec-kit/ticket-triage/pkg/util/errorutil"
)

func TestTicketNotFound(t *testing.T) {
	err := ticketNotFound(fmt.Errorf("scan: %w", pgx.ErrNoRows), "T1")
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsPermanent(err))

	var domainErr *apperrors.DomainError
	if assert.ErrorAs(t, err, &domainErr) {
		assert.Equal(t, "T1", domainErr.Details["ticket_id"])
	}

	other := errors.New("connection reset")
	assert.Same(t, other, ticketNotFound(other, "T1"))
	assert.NoError(t, ticketNotFound(nil, "T1"))
}
