package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
)

func TestToDomainErrorMapsNoRows(t *testing.T) {
	for _, err := range []error{sql.ErrNoRows, pgx.ErrNoRows, fmt.Errorf("load: %w", sql.ErrNoRows)} {
		de := ToDomainError(err)
		assert.Equal(t, CodeNotFound, de.Code)
		assert.Equal(t, http.StatusNotFound, de.HTTPStatus)
	}
}

func TestToDomainErrorKeepsDomainErrors(t *testing.T) {
	orig := NewPreconditionFailed("wrong status", map[string]any{"expected": "Pending"})
	de := ToDomainError(fmt.Errorf("wrapped: %w", orig))
	assert.Equal(t, CodePreconditionFailed, de.Code)
	assert.Equal(t, http.StatusPreconditionFailed, de.HTTPStatus)
	assert.Equal(t, "Pending", de.Details["expected"])
}

func TestToDomainErrorFallsBackToInternal(t *testing.T) {
	de := ToDomainError(errors.New("boom"))
	assert.Equal(t, CodeInternal, de.Code)
	assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
	assert.Nil(t, ToDomainError(nil))
}

func TestStoreFailureUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewStoreFailure(cause)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsCode(err, CodeStoreFailure))
	assert.False(t, IsCode(cause, CodeStoreFailure))
}
