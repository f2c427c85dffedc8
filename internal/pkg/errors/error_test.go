package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsExistingCode(t *testing.T) {
	inner := New(ErrRunNotFound, "run-1")
	wrapped := Wrap(fmt.Errorf("lookup: %w", inner), ErrInternalServer)

	assert.Equal(t, ErrRunNotFound, wrapped.Code)
	assert.True(t, Is(wrapped, ErrRunNotFound))
	assert.Equal(t, http.StatusNotFound, wrapped.HTTPStatus())
}

func TestWrapPlainError(t *testing.T) {
	base := errors.New("redis down")
	err := Wrap(base, ErrCacheUnavailable)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, ErrCacheUnavailable, ExtractCode(err))
	assert.Equal(t, "redis down", GetDetails(err))
	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestCodeLookup(t *testing.T) {
	tests := []struct {
		code   int
		status int
	}{
		{ErrResearchInvalidKeyword, http.StatusBadRequest},
		{ErrResearchRateLimited, http.StatusTooManyRequests},
		{ErrResearchSourceBlocked, http.StatusBadGateway},
		{ErrTimeout, http.StatusGatewayTimeout},
		{99999, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, GetHTTPStatus(tt.code), "code %d", tt.code)
	}

	assert.True(t, IsClientError(ErrExportFormat))
	assert.False(t, IsClientError(ErrRunStoreFailure))
	assert.Equal(t, "Pipeline run not found: abc", FormatError(ErrRunNotFound, "abc"))
	assert.Equal(t, ErrInternalServer, ExtractCode(errors.New("x")))
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError(ErrRunNotFound, "run", "r-9")
	assert.Equal(t, ErrRunNotFound, err.Code)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Equal(t, `run "r-9"`, GetDetails(err))
	assert.Equal(t, `[5000] Pipeline run not found: run "r-9"`, err.Error())
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(
		FieldError{Field: "keywords", Rule: "required"},
		FieldError{Field: "country", Rule: "len"},
	)
	assert.Equal(t, ErrInvalidParams, err.Code)
	assert.Equal(t, "keywords: required; country: len", err.Details)
	assert.Len(t, err.Fields, 2)

	appErr, ok := As(fmt.Errorf("bind: %w", err))
	require.True(t, ok)
	assert.Same(t, err, appErr)
}
