package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/pscheid92/wbdash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("invalid input")

	assert.Equal(t, TypeValidation, err.Type)
	assert.Equal(t, "invalid input", err.Message)
	assert.Nil(t, err.Cause)
	assert.NotNil(t, err.Context)
	assert.Equal(t, http.StatusBadRequest, err.HTTPStatus())
	assert.Contains(t, err.Error(), "validation")
}

func TestExternalError(t *testing.T) {
	cause := errors.New("connection refused")
	err := ExternalError("world bank unreachable", cause)

	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestForbiddenError(t *testing.T) {
	err := ForbiddenError("invalid csrf token")

	assert.Equal(t, TypeForbidden, err.Type)
	assert.Equal(t, http.StatusForbidden, err.HTTPStatus())
}

func TestWithField(t *testing.T) {
	err := ValidationError("bad range").WithField("start", 2010).WithField("end", 2008)

	resp := err.ToResponse()
	assert.Equal(t, "bad range", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, 2010, resp.Context["start"])
	assert.Equal(t, 2008, resp.Context["end"])
}

func TestWithField_NilContext(t *testing.T) {
	err := &Error{Type: TypeInternal, Message: "x"}
	err.WithField("k", "v")
	assert.Equal(t, "v", err.Context["k"])
}

func TestFromDomain(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType ErrorType
	}{
		{"unknown indicator", fmt.Errorf("%w: %q", domain.ErrUnknownIndicator, "GDP"), TypeValidation},
		{"invalid years", fmt.Errorf("%w: crossed", domain.ErrInvalidYearRange), TypeValidation},
		{"missing session", domain.ErrSessionNotFound, TypeNotFound},
		{"fetch error", &domain.FetchError{Op: "indicators", Err: domain.ErrEmptyResult}, TypeExternal},
		{"wrapped fetch error", fmt.Errorf("refresh: %w", &domain.FetchError{Op: "countries", Err: errors.New("timeout")}), TypeExternal},
		{"anything else", errors.New("boom"), TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromDomain(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
		})
	}

	assert.Nil(t, FromDomain(nil))
}

func TestAsStructuredError(t *testing.T) {
	original := NotFoundError("gone")
	wrapped := fmt.Errorf("handler: %w", original)

	assert.Same(t, original, AsStructuredError(wrapped))
	assert.Nil(t, AsStructuredError(nil))
	assert.Equal(t, TypeInternal, AsStructuredError(errors.New("plain")).Type)
}
