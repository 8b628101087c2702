package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"duplicate", ErrDuplicateIdentity, http.StatusBadRequest, "DUPLICATE_IDENTITY"},
		{"wrapped credentials", fmt.Errorf("login: %w", ErrInvalidCredentials), http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{"token", ErrTokenInvalid, http.StatusUnauthorized, "TOKEN_INVALID"},
		{"not found", ErrFileNotFound, http.StatusNotFound, "FILE_NOT_FOUND"},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests, "RATE_LIMITED"},
		{"unknown", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, got.StatusCode)
			assert.Equal(t, tt.wantCode, got.Code)
		})
	}
}

func TestMapErrorToHTTP_UnknownErrorDoesNotLeak(t *testing.T) {
	got := MapErrorToHTTP(errors.New("secret dsn user:pass@tcp"))
	assert.Equal(t, "internal server error", got.Message)
}

func TestValidationError(t *testing.T) {
	verr := &ValidationError{Fields: []FieldError{
		{Field: "username", Message: "Username must be between 3 and 50 characters long."},
	}}

	assert.ErrorIs(t, verr, ErrValidation)

	httpErr := MapErrorToHTTP(fmt.Errorf("register: %w", verr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	resp := httpErr.ToErrorResponse()
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 1)
	assert.Equal(t, "username", resp.Errors[0].Field)
}
