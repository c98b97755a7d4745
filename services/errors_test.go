package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeInternal,
				Message: "failed to load history",
				Err:     errors.New("db error"),
			},
			wantMsg: "internal: failed to load history (db error)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeValidation,
				Message: "invalid input",
			},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeInternal, "internal error", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same error type",
			err:    NewDomainError(ErrorTypeValidation, "bad provider", nil),
			target: ErrEmptyMessage,
			want:   true,
		},
		{
			name:   "different error type",
			err:    NewDomainError(ErrorTypeInternal, "boom", nil),
			target: ErrEmptyMessage,
			want:   false,
		},
		{
			name:   "not a domain error",
			err:    NewDomainError(ErrorTypeNotFound, "not found", nil),
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "providers").WithDetail("value", "openai")

	assert.Equal(t, "providers", err.Details["field"])
	assert.Equal(t, "openai", err.Details["value"])
}

func TestErrorTypeCheckers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		checker func(error) bool
		want    bool
	}{
		{"not found", NewDomainError(ErrorTypeNotFound, "history not found", nil), IsNotFoundError, true},
		{"wrapped not found", fmt.Errorf("wrapped: %w", NewDomainError(ErrorTypeNotFound, "x", nil)), IsNotFoundError, true},
		{"validation", ErrNoProviders, IsValidationError, true},
		{"wrapped validation", fmt.Errorf("wrapped: %w", ErrEmptyMessage), IsValidationError, true},
		{"conflict", NewDomainError(ErrorTypeConflict, "concurrent update", nil), IsConflictError, true},
		{"canceled", WrapCanceled("dispatch canceled", context.Canceled), IsCanceledError, true},
		{"internal", WrapInternal("database error", errors.New("boom")), IsInternalError, true},
		{"validation is not internal", ErrEmptyUserID, IsInternalError, false},
		{"regular error", errors.New("regular"), IsValidationError, false},
		{"nil error", nil, IsNotFoundError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.checker(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"not found", NewDomainError(ErrorTypeNotFound, "x", nil), ErrorTypeNotFound},
		{"validation", ErrPlaceholderAPIKey, ErrorTypeValidation},
		{"canceled", ErrCanceled, ErrorTypeCanceled},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewValidationError("feedback", "invalid feedback value")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "feedback", details["field"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapError(t *testing.T) {
	baseErr := errors.New("base error")
	wrapped := WrapError(ErrorTypeInternal, "wrapped message", baseErr)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeInternal, domainErr.Type)
	assert.Equal(t, "wrapped message", domainErr.Message)
	assert.Equal(t, baseErr, errors.Unwrap(wrapped))
}

func TestWrapInternal(t *testing.T) {
	baseErr := errors.New("database connection failed")
	wrapped := WrapInternal("failed to save history", baseErr)

	assert.True(t, IsInternalError(wrapped))
	assert.ErrorIs(t, wrapped, baseErr)
}

func TestWrapCanceled(t *testing.T) {
	wrapped := WrapCanceled("dispatch canceled", context.Canceled)

	assert.True(t, IsCanceledError(wrapped))
	assert.ErrorIs(t, wrapped, context.Canceled)
	assert.ErrorIs(t, wrapped, ErrCanceled)
}
