package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/utils"
)

func TestHandleServiceError(t *testing.T) {
	logger := zap.NewNop()

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "validation error",
			err:            services.ErrEmptyMessage,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "duplicate provider",
			err:            services.NewValidationError("providers", "provider openai requested more than once"),
			expectedStatus: http.StatusBadRequest,
			expectedError:  "bad_request",
		},
		{
			name:           "not found error",
			err:            services.NewDomainError(services.ErrorTypeNotFound, "conversation history not found", nil),
			expectedStatus: http.StatusNotFound,
			expectedError:  "not_found",
		},
		{
			name:           "conflict error",
			err:            services.NewDomainError(services.ErrorTypeConflict, "concurrent update detected", nil),
			expectedStatus: http.StatusConflict,
			expectedError:  "conflict",
		},
		{
			name:           "canceled error",
			err:            services.WrapCanceled("dispatch canceled", context.Canceled),
			expectedStatus: http.StatusGatewayTimeout,
			expectedError:  "timeout",
		},
		{
			name:           "internal error",
			err:            services.WrapInternal("failed to save history", errors.New("disk full")),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
		{
			name:           "plain error",
			err:            errors.New("surprise"),
			expectedStatus: http.StatusInternalServerError,
			expectedError:  "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			HandleServiceError(w, tt.err, logger)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response utils.ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedError, response.Error)
		})
	}
}

func TestHandleServiceError_InternalDetailsAreHidden(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.WrapInternal("failed to load history", errors.New("password authentication failed")), zap.NewNop())

	assert.NotContains(t, w.Body.String(), "password")
}

func TestHandleServiceError_ValidationDetails(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, services.NewValidationError("api_key", "api key is empty or a placeholder"), zap.NewNop())

	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "api_key", response.Details["field"])
}

func TestHandleServiceError_Nil(t *testing.T) {
	w := httptest.NewRecorder()
	HandleServiceError(w, nil, zap.NewNop())
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestHandleValidationError(t *testing.T) {
	type body struct {
		Message string `json:"message" validate:"notblank"`
	}

	w := httptest.NewRecorder()
	HandleValidationError(w, utils.ValidateStruct(&body{}), zap.NewNop())

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response utils.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Validation failed", response.Message)
	assert.Equal(t, "message is required", response.Details["message"])
}
