package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
)

// MockRecordSource is a mock implementation of RecordSource
type MockRecordSource struct {
	mock.Mock
}

func (m *MockRecordSource) Recent(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.DispatchRecord), args.Error(1)
}

func TestHandleListRecords(t *testing.T) {
	logger := zap.NewNop()
	record := models.NewDispatchRecord(uuid.New(), "u1", models.ProviderGrok, "grok-2").
		WithFailure(models.DispatchStatusFailed, "rate_limited", "429")

	tests := []struct {
		name       string
		query      string
		setup      func(m *MockRecordSource)
		wantStatus int
	}{
		{
			name:  "default limit",
			query: "?user_id=u1",
			setup: func(m *MockRecordSource) {
				m.On("Recent", mock.Anything, "u1", DefaultRecordLimit).Return([]*models.DispatchRecord{record}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "limit is capped",
			query: "?user_id=u1&limit=100000",
			setup: func(m *MockRecordSource) {
				m.On("Recent", mock.Anything, "u1", MaxRecordLimit).Return([]*models.DispatchRecord{}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing user",
			query:      "",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "bad limit",
			query:      "?user_id=u1&limit=-3",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:  "store failure",
			query: "?user_id=u1",
			setup: func(m *MockRecordSource) {
				m.On("Recent", mock.Anything, "u1", DefaultRecordLimit).Return(nil, errors.New("db down"))
			},
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := new(MockRecordSource)
			if tt.setup != nil {
				tt.setup(source)
			}
			handler := NewRecordsHandler(source, logger)

			w := httptest.NewRecorder()
			handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/records"+tt.query, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			source.AssertExpectations(t)
		})
	}

	t.Run("record shape", func(t *testing.T) {
		source := new(MockRecordSource)
		source.On("Recent", mock.Anything, "u1", 5).Return([]*models.DispatchRecord{record}, nil)
		handler := NewRecordsHandler(source, logger)

		w := httptest.NewRecorder()
		handler.HandleList(w, httptest.NewRequest(http.MethodGet, "/api/records?user_id=u1&limit=5", nil))

		var response struct {
			Data []map[string]interface{} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		require.Len(t, response.Data, 1)
		assert.Equal(t, "grok", response.Data[0]["provider"])
		assert.Equal(t, "failed", response.Data[0]["status"])
		assert.Equal(t, "rate_limited", response.Data[0]["error_kind"])
	})
}
