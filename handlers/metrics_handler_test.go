package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/experiment"
	"github.com/upb/llm-compare/services/metrics"
)

func TestHandleFeedback(t *testing.T) {
	logger := zap.NewNop()
	messageID := uuid.New()

	t.Run("records feedback in the ledger", func(t *testing.T) {
		ledger := metrics.NewLedger()
		handler := NewMetricsHandler(ledger, nil, logger)

		body := `{"message_id":"` + messageID.String() + `","provider":"openai","feedback":"thumbs_up"}`
		w := httptest.NewRecorder()
		handler.HandleFeedback(w, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 1, ledger.Snapshot().FeedbackSummary.Positive)

		// last write wins for the same message and provider
		body = `{"message_id":"` + messageID.String() + `","provider":"openai","feedback":"negative"}`
		w = httptest.NewRecorder()
		handler.HandleFeedback(w, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(body)))

		assert.Equal(t, http.StatusOK, w.Code)
		summary := ledger.Snapshot().FeedbackSummary
		assert.Equal(t, 0, summary.Positive)
		assert.Equal(t, 1, summary.Negative)
	})

	t.Run("validation failures", func(t *testing.T) {
		tests := []struct {
			name      string
			body      string
			wantField string
		}{
			{"bad message id", `{"message_id":"nope","provider":"openai","feedback":"positive"}`, "message_id"},
			{"unknown provider", `{"message_id":"` + messageID.String() + `","provider":"llama","feedback":"positive"}`, "provider"},
			{"bad feedback", `{"message_id":"` + messageID.String() + `","provider":"grok","feedback":"meh"}`, "feedback"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ledger := metrics.NewLedger()
				handler := NewMetricsHandler(ledger, nil, logger)

				w := httptest.NewRecorder()
				handler.HandleFeedback(w, httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(tt.body)))

				assert.Equal(t, http.StatusBadRequest, w.Code)
				var response map[string]interface{}
				require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
				assert.Contains(t, response["details"], tt.wantField)
				assert.Equal(t, metrics.FeedbackSummary{}, ledger.Snapshot().FeedbackSummary)
			})
		}
	})
}

func TestHandleMetrics(t *testing.T) {
	ledger := metrics.NewLedger()
	ledger.RecordCall(models.ProviderOpenAI)
	ledger.RecordCost(models.ProviderOpenAI, 0.002)
	ledger.RecordCall(models.ProviderGemini)
	ledger.RecordFeedback(uuid.New(), models.ProviderGemini, models.FeedbackPositive)

	handler := NewMetricsHandler(ledger, nil, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data metrics.Snapshot `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 2, response.Data.TotalCalls)
	assert.InDelta(t, 0.002, response.Data.TotalCost, 1e-9)
	assert.Equal(t, 1, response.Data.FeedbackSummary.Positive)
	assert.Equal(t, 1, response.Data.Providers[models.ProviderOpenAI].Calls)
}
}

func TestHandleMetricsWithExperiment(t *testing.T) {
	exp := experiment.NewSeededCaseExperiment(1, 1)
	exp.Apply("a")
	exp.Apply("b")

	handler := NewMetricsHandler(metrics.NewLedger(), exp, zap.NewNop())

	w := httptest.NewRecorder()
	handler.HandleMetrics(w, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data MetricsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, 0, response.Data.TotalCalls)
	assert.Equal(t, map[experiment.Variant]int{experiment.VariantB: 2}, response.Data.Experiment)
}
