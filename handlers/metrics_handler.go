package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/experiment"
	"github.com/upb/llm-compare/services/metrics"
	"github.com/upb/llm-compare/utils"
)

// FeedbackRequest is the body of POST /api/feedback
type FeedbackRequest struct {
	MessageID string `json:"message_id" validate:"required,uuid"`
	Provider  string `json:"provider" validate:"required,provider"`
	Feedback  string `json:"feedback" validate:"required,feedback"`
}

// MetricsLedger defines the ledger operations used by MetricsHandler
type MetricsLedger interface {
	RecordFeedback(messageID uuid.UUID, provider models.ProviderID, value models.FeedbackValue)
	Snapshot() metrics.Snapshot
}

// ExperimentArms reports how often each experiment variant was served
type ExperimentArms interface {
	Served() map[experiment.Variant]int
}

// MetricsResponse is the ledger snapshot plus the experiment arm counts
type MetricsResponse struct {
	metrics.Snapshot
	Experiment map[experiment.Variant]int `json:"experiment,omitempty"`
}

// MetricsHandler handles feedback and metrics HTTP requests
type MetricsHandler struct {
	ledger MetricsLedger
	arms   ExperimentArms
	logger *zap.Logger
}

// NewMetricsHandler creates a new MetricsHandler; arms is nil when no experiment runs
func NewMetricsHandler(ledger MetricsLedger, arms ExperimentArms, logger *zap.Logger) *MetricsHandler {
	return &MetricsHandler{
		ledger: ledger,
		arms:   arms,
		logger: logger,
	}
}

// HandleFeedback handles POST /api/feedback
func (h *MetricsHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	// fields were checked by the validator
	messageID, _ := uuid.Parse(req.MessageID)
	provider, _ := models.ParseProviderID(req.Provider)
	value, _ := models.ParseFeedbackValue(req.Feedback)

	h.ledger.RecordFeedback(messageID, provider, value)

	h.logger.Debug("feedback recorded",
		zap.String("message_id", messageID.String()),
		zap.String("provider", string(provider)),
		zap.String("feedback", string(value)))

	_ = utils.WriteMessage(w, "feedback recorded")
}

// HandleMetrics handles GET /api/metrics
func (h *MetricsHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	response := MetricsResponse{Snapshot: h.ledger.Snapshot()}
	if h.arms != nil {
		response.Experiment = h.arms.Served()
	}

	if err := utils.WriteOK(w, response); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
