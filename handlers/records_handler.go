package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/utils"
)

// Record listing limits
const (
	DefaultRecordLimit = 50
	MaxRecordLimit     = 500
)

// RecordSource lists stored dispatch records
type RecordSource interface {
	Recent(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error)
}

// RecordsHandler serves the dispatch audit trail
type RecordsHandler struct {
	source RecordSource
	logger *zap.Logger
}

// NewRecordsHandler creates a new RecordsHandler
func NewRecordsHandler(source RecordSource, logger *zap.Logger) *RecordsHandler {
	return &RecordsHandler{
		source: source,
		logger: logger,
	}
}

// HandleList handles GET /api/records?user_id=&limit=
func (h *RecordsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := userIDFor(ctx, r.URL.Query().Get("user_id"))
	if userID == "" {
		HandleServiceError(w, services.ErrEmptyUserID, h.logger)
		return
	}

	limit := DefaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			HandleServiceError(w, services.NewValidationError("limit", "limit must be a positive integer"), h.logger)
			return
		}
		limit = n
	}
	if limit > MaxRecordLimit {
		limit = MaxRecordLimit
	}

	records, err := h.source.Recent(ctx, userID, limit)
	if err != nil {
		HandleServiceError(w, services.WrapInternal("failed to list dispatch records", err), h.logger)
		return
	}

	if err := utils.WriteOK(w, records); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
