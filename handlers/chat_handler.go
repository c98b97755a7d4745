package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/middleware"
	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/dispatch"
	"github.com/upb/llm-compare/utils"
)

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Message   string              `json:"message" validate:"notblank"`
	UserID    string              `json:"user_id,omitempty"`
	Providers []ProviderSelection `json:"providers" validate:"required,min=1,dive"`
}

// ProviderSelection names one provider to ask, with an optional key and model
type ProviderSelection struct {
	Provider string `json:"provider" validate:"required,provider"`
	APIKey   string `json:"api_key,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ChatResponse is the body of a successful chat
type ChatResponse struct {
	MessageID string                       `json:"message_id"`
	Responses map[models.ProviderID]string `json:"responses"`
}

// SelectResponseRequest is the body of POST /api/select_response
type SelectResponseRequest struct {
	UserID   string `json:"user_id,omitempty"`
	Provider string `json:"provider" validate:"required,provider"`
	Message  string `json:"message" validate:"notblank"`
}

// DispatchService defines the conversation operations used by ChatHandler
type DispatchService interface {
	Dispatch(ctx context.Context, req *dispatch.DispatchRequest) (*dispatch.DispatchResult, error)
	SelectResponse(ctx context.Context, userID string, provider models.ProviderID, text string) error
	History(ctx context.Context, userID string) ([]models.ConversationEntry, error)
}

// ChatHandler handles conversation HTTP requests
type ChatHandler struct {
	service DispatchService
	logger  *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(service DispatchService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		logger:  logger,
	}
}

// HandleChat handles POST /api/chat
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleValidationError(w, err, h.logger)
		return
	}

	configs := make([]models.ProviderConfig, 0, len(req.Providers))
	for _, sel := range req.Providers {
		// provider ids were checked by the validator
		id, _ := models.ParseProviderID(sel.Provider)
		configs = append(configs, models.ProviderConfig{
			ProviderID: id,
			Credential: sel.APIKey,
			Model:      strings.TrimSpace(sel.Model),
		})
	}

	result, err := h.service.Dispatch(ctx, &dispatch.DispatchRequest{
		Message:   req.Message,
		UserID:    userIDFor(ctx, req.UserID),
		Providers: configs,
		RequestID: requestID,
	})
	if err != nil {
		h.logger.Warn("dispatch failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, ChatResponse{
		MessageID: result.MessageID.String(),
		Responses: result.Responses,
	}); err != nil {
		h.logger.Error("failed to write response",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}

// HandleSelectResponse handles POST /api/select_response
func (h *ChatHandler) HandleSelectResponse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req SelectResponseRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	provider, _ := models.ParseProviderID(req.Provider)
	if err := h.service.SelectResponse(ctx, userIDFor(ctx, req.UserID), provider, req.Message); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "response selected")
}

// HandleHistory handles GET /api/history?user_id=
func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.History(ctx, userIDFor(ctx, r.URL.Query().Get("user_id")))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, entries); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}

// userIDFor prefers the explicit user id and falls back to the X-User-ID header
func userIDFor(ctx context.Context, explicit string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	return middleware.GetUserIDFromContext(ctx)
}
