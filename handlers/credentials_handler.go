package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/services/credentials"
	"github.com/upb/llm-compare/utils"
)

// SaveKeyRequest is the body of POST /api/service/{provider}/key
type SaveKeyRequest struct {
	APIKey string `json:"api_key" validate:"notblank"`
}

// CredentialService defines the credential operations used by CredentialsHandler
type CredentialService interface {
	SaveKey(ctx context.Context, provider models.ProviderID, key string) error
	Status(ctx context.Context) ([]credentials.ProviderStatus, error)
}

// CredentialsHandler handles default-credential HTTP requests
type CredentialsHandler struct {
	service CredentialService
	logger  *zap.Logger
}

// NewCredentialsHandler creates a new CredentialsHandler
func NewCredentialsHandler(service CredentialService, logger *zap.Logger) *CredentialsHandler {
	return &CredentialsHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSaveKey handles POST /api/service/{provider}/key
func (h *CredentialsHandler) HandleSaveKey(w http.ResponseWriter, r *http.Request) {
	provider, err := models.ParseProviderID(chi.URLParam(r, "provider"))
	if err != nil {
		HandleServiceError(w, services.NewValidationError("provider", err.Error()), h.logger)
		return
	}

	var req SaveKeyRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	if err := h.service.SaveKey(r.Context(), provider, req.APIKey); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteMessage(w, "credential stored")
}

// HandleStatus handles GET /api/service/status
func (h *CredentialsHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.service.Status(r.Context())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteOK(w, statuses); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
