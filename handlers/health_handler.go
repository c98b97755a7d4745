package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/repositories"
	"github.com/upb/llm-compare/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Stats     map[string]interface{}    `json:"stats,omitempty"`
}

// StatsFunc returns a JSON-encodable snapshot of a background component
type StatsFunc func() interface{}

// ProviderCounter reports how many provider adapters are registered
type ProviderCounter interface {
	GetProviderCount() int
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	storage   repositories.HealthChecker
	providers ProviderCounter
	stats     map[string]StatsFunc
	logger    *zap.Logger
}

// NewHealthHandler creates a new HealthHandler; storage may be nil for the memory store
func NewHealthHandler(storage repositories.HealthChecker, providers ProviderCounter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage:   storage,
		providers: providers,
		stats:     make(map[string]StatsFunc),
		logger:    logger,
	}
}

// AddStats reports a component's statistics under name in the readiness response
func (h *HealthHandler) AddStats(name string, stats StatsFunc) *HealthHandler {
	h.stats[name] = stats
	return h
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
// Readiness check - validates that storage is reachable
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	switch {
	case h.storage == nil:
		checks["storage"] = "in_memory"
	case h.checkStorage(ctx) != nil:
		checks["storage"] = "unhealthy"
		allHealthy = false
	default:
		checks["storage"] = "healthy"
	}

	if h.providers == nil || h.providers.GetProviderCount() == 0 {
		checks["providers"] = "none_registered"
	} else {
		checks["providers"] = "registered"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	if len(h.stats) > 0 {
		response.Stats = make(map[string]interface{}, len(h.stats))
		for name, stats := range h.stats {
			response.Stats[name] = stats()
		}
	}

	if err := utils.WriteJSON(w, httpStatus, utils.SuccessResponse{Data: response}); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}

// checkStorage runs the storage health check
func (h *HealthHandler) checkStorage(ctx context.Context) error {
	if err := h.storage.HealthCheck(ctx); err != nil {
		h.logger.Warn("storage health check failed", zap.Error(err))
		return err
	}
	return nil
}
