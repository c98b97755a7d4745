package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/upb/llm-compare/app"
	"github.com/upb/llm-compare/middleware"
	"github.com/upb/llm-compare/utils"
)

// requestTimeout caps a whole request; a dispatch waits for its slowest provider
const requestTimeout = 120 * time.Second

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: deps.Config.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.UserIDHeader, middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleHealth)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		// Conversation
		r.Post("/chat", deps.ChatHandler.HandleChat)
		r.Post("/select_response", deps.ChatHandler.HandleSelectResponse)
		r.Get("/history", deps.ChatHandler.HandleHistory)

		// Feedback and metrics
		r.Post("/feedback", deps.MetricsHandler.HandleFeedback)
		r.Get("/metrics", deps.MetricsHandler.HandleMetrics)

		// Audit trail
		r.Get("/records", deps.RecordsHandler.HandleList)

		// Default credentials
		r.Route("/service", func(r chi.Router) {
			r.Get("/status", deps.CredentialsHandler.HandleStatus)
			r.Post("/{provider}/key", deps.CredentialsHandler.HandleSaveKey)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
