package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/services/history"
	"github.com/upb/llm-compare/services/providers"
)

// DispatchRequest is one user message to be answered by several providers
type DispatchRequest struct {
	// Message is the new user message
	Message string

	// UserID owns the conversation the message belongs to
	UserID string

	// Providers lists the requested providers in display order; ids must be unique
	Providers []models.ProviderConfig

	// RequestID is the originating HTTP request id, copied to audit records
	RequestID string
}

// DispatchResult holds exactly one response per requested provider
type DispatchResult struct {
	// MessageID identifies this dispatch for feedback
	MessageID uuid.UUID `json:"message_id"`

	// Responses maps each requested provider to the text shown to the user
	Responses map[models.ProviderID]string `json:"responses"`

	// Outcomes carries the typed per-provider results
	Outcomes map[models.ProviderID]providers.Outcome `json:"-"`
}

// Config holds dispatcher settings
type Config struct {
	// HistoryWindow is the number of stored entries sent as context
	HistoryWindow int

	// ProviderTimeout bounds every individual provider call
	ProviderTimeout time.Duration

	// DefaultModels names the model used for pricing when a request leaves it empty
	DefaultModels map[models.ProviderID]string
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{
		HistoryWindow:   history.DefaultWindowSize,
		ProviderTimeout: 30 * time.Second,
	}
}

// ProviderLookup finds the adapter registered for a provider id
type ProviderLookup interface {
	GetProvider(id models.ProviderID) (providers.Provider, error)
}

// CredentialSource supplies the default credential table for one dispatch.
// On error the returned table is still used.
type CredentialSource interface {
	Snapshot(ctx context.Context) (providers.DefaultCredentials, error)
}

// Recorder accepts dispatch records for asynchronous persistence
type Recorder interface {
	Record(records ...*models.DispatchRecord) error
}

// slot is the settled state of one requested provider
type slot struct {
	config    models.ProviderConfig
	model     string
	outcome   providers.Outcome
	attempted bool
	latency   time.Duration
}
