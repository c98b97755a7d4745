package providers

import (
	"context"
	"time"

	"github.com/upb/llm-compare/models"
)

// Provider is the single capability every text-completion adapter implements.
// Generate never returns a Go error: every exit path is a typed Outcome.
type Provider interface {
	// ID returns the provider id (e.g., "openai", "gemini", "grok")
	ID() models.ProviderID

	// Generate answers message given the already-windowed history
	Generate(ctx context.Context, req *GenerateRequest) Outcome
}

// GenerateRequest is the provider-neutral input of one adapter call
type GenerateRequest struct {
	// Message is the new user message
	Message string

	// History is the bounded context, oldest first; it does not include Message
	History []models.ConversationEntry

	// Credential is the resolved credential; may be Unconfigured
	Credential Credential

	// Model identifier; empty selects the adapter default
	Model string
}

// Role is the canonical speaker of a turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is the canonical {role, text} representation adapters translate from
type Turn struct {
	Role Role
	Text string
}

// BuildTurns flattens history plus the new message into canonical turns
func BuildTurns(history []models.ConversationEntry, message string) []Turn {
	turns := make([]Turn, 0, len(history)+1)
	for _, entry := range history {
		role := RoleUser
		if entry.Kind == models.EntryKindAssistant {
			role = RoleAssistant
		}
		turns = append(turns, Turn{Role: role, Text: entry.Text})
	}
	return append(turns, Turn{Role: RoleUser, Text: message})
}

// Usage represents token usage statistics
type Usage struct {
	// PromptTokens used in the request
	PromptTokens int `json:"prompt_tokens"`

	// CompletionTokens used in the response
	CompletionTokens int `json:"completion_tokens"`

	// TotalTokens is the sum of prompt and completion tokens
	TotalTokens int `json:"total_tokens"`
}

// ProviderConfig holds common configuration for adapters
type ProviderConfig struct {
	// BaseURL for the API (optional override)
	BaseURL string

	// DefaultModel is used when the request does not name one
	DefaultModel string

	// Timeout bounds a single remote call
	Timeout time.Duration

	// MaxRetries for transient failures
	MaxRetries int

	// RetryDelay between retries
	RetryDelay time.Duration

	// Additional headers
	Headers map[string]string
}

// DefaultProviderConfig returns a sensible default configuration
func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Timeout:    30 * time.Second,
		MaxRetries: 0,
		RetryDelay: 500 * time.Millisecond,
		Headers:    make(map[string]string),
	}
}

// WithDefaults fills zero-valued fields from DefaultProviderConfig
func (c ProviderConfig) WithDefaults() ProviderConfig {
	def := DefaultProviderConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.Headers == nil {
		c.Headers = def.Headers
	}
	return c
}
