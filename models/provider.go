package models

import (
	"fmt"
	"strings"
)

// ProviderID identifies a text-completion provider
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderGemini    ProviderID = "gemini"
	ProviderGrok      ProviderID = "grok"
	ProviderAnthropic ProviderID = "anthropic"
)

// KnownProviders lists every provider the service ships an adapter for
var KnownProviders = []ProviderID{
	ProviderOpenAI,
	ProviderGemini,
	ProviderGrok,
	ProviderAnthropic,
}

// String returns the provider id as a string
func (p ProviderID) String() string {
	return string(p)
}

// IsKnown reports whether the id is one of KnownProviders
func (p ProviderID) IsKnown() bool {
	for _, known := range KnownProviders {
		if p == known {
			return true
		}
	}
	return false
}

// ParseProviderID normalizes and validates a provider id
func ParseProviderID(s string) (ProviderID, error) {
	id := ProviderID(strings.ToLower(strings.TrimSpace(s)))
	if !id.IsKnown() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return id, nil
}

// ProviderConfig is the per-request provider selection supplied by the caller.
// Credential may be empty, in which case the process-wide default is used.
type ProviderConfig struct {
	ProviderID ProviderID `json:"provider"`
	Credential string     `json:"-"`
	Model      string     `json:"model,omitempty"`
}
