package providers

import (
	"fmt"
	"strings"

	"github.com/upb/llm-compare/models"
)

// Credential is a resolved API key, or the Unconfigured marker
type Credential struct {
	key string
}

// Unconfigured is the credential of a provider with no usable key
var Unconfigured = Credential{}

// NewCredential wraps a usable key
func NewCredential(key string) Credential {
	return Credential{key: strings.TrimSpace(key)}
}

// Configured reports whether the credential carries a key
func (c Credential) Configured() bool {
	return c.key != ""
}

// Key returns the raw key
func (c Credential) Key() string {
	return c.key
}

// String masks the key so credentials never leak into logs
func (c Credential) String() string {
	if !c.Configured() {
		return "<unconfigured>"
	}
	if len(c.key) <= 8 {
		return "****"
	}
	return c.key[:4] + "****" + c.key[len(c.key)-4:]
}

// IsPlaceholder reports whether key is empty, whitespace, or a known
// placeholder such as YOUR_TEST_OPENAI_KEY or your-openai-key-here
func IsPlaceholder(key string, provider models.ProviderID) bool {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return true
	}

	name := strings.ToLower(string(provider))
	lower := strings.ToLower(trimmed)
	if lower == fmt.Sprintf("your_test_%s_key", name) {
		return true
	}
	if lower == fmt.Sprintf("your-%s-key-here", name) {
		return true
	}
	return false
}

// DefaultCredentials is a snapshot of provider id to default key
type DefaultCredentials map[models.ProviderID]string

// CredentialResolver decides which key, if any, each provider call uses
type CredentialResolver struct {
	defaults DefaultCredentials
}

// NewCredentialResolver creates a resolver over a copy of defaults
func NewCredentialResolver(defaults DefaultCredentials) *CredentialResolver {
	snapshot := make(DefaultCredentials, len(defaults))
	for id, key := range defaults {
		snapshot[id] = key
	}
	return &CredentialResolver{defaults: snapshot}
}

// Resolve prefers a usable supplied key, then the default table, else Unconfigured
func (r *CredentialResolver) Resolve(provider models.ProviderID, supplied string) Credential {
	if !IsPlaceholder(supplied, provider) {
		return NewCredential(supplied)
	}
	if def, ok := r.defaults[provider]; ok && !IsPlaceholder(def, provider) {
		return NewCredential(def)
	}
	return Unconfigured
}

// Configured returns the provider ids that have a usable default key
func (r *CredentialResolver) Configured() []models.ProviderID {
	ids := make([]models.ProviderID, 0, len(r.defaults))
	for _, id := range models.KnownProviders {
		if def, ok := r.defaults[id]; ok && !IsPlaceholder(def, id) {
			ids = append(ids, id)
		}
	}
	return ids
}
