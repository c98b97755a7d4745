package credentials

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/services/providers"
)

// Credential sources reported by Status
const (
	SourceStored      = "stored"
	SourceEnvironment = "env"
)

// ProviderStatus describes whether a provider can be called without a per-request key
type ProviderStatus struct {
	Provider     models.ProviderID `json:"provider"`
	Configured   bool              `json:"configured"`
	Source       string            `json:"source,omitempty"`
	DefaultModel string            `json:"default_model"`
}

// CredentialService owns the process-wide default credential table
type CredentialService struct {
	repo          repositories.CredentialRepository
	env           providers.DefaultCredentials
	defaultModels map[models.ProviderID]string
	logger        *zap.Logger
}

// NewCredentialService creates a new credential service; env holds keys from configuration
func NewCredentialService(
	repo repositories.CredentialRepository,
	env providers.DefaultCredentials,
	defaultModels map[models.ProviderID]string,
	logger *zap.Logger,
) *CredentialService {
	envCopy := make(providers.DefaultCredentials, len(env))
	for id, key := range env {
		envCopy[id] = key
	}
	return &CredentialService{
		repo:          repo,
		env:           envCopy,
		defaultModels: defaultModels,
		logger:        logger,
	}
}

// Snapshot returns the default credential table with stored keys overriding env keys.
// When the store cannot be read the env table is returned together with the error.
func (s *CredentialService) Snapshot(ctx context.Context) (providers.DefaultCredentials, error) {
	table := make(providers.DefaultCredentials, len(s.env))
	for id, key := range s.env {
		table[id] = key
	}

	stored, err := s.stored(ctx)
	if err != nil {
		return table, err
	}
	for id, key := range stored {
		table[id] = key
	}
	return table, nil
}

// SaveKey stores a default key for a provider
func (s *CredentialService) SaveKey(ctx context.Context, provider models.ProviderID, key string) error {
	if !provider.IsKnown() {
		return services.NewValidationError("provider", fmt.Sprintf("unknown provider %q", provider))
	}
	if providers.IsPlaceholder(key, provider) {
		return services.NewValidationError("api_key", services.ErrPlaceholderAPIKey.Message)
	}

	if err := s.repo.SaveCredential(ctx, provider, providers.NewCredential(key).Key()); err != nil {
		return services.WrapInternal("failed to store credential", err)
	}

	s.logger.Info("default credential stored",
		zap.String("provider", string(provider)),
		zap.Stringer("key", providers.NewCredential(key)))
	return nil
}

// Status reports every known provider's default credential state
func (s *CredentialService) Status(ctx context.Context) ([]ProviderStatus, error) {
	stored, err := s.stored(ctx)
	if err != nil {
		return nil, services.WrapInternal("failed to read stored credentials", err)
	}

	out := make([]ProviderStatus, 0, len(models.KnownProviders))
	for _, id := range models.KnownProviders {
		status := ProviderStatus{Provider: id, DefaultModel: s.DefaultModel(id)}
		switch {
		case !providers.IsPlaceholder(stored[id], id):
			status.Configured = true
			status.Source = SourceStored
		case !providers.IsPlaceholder(s.env[id], id):
			status.Configured = true
			status.Source = SourceEnvironment
		}
		out = append(out, status)
	}
	return out, nil
}

// DefaultModel returns the configured default model of a provider
func (s *CredentialService) DefaultModel(provider models.ProviderID) string {
	return s.defaultModels[provider]
}

// stored loads every key held by the credential repository
func (s *CredentialService) stored(ctx context.Context) (map[models.ProviderID]string, error) {
	if s.repo == nil {
		return nil, nil
	}

	ids, err := s.repo.ListConfigured(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored credentials: %w", err)
	}

	out := make(map[models.ProviderID]string, len(ids))
	for _, id := range ids {
		key, ok, err := s.repo.LoadDefaultCredential(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load stored credential for %s: %w", id, err)
		}
		if ok {
			out[id] = key
		}
	}
	return out, nil
}
