package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories/memory"
	"github.com/upb/llm-compare/services"
	"github.com/upb/llm-compare/services/providers"
)

// MockCredentialRepository is a mock implementation of CredentialRepository
type MockCredentialRepository struct {
	mock.Mock
}

func (m *MockCredentialRepository) LoadDefaultCredential(ctx context.Context, provider models.ProviderID) (string, bool, error) {
	args := m.Called(ctx, provider)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockCredentialRepository) SaveCredential(ctx context.Context, provider models.ProviderID, key string) error {
	args := m.Called(ctx, provider, key)
	return args.Error(0)
}

func (m *MockCredentialRepository) ListConfigured(ctx context.Context) ([]models.ProviderID, error) {
	args := m.Called(ctx)
	if ids := args.Get(0); ids != nil {
		return ids.([]models.ProviderID), args.Error(1)
	}
	return nil, args.Error(1)
}

var defaultModels = map[models.ProviderID]string{
	models.ProviderOpenAI: "gpt-3.5-turbo",
	models.ProviderGemini: "gemini-pro",
}

func TestCredentialService_SnapshotStoredOverridesEnv(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	require.NoError(t, repo.SaveCredential(ctx, models.ProviderOpenAI, "sk-stored"))

	env := providers.DefaultCredentials{
		models.ProviderOpenAI: "sk-env",
		models.ProviderGemini: "AIza-env",
	}
	service := NewCredentialService(repo, env, defaultModels, zap.NewNop())

	table, err := service.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-stored", table[models.ProviderOpenAI])
	assert.Equal(t, "AIza-env", table[models.ProviderGemini])

	// the snapshot is detached from later writes
	require.NoError(t, repo.SaveCredential(ctx, models.ProviderOpenAI, "sk-newer"))
	assert.Equal(t, "sk-stored", table[models.ProviderOpenAI])
}

func TestCredentialService_SnapshotStoreFailure(t *testing.T) {
	repo := new(MockCredentialRepository)
	repo.On("ListConfigured", mock.Anything).Return(nil, errors.New("db down"))

	service := NewCredentialService(repo, providers.DefaultCredentials{models.ProviderGrok: "xai-env"}, nil, zap.NewNop())

	table, err := service.Snapshot(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "xai-env", table[models.ProviderGrok])
}

func TestCredentialService_SaveKey(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		provider  models.ProviderID
		key       string
		wantField string
	}{
		{"unknown provider", "mystery", "sk-real", "provider"},
		{"empty key", models.ProviderOpenAI, "   ", "api_key"},
		{"placeholder key", models.ProviderOpenAI, "YOUR_TEST_OPENAI_KEY", "api_key"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewCredentialService(memory.NewCredentialRepository(), nil, nil, zap.NewNop())
			err := service.SaveKey(ctx, tt.provider, tt.key)
			require.Error(t, err)
			assert.True(t, services.IsValidationError(err))
			assert.Equal(t, tt.wantField, services.GetErrorDetails(err)["field"])
		})
	}

	t.Run("stores trimmed key", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("SaveCredential", mock.Anything, models.ProviderGemini, "AIza-real").Return(nil)

		service := NewCredentialService(repo, nil, nil, zap.NewNop())
		require.NoError(t, service.SaveKey(ctx, models.ProviderGemini, "  AIza-real "))
		repo.AssertExpectations(t)
	})

	t.Run("store failure is internal", func(t *testing.T) {
		repo := new(MockCredentialRepository)
		repo.On("SaveCredential", mock.Anything, models.ProviderGemini, "AIza-real").Return(errors.New("disk full"))

		service := NewCredentialService(repo, nil, nil, zap.NewNop())
		err := service.SaveKey(ctx, models.ProviderGemini, "AIza-real")
		assert.True(t, services.IsInternalError(err))
	})
}

func TestCredentialService_Status(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewCredentialRepository()
	require.NoError(t, repo.SaveCredential(ctx, models.ProviderGemini, "AIza-stored"))

	env := providers.DefaultCredentials{
		models.ProviderOpenAI: "sk-env",
		models.ProviderGrok:   "YOUR_TEST_GROK_KEY",
	}
	service := NewCredentialService(repo, env, defaultModels, zap.NewNop())

	statuses, err := service.Status(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, len(models.KnownProviders))

	byID := make(map[models.ProviderID]ProviderStatus)
	for _, s := range statuses {
		byID[s.Provider] = s
	}

	assert.Equal(t, ProviderStatus{Provider: models.ProviderOpenAI, Configured: true, Source: SourceEnvironment, DefaultModel: "gpt-3.5-turbo"}, byID[models.ProviderOpenAI])
	assert.Equal(t, ProviderStatus{Provider: models.ProviderGemini, Configured: true, Source: SourceStored, DefaultModel: "gemini-pro"}, byID[models.ProviderGemini])
	assert.False(t, byID[models.ProviderGrok].Configured)
	assert.False(t, byID[models.ProviderAnthropic].Configured)
	assert.Equal(t, "gpt-3.5-turbo", service.DefaultModel(models.ProviderOpenAI))
}
