package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories/repotest"
)

func TestHistoryRepository(t *testing.T) {
	repotest.RunHistory(t, NewHistoryRepository())
}

func TestCredentialRepository(t *testing.T) {
	repotest.RunCredentials(t, NewCredentialRepository())
}

func TestDispatchRecordRepository(t *testing.T) {
	repo := NewDispatchRecordRepository()
	repotest.RunDispatchRecords(t, repo)
	assert.Equal(t, 3, repo.Len())
}

func TestHistoryRepository_SaveCopiesInput(t *testing.T) {
	repo := NewHistoryRepository()
	entries := []models.ConversationEntry{models.NewUserEntry("original")}

	require.NoError(t, repo.Save(context.Background(), "u1", entries))
	entries[0].Text = "mutated"

	got, err := repo.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "original", got[0].Text)
}

func TestHistoryRepository_CanceledContext(t *testing.T) {
	repo := NewHistoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.Load(ctx, "u1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, repo.Save(ctx, "u1", nil), context.Canceled)
}

func TestNewRepositories(t *testing.T) {
	repos := NewRepositories()
	assert.NotNil(t, repos.History)
	assert.NotNil(t, repos.Credentials)
	assert.NotNil(t, repos.DispatchRecords)
}
