// Package repotest holds behavioural checks shared by every repository backend.
package repotest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// RunHistory exercises a HistoryRepository
func RunHistory(t *testing.T, repo repositories.HistoryRepository) {
	t.Helper()
	ctx := context.Background()

	t.Run("unknown user loads empty", func(t *testing.T) {
		entries, err := repo.Load(ctx, "nobody")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("save then load keeps order and attribution", func(t *testing.T) {
		want := []models.ConversationEntry{
			models.NewUserEntry("Hello"),
			models.NewAssistantEntry("Hi there", models.ProviderOpenAI),
			models.NewUserEntry("How are you?"),
		}
		require.NoError(t, repo.Save(ctx, "alice", want))

		got, err := repo.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, "bob", []models.ConversationEntry{
			models.NewUserEntry("one"), models.NewUserEntry("two"),
		}))
		require.NoError(t, repo.Save(ctx, "bob", []models.ConversationEntry{models.NewUserEntry("three")}))

		got, err := repo.Load(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, []models.ConversationEntry{models.NewUserEntry("three")}, got)
	})

	t.Run("users are isolated", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, "carol", []models.ConversationEntry{models.NewUserEntry("carol says")}))

		got, err := repo.Load(ctx, "alice")
		require.NoError(t, err)
		for _, entry := range got {
			assert.NotEqual(t, "carol says", entry.Text)
		}
	})
}

// RunCredentials exercises a CredentialRepository
func RunCredentials(t *testing.T, repo repositories.CredentialRepository) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := repo.LoadDefaultCredential(ctx, models.ProviderGemini)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SaveCredential(ctx, models.ProviderOpenAI, "sk-first"))
	require.NoError(t, repo.SaveCredential(ctx, models.ProviderOpenAI, "sk-second"))
	require.NoError(t, repo.SaveCredential(ctx, models.ProviderAnthropic, "sk-ant"))

	key, ok, err := repo.LoadDefaultCredential(ctx, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "sk-second", key)

	ids, err := repo.ListConfigured(ctx)
	require.NoError(t, err)
	assert.Equal(t, []models.ProviderID{models.ProviderAnthropic, models.ProviderOpenAI}, ids)
}

// RunDispatchRecords exercises a DispatchRecordRepository
func RunDispatchRecords(t *testing.T, repo repositories.DispatchRecordRepository) {
	t.Helper()
	ctx := context.Background()

	messageID := uuid.New()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	older := models.NewDispatchRecord(messageID, "u1", models.ProviderOpenAI, "gpt-3.5-turbo").
		WithUsage(15, 0.00003, 250*time.Millisecond)
	older.Timestamp = base

	newer := models.NewDispatchRecord(messageID, "u1", models.ProviderGrok, "grok-2").
		WithFailure(models.DispatchStatusFailed, "rate_limited", "429 Too Many Requests").
		WithRequestID("req-7")
	newer.Timestamp = base.Add(time.Second)

	other := models.NewDispatchRecord(uuid.New(), "u2", models.ProviderGemini, "gemini-pro")
	other.Timestamp = base

	for _, record := range []*models.DispatchRecord{older, newer, other} {
		require.NoError(t, repo.Insert(ctx, record))
	}

	records, err := repo.ListByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, models.DispatchStatusFailed, records[0].Status)
	require.NotNil(t, records[0].ErrorKind)
	assert.Equal(t, "rate_limited", *records[0].ErrorKind)
	assert.Equal(t, "req-7", records[0].RequestID)
	assert.True(t, newer.Timestamp.Equal(records[0].Timestamp))

	assert.Equal(t, older.ID, records[1].ID)
	assert.Equal(t, messageID, records[1].MessageID)
	assert.Equal(t, 15, records[1].TokensUsed)
	assert.InDelta(t, 0.00003, records[1].Cost, 1e-12)
	assert.Equal(t, 250, records[1].LatencyMs)
	assert.Nil(t, records[1].ErrorKind)

	limited, err := repo.ListByUser(ctx, "u1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, newer.ID, limited[0].ID)
}
