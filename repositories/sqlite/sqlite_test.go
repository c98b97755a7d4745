package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories/repotest"
)

func openMemory(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), MemoryPath, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestHistoryRepository(t *testing.T) {
	repotest.RunHistory(t, NewHistoryRepository(openMemory(t), zap.NewNop()))
}

func TestCredentialRepository(t *testing.T) {
	repotest.RunCredentials(t, NewCredentialRepository(openMemory(t), zap.NewNop()))
}

func TestDispatchRecordRepository(t *testing.T) {
	repotest.RunDispatchRecords(t, NewDispatchRecordRepository(openMemory(t), zap.NewNop()))
}

func TestOpen_FileSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "compare.db")

	factory, err := NewRepositoryFactory(ctx, path, zap.NewNop())
	require.NoError(t, err)

	repos := factory.NewRepositories()
	require.NoError(t, repos.History.Save(ctx, "u1", []models.ConversationEntry{models.NewUserEntry("persisted")}))
	require.NoError(t, factory.HealthCheck(ctx))
	require.NoError(t, factory.Close())

	reopened, err := NewRepositoryFactory(ctx, path, zap.NewNop())
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.NewRepositories().History.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []models.ConversationEntry{models.NewUserEntry("persisted")}, got)
}

func TestHealthCheck_ClosedDatabase(t *testing.T) {
	db, err := Open(context.Background(), MemoryPath, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.Error(t, db.HealthCheck(context.Background()))
}
