package repositories

import (
	"context"

	"github.com/upb/llm-compare/models"
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// HistoryRepository persists each user's ordered conversation history
type HistoryRepository interface {
	// Load returns the user's full history in order; an unknown user yields an empty history
	Load(ctx context.Context, userID string) ([]models.ConversationEntry, error)

	// Save replaces the user's stored history with entries
	Save(ctx context.Context, userID string, entries []models.ConversationEntry) error
}

// CredentialRepository stores process-wide default provider credentials
type CredentialRepository interface {
	// LoadDefaultCredential returns the stored key for a provider and whether one exists
	LoadDefaultCredential(ctx context.Context, provider models.ProviderID) (string, bool, error)

	// SaveCredential stores or replaces the default key for a provider
	SaveCredential(ctx context.Context, provider models.ProviderID, key string) error

	// ListConfigured returns the providers with a stored key
	ListConfigured(ctx context.Context) ([]models.ProviderID, error)
}

// DispatchRecordRepository stores the per-provider audit trail of dispatches
type DispatchRecordRepository interface {
	// Insert inserts a new dispatch record
	Insert(ctx context.Context, record *models.DispatchRecord) error

	// ListByUser returns the user's most recent records, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error)
}

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	History         HistoryRepository
	Credentials     CredentialRepository
	DispatchRecords DispatchRecordRepository
}
