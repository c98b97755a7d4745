package sqlite

import (
	"context"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/repositories"
)

// RepositoryFactory creates and manages the SQLite-backed repositories
type RepositoryFactory struct {
	db     *DB
	logger *zap.Logger
}

// NewRepositoryFactory opens the database at path
func NewRepositoryFactory(ctx context.Context, path string, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := Open(ctx, path, logger)
	if err != nil {
		return nil, err
	}
	return &RepositoryFactory{db: db, logger: logger}, nil
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		History:         NewHistoryRepository(f.db, f.logger),
		Credentials:     NewCredentialRepository(f.db, f.logger),
		DispatchRecords: NewDispatchRecordRepository(f.db, f.logger),
	}
}

// HealthCheck queries the database
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	return f.db.HealthCheck(ctx)
}

// Close closes the database
func (f *RepositoryFactory) Close() error {
	return f.db.Close()
}
