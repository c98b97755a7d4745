package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// CredentialRepository implements the repositories.CredentialRepository interface
type CredentialRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB, logger *zap.Logger) repositories.CredentialRepository {
	return &CredentialRepository{
		db:     db,
		logger: logger,
	}
}

// LoadDefaultCredential retrieves the stored key for a provider
func (r *CredentialRepository) LoadDefaultCredential(ctx context.Context, provider models.ProviderID) (string, bool, error) {
	query := `SELECT api_key FROM provider_credentials WHERE provider = $1`

	var key string
	err := GetExecutor(ctx, r.db).QueryRowContext(ctx, query, string(provider)).Scan(&key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to load credential: %w", err)
	}

	return key, true, nil
}

// SaveCredential upserts the default key for a provider
func (r *CredentialRepository) SaveCredential(ctx context.Context, provider models.ProviderID, key string) error {
	query := `
		INSERT INTO provider_credentials (provider, api_key, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (provider) DO UPDATE
		SET api_key = EXCLUDED.api_key, updated_at = EXCLUDED.updated_at
	`

	if _, err := GetExecutor(ctx, r.db).ExecContext(ctx, query, string(provider), key); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}

	r.logger.Debug("credential saved", zap.String("provider", string(provider)))
	return nil
}

// ListConfigured returns providers with a stored key, ordered by id
func (r *CredentialRepository) ListConfigured(ctx context.Context) ([]models.ProviderID, error) {
	query := `SELECT provider FROM provider_credentials ORDER BY provider`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var out []models.ProviderID
	for rows.Next() {
		var provider string
		if err := rows.Scan(&provider); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		out = append(out, models.ProviderID(provider))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credential rows: %w", err)
	}

	return out, nil
}
