package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// HistoryRepository implements the repositories.HistoryRepository interface
type HistoryRepository struct {
	db     *DB
	tm     repositories.TransactionManager
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB, logger *zap.Logger) repositories.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		tm:     NewTransactionManager(db, logger),
		logger: logger,
	}
}

// Load returns the user's turns ordered by position
func (r *HistoryRepository) Load(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	query := `
		SELECT kind, text, source_provider
		FROM conversation_entries
		WHERE user_id = $1
		ORDER BY position ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	entries := []models.ConversationEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return entries, nil
}

// Save replaces the user's history in a single transaction
func (r *HistoryRepository) Save(ctx context.Context, userID string, entries []models.ConversationEntry) error {
	err := r.tm.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		executor := GetExecutor(ctx, r.db)

		if _, err := executor.ExecContext(ctx, `DELETE FROM conversation_entries WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to clear history: %w", err)
		}

		insert := `
			INSERT INTO conversation_entries (user_id, position, kind, text, source_provider)
			VALUES ($1, $2, $3, $4, $5)
		`
		for i, entry := range entries {
			var source sql.NullString
			if entry.SourceProvider != nil {
				source = sql.NullString{String: string(*entry.SourceProvider), Valid: true}
			}
			if _, err := executor.ExecContext(ctx, insert, userID, i, entry.Kind, entry.Text, source); err != nil {
				return fmt.Errorf("failed to insert history entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Debug("history saved", zap.String("user_id", userID), zap.Int("entries", len(entries)))
	return nil
}

// scanEntry scans one conversation_entries row
func scanEntry(rows *sql.Rows) (models.ConversationEntry, error) {
	var (
		entry  models.ConversationEntry
		source sql.NullString
	)
	if err := rows.Scan(&entry.Kind, &entry.Text, &source); err != nil {
		return entry, fmt.Errorf("failed to scan history entry: %w", err)
	}
	if source.Valid && source.String != "" {
		id := models.ProviderID(source.String)
		entry.SourceProvider = &id
	}
	return entry, nil
}
