package sqlite

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
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB, logger *zap.Logger) repositories.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Load returns the user's turns ordered by position
func (r *HistoryRepository) Load(ctx context.Context, userID string) ([]models.ConversationEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT kind, text, source_provider FROM conversation_entries WHERE user_id = ? ORDER BY position ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	entries := []models.ConversationEntry{}
	for rows.Next() {
		var (
			kind, text string
			source     sql.NullString
		)
		if err := rows.Scan(&kind, &text, &source); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry := models.ConversationEntry{Kind: models.EntryKind(kind), Text: text}
		if source.Valid && source.String != "" {
			id := models.ProviderID(source.String)
			entry.SourceProvider = &id
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM conversation_entries WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO conversation_entries (user_id, position, kind, text, source_provider) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare history insert: %w", err)
	}
	defer stmt.Close()

	for i, entry := range entries {
		var source sql.NullString
		if entry.SourceProvider != nil {
			source = sql.NullString{String: string(*entry.SourceProvider), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, userID, i, string(entry.Kind), entry.Text, source); err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.logger.Debug("history saved", zap.String("user_id", userID), zap.Int("entries", len(entries)))
	return nil
}
