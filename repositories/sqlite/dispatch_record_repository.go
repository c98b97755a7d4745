package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/models"
	"github.com/upb/llm-compare/repositories"
)

// DispatchRecordRepository implements the repositories.DispatchRecordRepository interface
type DispatchRecordRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewDispatchRecordRepository creates a new dispatch record repository
func NewDispatchRecordRepository(db *DB, logger *zap.Logger) repositories.DispatchRecordRepository {
	return &DispatchRecordRepository{db: db, logger: logger}
}

// Insert inserts a new dispatch record
func (r *DispatchRecordRepository) Insert(ctx context.Context, record *models.DispatchRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO dispatch_records (
			id, message_id, user_id, provider, model, status, error_kind, detail,
			tokens_used, cost, latency_ms, request_id, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID.String(),
		record.MessageID.String(),
		record.UserID,
		string(record.Provider),
		record.Model,
		string(record.Status),
		nullString(record.ErrorKind),
		nullString(record.Detail),
		record.TokensUsed,
		record.Cost,
		record.LatencyMs,
		record.RequestID,
		record.Timestamp.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}

	r.logger.Debug("dispatch record inserted", zap.String("id", record.ID.String()))
	return nil
}

// ListByUser retrieves the user's most recent dispatch records
func (r *DispatchRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, message_id, user_id, provider, model, status, error_kind, detail,
		       tokens_used, cost, latency_ms, request_id, timestamp
		FROM dispatch_records
		WHERE user_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch records: %w", err)
	}
	defer rows.Close()

	var records []*models.DispatchRecord
	for rows.Next() {
		var (
			id, messageID, provider, status string
			model, errorKind, detail, reqID sql.NullString
			timestamp                       int64
			record                          models.DispatchRecord
		)
		err := rows.Scan(&id, &messageID, &record.UserID, &provider, &model, &status,
			&errorKind, &detail, &record.TokensUsed, &record.Cost, &record.LatencyMs, &reqID, &timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch record: %w", err)
		}

		if record.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid dispatch record id %q: %w", id, err)
		}
		if record.MessageID, err = uuid.Parse(messageID); err != nil {
			return nil, fmt.Errorf("invalid message id %q: %w", messageID, err)
		}
		record.Provider = models.ProviderID(provider)
		record.Status = models.DispatchStatus(status)
		record.Model = model.String
		record.RequestID = reqID.String
		record.Timestamp = time.Unix(0, timestamp).UTC()
		if errorKind.Valid {
			record.ErrorKind = &errorKind.String
		}
		if detail.Valid {
			record.Detail = &detail.String
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch records: %w", err)
	}
	return records, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
