package postgres

import (
	"context"
	"database/sql"
	"fmt"

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
	return &DispatchRecordRepository{
		db:     db,
		logger: logger,
	}
}

// Insert inserts a new dispatch record
func (r *DispatchRecordRepository) Insert(ctx context.Context, record *models.DispatchRecord) error {
	query := `
		INSERT INTO dispatch_records (
			id, message_id, user_id, provider, model, status, error_kind, detail,
			tokens_used, cost, latency_ms, request_id, timestamp
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		record.ID,
		record.MessageID,
		record.UserID,
		string(record.Provider),
		record.Model,
		string(record.Status),
		record.ErrorKind,
		record.Detail,
		record.TokensUsed,
		record.Cost,
		record.LatencyMs,
		record.RequestID,
		record.Timestamp,
	)

	if err != nil {
		return fmt.Errorf("failed to insert dispatch record: %w", err)
	}

	r.logger.Debug("dispatch record inserted",
		zap.String("id", record.ID.String()),
		zap.String("provider", string(record.Provider)),
		zap.String("status", string(record.Status)),
	)
	return nil
}

// ListByUser retrieves the user's most recent dispatch records
func (r *DispatchRecordRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.DispatchRecord, error) {
	query := `
		SELECT id, message_id, user_id, provider, model, status, error_kind, detail,
		       tokens_used, cost, latency_ms, request_id, timestamp
		FROM dispatch_records
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2
	`

	rows, err := GetExecutor(ctx, r.db).QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch records: %w", err)
	}
	defer rows.Close()

	var records []*models.DispatchRecord
	for rows.Next() {
		record, err := scanDispatchRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispatch records: %w", err)
	}

	return records, nil
}

// scanDispatchRecord scans one dispatch_records row
func scanDispatchRecord(rows *sql.Rows) (*models.DispatchRecord, error) {
	var (
		record    models.DispatchRecord
		provider  string
		status    string
		model     sql.NullString
		errorKind sql.NullString
		detail    sql.NullString
		requestID sql.NullString
	)

	err := rows.Scan(
		&record.ID,
		&record.MessageID,
		&record.UserID,
		&provider,
		&model,
		&status,
		&errorKind,
		&detail,
		&record.TokensUsed,
		&record.Cost,
		&record.LatencyMs,
		&requestID,
		&record.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan dispatch record: %w", err)
	}

	record.Provider = models.ProviderID(provider)
	record.Status = models.DispatchStatus(status)
	record.Model = model.String
	record.RequestID = requestID.String
	if errorKind.Valid {
		record.ErrorKind = &errorKind.String
	}
	if detail.Valid {
		record.Detail = &detail.String
	}

	return &record, nil
}
