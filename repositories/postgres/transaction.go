package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/upb/llm-compare/repositories"
)

const (
	// SQLSTATEs raised when a concurrent transaction forced an abort
	serializationFailure pq.ErrorCode = "40001"
	deadlockDetected     pq.ErrorCode = "40P01"

	defaultTxAttempts = 3
)

type txKey struct{}

// TxManager runs repository work inside PostgreSQL transactions.
// Work aborted by a serialization failure or deadlock is replayed from the start.
type TxManager struct {
	db          *DB
	logger      *zap.Logger
	maxAttempts int
}

// NewTransactionManager creates a TxManager over db
func NewTransactionManager(db *DB, logger *zap.Logger) *TxManager {
	return &TxManager{
		db:          db,
		logger:      logger,
		maxAttempts: defaultTxAttempts,
	}
}

// Begin opens a transaction bound to ctx
func (m *TxManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return m.begin(ctx)
}

func (m *TxManager) begin(ctx context.Context) (*Tx, error) {
	sqlTx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: sqlTx, ctx: ctx, logger: m.logger}, nil
}

// InTransaction runs fn with a ctx carrying the open transaction; GetExecutor
// picks it up. A ctx that already carries one joins it and the outer call commits.
func (m *TxManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	if outer, ok := txFromContext(ctx); ok {
		return fn(ctx, outer)
	}

	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = m.attempt(ctx, fn)
		if err == nil || !retryable(err) || ctx.Err() != nil {
			return err
		}
		m.logger.Warn("transaction aborted by a concurrent writer",
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return fmt.Errorf("transaction abandoned after %d attempts: %w", m.maxAttempts, err)
}

func (m *TxManager) attempt(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := m.begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx), tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.Error("failed to rollback transaction",
				zap.Error(rbErr),
				zap.NamedError("cause", err))
		}
		return err
	}
	return tx.Commit()
}

// retryable reports whether PostgreSQL aborted the work because of another transaction
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == serializationFailure || pqErr.Code == deadlockDetected
}

// Tx is one open PostgreSQL transaction
type Tx struct {
	tx     *sql.Tx
	ctx    context.Context
	logger *zap.Logger
}

// Commit commits the transaction
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction; rolling back a finished one is a no-op
func (t *Tx) Rollback() error {
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// Context returns the context the transaction was opened with
func (t *Tx) Context() context.Context {
	return t.ctx
}

func txFromContext(ctx context.Context) (*Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*Tx)
	return tx, ok
}

// Executor is the query surface shared by *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// GetExecutor returns the transaction carried by ctx, or the pool when there is none
func GetExecutor(ctx context.Context, db *DB) Executor {
	if tx, ok := txFromContext(ctx); ok {
		return tx.tx
	}
	return db.DB
}
