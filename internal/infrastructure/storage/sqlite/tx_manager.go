package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"

	"invencare/internal/core/tx"
	"invencare/pkg/logger"
)

var tracer = otel.Tracer("invencare/sqlite")

var _ tx.Manager = (*TxManager)(nil)

type txKey struct{}

// TxManager keeps the active *sqlx.Tx in the context.
type TxManager struct {
	db *DB
}

// NewTxManager creates a transaction manager over db.
func NewTxManager(db *DB) *TxManager {
	return &TxManager{db: db}
}

// Querier is satisfied by both *sqlx.DB and *sqlx.Tx.
type Querier interface {
	sqlx.ExtContext
}

// RunInTransaction executes fn in a transaction, joining the one in ctx if any.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction")
	defer span.End()

	sqlTx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, sqlTx)); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		span.RecordError(err)
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetTx returns the transaction in ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) *sqlx.Tx {
	if t, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return t
	}
	return nil
}

// GetQuerier returns the transaction in ctx or the database handle.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.db.DB
}
