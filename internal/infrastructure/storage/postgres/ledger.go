package postgres

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"invencare/internal/core/apperror"
	"invencare/internal/core/id"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/storage/sqlbuild"
)

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	txManager *TxManager
	sql       sqlbuild.Builder
}

var _ ledger.Repository = (*LedgerRepo)(nil)

// NewLedgerRepo creates the ledger repository.
func NewLedgerRepo(txManager *TxManager) *LedgerRepo {
	return &LedgerRepo{txManager: txManager, sql: sqlbuild.Postgres}
}

func (r *LedgerRepo) Create(ctx context.Context, txn *ledger.Transaction) error {
	query, args, err := r.sql.InsertTransaction(txn)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		switch {
		case isUniqueViolation(err, constraintReference):
			return apperror.NewDuplicateReference(txn.ReferenceNumber).WithCause(err)
		case isUniqueViolation(err, constraintReversal):
			return apperror.NewAlreadyVoided(txn.ReversalOf.String()).WithCause(err)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *LedgerRepo) GetByID(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	query, args, err := r.sql.GetTransaction(txnID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var txn ledger.Transaction
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &txn, query, args...); err != nil {
		if isNoRows(err) {
			return nil, apperror.NewTransactionNotFound(txnID.String())
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return &txn, nil
}

func (r *LedgerRepo) FindReversal(ctx context.Context, txnID id.ID) (*ledger.Transaction, error) {
	query, args, err := r.sql.FindReversal(txnID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var txn ledger.Transaction
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &txn, query, args...); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find reversal: %w", err)
	}
	return &txn, nil
}

func (r *LedgerRepo) List(ctx context.Context, q ledger.Query) ([]ledger.Transaction, int64, error) {
	querier := r.txManager.GetQuerier(ctx)

	countQuery, countArgs, err := r.sql.CountTransactions(q)
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := querier.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}
	if total == 0 {
		return []ledger.Transaction{}, 0, nil
	}

	query, args, err := r.sql.ListTransactions(q)
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var items []ledger.Transaction
	if err := pgxscan.Select(ctx, querier, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return items, total, nil
}

func (r *LedgerRepo) Totals(ctx context.Context, q ledger.Query) ([]ledger.TypeTotals, error) {
	query, args, err := r.sql.TransactionTotals(q)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var rows []ledger.TypeTotals
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &rows, query, args...); err != nil {
		return nil, fmt.Errorf("transaction totals: %w", err)
	}
	return rows, nil
}
