package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"invencare/internal/domain/catalog"
	"invencare/internal/infrastructure/storage/sqlbuild"
)

// BulkLoader loads catalog rows with the COPY protocol.
type BulkLoader struct {
	txManager *TxManager
}

// NewBulkLoader creates a bulk loader.
func NewBulkLoader(txManager *TxManager) *BulkLoader {
	return &BulkLoader{txManager: txManager}
}

// LoadCatalog inserts stores and products in one transaction.
func (b *BulkLoader) LoadCatalog(ctx context.Context, stores []catalog.Store, products []catalog.Product) error {
	now := time.Now().UTC()
	return b.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		tx := b.txManager.GetTx(ctx)

		storeRows := make([][]any, 0, len(stores))
		for _, s := range stores {
			if s.CreatedAt.IsZero() {
				s.CreatedAt = now
			}
			storeRows = append(storeRows, []any{s.ID, s.Name, s.CreatedAt})
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{sqlbuild.TableStores},
			[]string{"id", "name", "created_at"}, pgx.CopyFromRows(storeRows)); err != nil {
			return fmt.Errorf("copy stores: %w", err)
		}

		productRows := make([][]any, 0, len(products))
		for _, p := range products {
			if p.CreatedAt.IsZero() {
				p.CreatedAt, p.UpdatedAt = now, now
			}
			productRows = append(productRows, []any{
				p.ID, p.StoreID, p.FamilyKey, p.Name, p.Category, numeric(p.UnitPrice),
				p.Quantity, p.MinimumStock, p.MaximumStock, p.CreatedAt, p.UpdatedAt,
			})
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{sqlbuild.TableProducts},
			sqlbuild.ProductColumns, pgx.CopyFromRows(productRows))
		if err != nil {
			return fmt.Errorf("copy products: %w", err)
		}
		if n != int64(len(products)) {
			return fmt.Errorf("copy products: wrote %d of %d rows", n, len(products))
		}
		return nil
	})
}

// numeric converts for the binary COPY protocol.
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}
