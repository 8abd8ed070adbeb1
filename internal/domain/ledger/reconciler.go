package ledger

import (
	"context"
	"fmt"

	"invencare/internal/core/apperror"
	"invencare/internal/domain/catalog"
	"invencare/pkg/logger"
)

// StockPolicy controls how far stock may fall.
type StockPolicy struct {
	// AllowNegative lets outbound transactions drive quantity below zero.
	AllowNegative bool
}

// Reconciliation is the stock effect of one transaction.
type Reconciliation struct {
	Status        ReconciliationStatus
	Source        *catalog.Product
	Destination   *catalog.Product
	MatchStrategy catalog.MatchStrategy
	Warnings      []ReconciliationWarning
}

// Affected lists the updated catalog rows, source first.
func (r Reconciliation) Affected() []catalog.Product {
	out := make([]catalog.Product, 0, 2)
	if r.Source != nil {
		out = append(out, *r.Source)
	}
	if r.Destination != nil {
		out = append(out, *r.Destination)
	}
	return out
}

// Reconciler applies a transaction's signed quantity to the catalog.
// It must run inside the transaction that persists the ledger row.
type Reconciler struct {
	catalog catalog.Repository
	policy  StockPolicy
}

// NewReconciler creates a reconciler.
func NewReconciler(repo catalog.Repository, policy StockPolicy) *Reconciler {
	return &Reconciler{catalog: repo, policy: policy}
}

// Apply moves stock for txn: the source row by txn.Quantity and, for
// transfers, the destination counterpart by -txn.Quantity. A missing source
// fails with PRODUCT_NOT_FOUND. A missing destination is a warning.
func (r *Reconciler) Apply(ctx context.Context, txn *Transaction) (Reconciliation, error) {
	if txn.ProductID == nil {
		return Reconciliation{
			Status: ReconciliationSkipped,
			Warnings: []ReconciliationWarning{{
				Code:    WarningReconciliationSkipped,
				Message: "transaction has no productId, stock was not changed",
				StoreID: txn.StoreID,
			}},
		}, nil
	}

	if txn.Type == TypeTransfer {
		return r.transfer(ctx, txn)
	}

	source, err := r.move(ctx, stockMove{*txn.ProductID, txn.StoreID, txn.Quantity})
	if err != nil {
		return Reconciliation{}, err
	}
	return Reconciliation{
		Status:   ReconciliationApplied,
		Source:   source,
		Warnings: negativeWarning(source),
	}, nil
}

// transfer resolves the destination before any stock changes, then updates
// both rows through movePair.
func (r *Reconciler) transfer(ctx context.Context, txn *Transaction) (Reconciliation, error) {
	src, err := r.catalog.GetProduct(ctx, *txn.ProductID, txn.StoreID)
	if err != nil {
		return Reconciliation{}, err
	}

	destStore := *txn.TransferToStoreID
	counterpart, strategy, err := r.catalog.FindCounterpart(ctx, *src, destStore)
	if apperror.IsCode(err, apperror.CodeProductNotFound) {
		source, err := r.move(ctx, stockMove{src.ID, txn.StoreID, txn.Quantity})
		if err != nil {
			return Reconciliation{}, err
		}
		res := Reconciliation{Status: ReconciliationDestinationMissing, Source: source}
		res.Warnings = append(negativeWarning(source), ReconciliationWarning{
			Code:      WarningDestinationNotFound,
			Message:   fmt.Sprintf("no matching product in store %s, destination stock was not changed", destStore),
			StoreID:   destStore,
			ProductID: source.ID,
		})
		logger.Warn(ctx, "transfer destination not found",
			"product_id", source.ID, "store_id", txn.StoreID, "transfer_to_store_id", destStore)
		return res, nil
	}
	if err != nil {
		return Reconciliation{}, err
	}
	if strategy == catalog.MatchNameCategory {
		logger.Info(ctx, "transfer destination matched by name and category",
			"product_id", src.ID, "destination_product_id", counterpart.ID)
	}

	source, dest, err := r.movePair(ctx,
		stockMove{src.ID, txn.StoreID, txn.Quantity},
		stockMove{counterpart.ID, destStore, -txn.Quantity})
	if err != nil {
		return Reconciliation{}, err
	}
	txn.DestinationProductID = &dest.ID
	return Reconciliation{
		Status:        ReconciliationApplied,
		Source:        source,
		Destination:   dest,
		MatchStrategy: strategy,
		Warnings:      append(negativeWarning(source), negativeWarning(dest)...),
	}, nil
}

// Reverse undoes the stock effect original had, using reversal's quantity
// (which is -original.Quantity). Sides that were never applied stay untouched.
func (r *Reconciler) Reverse(ctx context.Context, original, reversal *Transaction) (Reconciliation, error) {
	if original.ProductID == nil || original.ReconciliationStatus == ReconciliationSkipped {
		return Reconciliation{Status: ReconciliationSkipped}, nil
	}

	sourceMove := stockMove{*original.ProductID, original.StoreID, reversal.Quantity}
	if original.Type != TypeTransfer || original.DestinationProductID == nil {
		source, err := r.move(ctx, sourceMove)
		if err != nil {
			return Reconciliation{}, err
		}
		res := Reconciliation{Status: ReconciliationApplied, Source: source}
		if original.Type == TypeTransfer {
			res.Status = ReconciliationDestinationMissing
		}
		return res, nil
	}

	source, dest, err := r.movePair(ctx, sourceMove,
		stockMove{*original.DestinationProductID, *original.TransferToStoreID, -reversal.Quantity})
	if err != nil {
		return Reconciliation{}, err
	}
	reversal.DestinationProductID = original.DestinationProductID
	return Reconciliation{Status: ReconciliationApplied, Source: source, Destination: dest}, nil
}

// stockMove is one relative quantity change on a catalog row.
type stockMove struct {
	productID string
	storeID   string
	delta     int64
}

func (m stockMove) before(o stockMove) bool {
	if m.storeID != o.storeID {
		return m.storeID < o.storeID
	}
	return m.productID < o.productID
}

// movePair applies a and b in (store, product) order, so two transfers in
// opposite directions lock their rows in the same sequence. Results are
// returned in argument order.
func (r *Reconciler) movePair(ctx context.Context, a, b stockMove) (*catalog.Product, *catalog.Product, error) {
	first, second := a, b
	swapped := b.before(a)
	if swapped {
		first, second = b, a
	}

	p1, err := r.move(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	p2, err := r.move(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if swapped {
		return p2, p1, nil
	}
	return p1, p2, nil
}

func (r *Reconciler) move(ctx context.Context, m stockMove) (*catalog.Product, error) {
	guard := catalog.StockGuard{NonNegative: m.delta < 0 && !r.policy.AllowNegative}
	return r.catalog.IncrementStock(ctx, m.productID, m.storeID, m.delta, guard)
}

func negativeWarning(p *catalog.Product) []ReconciliationWarning {
	if p.Quantity >= 0 {
		return nil
	}
	return []ReconciliationWarning{{
		Code:      WarningNegativeStock,
		Message:   fmt.Sprintf("stock is now %d", p.Quantity),
		StoreID:   p.StoreID,
		ProductID: p.ID,
	}}
}
