package catalog

import "context"

// StockGuard constrains an increment. With NonNegative set, an increment that
// would leave quantity below zero is refused and nothing changes.
type StockGuard struct {
	NonNegative bool
}

// Repository is the catalog collaborator used by the reconciler and read APIs.
// Every method uses the transaction carried by ctx when there is one.
type Repository interface {
	// GetProduct returns the row identified by (productID, storeID).
	// Missing rows yield apperror PRODUCT_NOT_FOUND.
	GetProduct(ctx context.Context, productID, storeID string) (*Product, error)

	// FindCounterpart locates the row in storeID that represents the same
	// product as source: by family key when source has one, else by
	// (name, category). Missing rows yield apperror PRODUCT_NOT_FOUND.
	FindCounterpart(ctx context.Context, source Product, storeID string) (*Product, MatchStrategy, error)

	// IncrementStock applies quantity = quantity + delta in a single statement
	// and returns the updated row. A refused guard yields INSUFFICIENT_STOCK.
	IncrementStock(ctx context.Context, productID, storeID string, delta int64, guard StockGuard) (*Product, error)

	// GetStore returns a store or STORE_NOT_FOUND.
	GetStore(ctx context.Context, storeID string) (*Store, error)

	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int64, error)
	ListStores(ctx context.Context) ([]Store, error)

	CreateStore(ctx context.Context, store *Store) error
	CreateProduct(ctx context.Context, product *Product) error
}
