package catalog

import (
	"context"
	"fmt"

	appctx "invencare/internal/core/context"
)

const (
	defaultProductLimit = 100
	maxProductLimit     = 500
)

// Service exposes read-side catalog operations. Stock is never written here;
// only the ledger reconciler changes quantities.
type Service struct {
	repo Repository
}

// NewService creates a catalog service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListProducts returns products with their derived status.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, int64, error) {
	filter.Limit = clampLimit(filter.Limit)
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	products, total, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return products, total, nil
}

// LowStock returns products at or below their minimum in storeID ("all" for every store).
func (s *Service) LowStock(ctx context.Context, storeID string) ([]Product, error) {
	products, _, err := s.repo.ListProducts(ctx, ProductFilter{
		StoreID:      storeID,
		LowStockOnly: true,
		Limit:        maxProductLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	return products, nil
}

// GetProduct returns one store-scoped product.
func (s *Service) GetProduct(ctx context.Context, productID, storeID string) (*Product, error) {
	return s.repo.GetProduct(ctx, productID, storeID)
}

// ListStores returns the stores the caller may see.
func (s *Service) ListStores(ctx context.Context) ([]Store, error) {
	stores, err := s.repo.ListStores(ctx)
	if err != nil {
		return nil, err
	}
	visible := make([]Store, 0, len(stores))
	for _, st := range stores {
		if appctx.HasStoreAccess(ctx, st.ID) {
			visible = append(visible, st)
		}
	}
	return visible, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultProductLimit
	case limit > maxProductLimit:
		return maxProductLimit
	default:
		return limit
	}
}
