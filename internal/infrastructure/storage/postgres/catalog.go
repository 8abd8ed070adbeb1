package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"invencare/internal/core/apperror"
	"invencare/internal/domain/catalog"
	"invencare/internal/infrastructure/storage/sqlbuild"
)

// CatalogRepo implements catalog.Repository.
type CatalogRepo struct {
	txManager *TxManager
	sql       sqlbuild.Builder
	now       func() time.Time
}

var _ catalog.Repository = (*CatalogRepo)(nil)

// NewCatalogRepo creates the catalog repository.
func NewCatalogRepo(txManager *TxManager) *CatalogRepo {
	return &CatalogRepo{
		txManager: txManager,
		sql:       sqlbuild.Postgres,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (r *CatalogRepo) GetProduct(ctx context.Context, productID, storeID string) (*catalog.Product, error) {
	query, args, err := r.sql.GetProduct(productID, storeID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var p catalog.Product
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewProductNotFound(productID, storeID)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *CatalogRepo) FindCounterpart(ctx context.Context, source catalog.Product, storeID string) (*catalog.Product, catalog.MatchStrategy, error) {
	q := r.txManager.GetQuerier(ctx)

	if fam := source.Family(); fam != "" {
		query, args, err := r.sql.CounterpartByFamily(fam, storeID)
		if err != nil {
			return nil, "", fmt.Errorf("build query: %w", err)
		}
		var p catalog.Product
		err = pgxscan.Get(ctx, q, &p, query, args...)
		if err == nil {
			return &p, catalog.MatchFamilyKey, nil
		}
		if !pgxscan.NotFound(err) {
			return nil, "", fmt.Errorf("find counterpart by family: %w", err)
		}
	}

	query, args, err := r.sql.CounterpartByName(source.Name, source.Category, storeID)
	if err != nil {
		return nil, "", fmt.Errorf("build query: %w", err)
	}
	var p catalog.Product
	if err := pgxscan.Get(ctx, q, &p, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, "", apperror.NewProductNotFound(source.ID, storeID)
		}
		return nil, "", fmt.Errorf("find counterpart by name: %w", err)
	}
	return &p, catalog.MatchNameCategory, nil
}

// IncrementStock runs the guarded UPDATE. Concurrent decrements of one row
// serialize on its row lock and the guard is re-evaluated against the
// committed quantity, so stock cannot be oversold.
func (r *CatalogRepo) IncrementStock(ctx context.Context, productID, storeID string, delta int64, guard catalog.StockGuard) (*catalog.Product, error) {
	query, args, err := r.sql.IncrementStock(productID, storeID, delta, guard, r.now())
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var p catalog.Product
	err = pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &p, query, args...)
	if err == nil {
		return &p, nil
	}
	if !pgxscan.NotFound(err) {
		return nil, fmt.Errorf("increment stock: %w", err)
	}

	// no row updated: either unknown product or the guard refused
	current, getErr := r.GetProduct(ctx, productID, storeID)
	if getErr != nil {
		return nil, getErr
	}
	return nil, apperror.NewInsufficientStock(productID, storeID, -delta, current.Quantity)
}

func (r *CatalogRepo) GetStore(ctx context.Context, storeID string) (*catalog.Store, error) {
	query, args, err := r.sql.GetStore(storeID)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var s catalog.Store
	if err := pgxscan.Get(ctx, r.txManager.GetQuerier(ctx), &s, query, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewStoreNotFound(storeID)
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	return &s, nil
}

func (r *CatalogRepo) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	q := r.txManager.GetQuerier(ctx)

	countQuery, countArgs, err := r.sql.CountProducts(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int64
	if err := q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	query, args, err := r.sql.ListProducts(filter)
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}
	var items []catalog.Product
	if err := pgxscan.Select(ctx, q, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	return items, total, nil
}

func (r *CatalogRepo) ListStores(ctx context.Context) ([]catalog.Store, error) {
	query, args, err := r.sql.ListStores()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var stores []catalog.Store
	if err := pgxscan.Select(ctx, r.txManager.GetQuerier(ctx), &stores, query, args...); err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

func (r *CatalogRepo) CreateStore(ctx context.Context, s *catalog.Store) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	query, args, err := r.sql.InsertStore(s)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "") {
			return apperror.NewDuplicate("store", "id", s.ID)
		}
		return fmt.Errorf("insert store: %w", err)
	}
	return nil
}

func (r *CatalogRepo) CreateProduct(ctx context.Context, p *catalog.Product) error {
	now := r.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = now
	}
	query, args, err := r.sql.InsertProduct(p)
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	if _, err := r.txManager.GetQuerier(ctx).Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "") {
			return apperror.NewDuplicate("product", "id", p.ID+"@"+p.StoreID)
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}
