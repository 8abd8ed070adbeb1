// Package catalog holds the store-scoped product catalog the ledger reconciles against.
package catalog

import (
	"time"

	"invencare/internal/core/types"
)

// Status is derived from quantity at read time and never stored.
type Status string

const (
	StatusAvailable  Status = "Available"
	StatusLowStock   Status = "Low Stock"
	StatusOutOfStock Status = "Out of Stock"
)

// Store is a retail location.
type Store struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Product is one store's row for a product. The same logical product in
// another store is a different row, linked by FamilyKey when it is set.
type Product struct {
	ID           string      `db:"id"`
	StoreID      string      `db:"store_id"`
	FamilyKey    *string     `db:"family_key"`
	Name         string      `db:"name"`
	Category     string      `db:"category"`
	UnitPrice    types.Money `db:"unit_price"`
	Quantity     int64       `db:"quantity"`
	MinimumStock int64       `db:"minimum_stock"`
	MaximumStock int64       `db:"maximum_stock"`
	CreatedAt    time.Time   `db:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at"`
}

// Status derives the stock status. Negative stock (only possible when the
// ledger permits it) reads as out of stock.
func (p Product) Status() Status {
	switch {
	case p.Quantity <= 0:
		return StatusOutOfStock
	case p.Quantity <= p.MinimumStock:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

// IsLow reports whether the product needs restocking.
func (p Product) IsLow() bool {
	return p.Status() != StatusAvailable
}

// Family returns the family key or "" when the product has none.
func (p Product) Family() string {
	if p.FamilyKey == nil {
		return ""
	}
	return *p.FamilyKey
}

// MatchStrategy records how a transfer destination row was located.
type MatchStrategy string

const (
	MatchFamilyKey    MatchStrategy = "family_key"
	MatchNameCategory MatchStrategy = "name_category"
)

// ProductFilter narrows product listings.
type ProductFilter struct {
	StoreID      string // "" or "all" means every store
	Category     string
	Search       string
	LowStockOnly bool
	Limit        int
	Offset       int
}
