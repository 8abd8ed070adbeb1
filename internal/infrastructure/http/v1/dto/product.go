package dto

import (
	"time"

	"invencare/internal/domain/catalog"
)

// ProductResponse is a store-scoped product with its derived status.
type ProductResponse struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"storeId"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	UnitPrice    string    `json:"unitPrice"`
	Quantity     int64     `json:"quantity"`
	MinimumStock int64     `json:"minimumStock"`
	MaximumStock int64     `json:"maximumStock"`
	Status       string    `json:"status"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// FromProduct creates ProductResponse.
func FromProduct(p catalog.Product) ProductResponse {
	return ProductResponse{
		ID:           p.ID,
		StoreID:      p.StoreID,
		Name:         p.Name,
		Category:     p.Category,
		UnitPrice:    Money(p.UnitPrice),
		Quantity:     p.Quantity,
		MinimumStock: p.MinimumStock,
		MaximumStock: p.MaximumStock,
		Status:       string(p.Status()),
		UpdatedAt:    p.UpdatedAt,
	}
}

// FromProducts converts a product list.
func FromProducts(items []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(items))
	for _, p := range items {
		out = append(out, FromProduct(p))
	}
	return out
}

// ProductFilter is the query string of GET /products.
type ProductFilter struct {
	PaginationRequest
	StoreID  string `form:"storeId"`
	Category string `form:"category"`
	Search   string `form:"search"`
}

// ToFilter converts the query to the catalog filter.
func (f ProductFilter) ToFilter() catalog.ProductFilter {
	return catalog.ProductFilter{
		StoreID:  f.StoreID,
		Category: f.Category,
		Search:   f.Search,
		Limit:    f.Limit,
		Offset:   f.Offset,
	}
}

// ProductListResponse is returned by GET /products.
type ProductListResponse struct {
	Products   []ProductResponse  `json:"products"`
	Pagination PaginationResponse `json:"pagination"`
}

// StoreResponse is one store.
type StoreResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FromStores converts a store list.
func FromStores(items []catalog.Store) []StoreResponse {
	out := make([]StoreResponse, 0, len(items))
	for _, s := range items {
		out = append(out, StoreResponse{ID: s.ID, Name: s.Name})
	}
	return out
}
