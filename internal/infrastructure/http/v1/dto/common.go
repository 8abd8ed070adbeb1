// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"invencare/internal/core/types"
)

// --- Pagination ---

// PaginationRequest contains offset paging parameters.
type PaginationRequest struct {
	Limit  int `form:"limit" binding:"omitempty,min=0"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}

// PaginationResponse contains pagination metadata.
type PaginationResponse struct {
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"hasMore"`
}

// NewPaginationResponse creates pagination response for a page of size count.
func NewPaginationResponse(total int64, limit, offset, count int) PaginationResponse {
	return PaginationResponse{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: int64(offset+count) < total,
	}
}

// --- Money ---

// Money renders an amount with exactly two decimals ("60.00").
func Money(m types.Money) string {
	return m.StringFixed(types.MoneyScale)
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
