package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"invencare/internal/core/types"
	"invencare/internal/domain/ledger"
)

// --- Request DTOs ---

// RecordTransactionRequest is the body of POST /transactions. Field rules are
// checked by the ledger so every client gets the same error codes.
type RecordTransactionRequest struct {
	Type              string          `json:"type"`
	ProductID         string          `json:"productId"`
	ProductName       string          `json:"productName"`
	Category          string          `json:"category"`
	Quantity          types.Units     `json:"quantity"`
	UnitPrice         decimal.Decimal `json:"unitPrice"`
	StoreID           string          `json:"storeId"`
	TransferToStoreID string          `json:"transferToStoreId"`
	UserID            string          `json:"userId"`
	UserName          string          `json:"userName"`
	Notes             string          `json:"notes"`
}

// ToInput converts the request to the ledger input.
func (r *RecordTransactionRequest) ToInput() ledger.RecordInput {
	return ledger.RecordInput{
		Type:              r.Type,
		ProductID:         r.ProductID,
		ProductName:       r.ProductName,
		Category:          r.Category,
		Quantity:          r.Quantity,
		UnitPrice:         r.UnitPrice,
		StoreID:           r.StoreID,
		TransferToStoreID: r.TransferToStoreID,
		UserID:            r.UserID,
		UserName:          r.UserName,
		Notes:             r.Notes,
	}
}

// VoidTransactionRequest is the body of POST /transactions/:id/void.
type VoidTransactionRequest struct {
	Reason   string `json:"reason"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// ToInput converts the request to the ledger input.
func (r *VoidTransactionRequest) ToInput() ledger.VoidInput {
	return ledger.VoidInput{Reason: r.Reason, UserID: r.UserID, UserName: r.UserName}
}

// TransactionFilter is the query string of GET /transactions and
// GET /transactions/summary. Dates accept RFC 3339 or YYYY-MM-DD; a bare
// endDate covers the whole day.
type TransactionFilter struct {
	PaginationRequest
	StoreID   string `form:"storeId"`
	Type      string `form:"type"`
	DateRange string `form:"dateRange"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Search    string `form:"search"`
}

// --- Response DTOs ---

// TransactionResponse is one ledger row.
type TransactionResponse struct {
	ID                   string    `json:"id"`
	ReferenceNumber      string    `json:"referenceNumber"`
	Type                 string    `json:"type"`
	ProductID            *string   `json:"productId"`
	ProductName          string    `json:"productName"`
	Category             string    `json:"category"`
	Quantity             int64     `json:"quantity"`
	UnitPrice            string    `json:"unitPrice"`
	TotalAmount          string    `json:"totalAmount"`
	StoreID              string    `json:"storeId"`
	TransferToStoreID    *string   `json:"transferToStoreId,omitempty"`
	DestinationProductID *string   `json:"destinationProductId,omitempty"`
	UserID               string    `json:"userId"`
	UserName             string    `json:"userName"`
	Notes                *string   `json:"notes,omitempty"`
	ReconciliationStatus string    `json:"reconciliationStatus"`
	ReversalOf           *string   `json:"reversalOf,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
}

// FromTransaction creates TransactionResponse from a ledger row.
func FromTransaction(t ledger.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                   t.ID.String(),
		ReferenceNumber:      t.ReferenceNumber,
		Type:                 string(t.Type),
		ProductID:            t.ProductID,
		ProductName:          t.ProductName,
		Category:             t.Category,
		Quantity:             t.Quantity,
		UnitPrice:            Money(t.UnitPrice),
		TotalAmount:          Money(t.TotalAmount),
		StoreID:              t.StoreID,
		TransferToStoreID:    t.TransferToStoreID,
		DestinationProductID: t.DestinationProductID,
		UserID:               t.UserID,
		UserName:             t.UserName,
		Notes:                t.Notes,
		ReconciliationStatus: string(t.ReconciliationStatus),
		CreatedAt:            t.CreatedAt,
	}
	if t.ReversalOf != nil {
		s := t.ReversalOf.String()
		resp.ReversalOf = &s
	}
	return resp
}

// FromTransactions converts a page of rows.
func FromTransactions(items []ledger.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(items))
	for _, t := range items {
		out = append(out, FromTransaction(t))
	}
	return out
}

// RecordTransactionResponse is returned by POST /transactions and the void endpoint.
type RecordTransactionResponse struct {
	Transaction      TransactionResponse            `json:"transaction"`
	AffectedProducts []ProductResponse              `json:"affectedProducts"`
	Warnings         []ledger.ReconciliationWarning `json:"warnings"`
}

// FromRecorded creates the response for a recorded transaction.
func FromRecorded(r *ledger.Recorded) RecordTransactionResponse {
	warnings := r.Warnings
	if warnings == nil {
		warnings = []ledger.ReconciliationWarning{}
	}
	return RecordTransactionResponse{
		Transaction:      FromTransaction(r.Transaction),
		AffectedProducts: FromProducts(r.Affected),
		Warnings:         warnings,
	}
}

// TransactionListResponse is returned by GET /transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Pagination   PaginationResponse    `json:"pagination"`
}

// FromPage creates the list response.
func FromPage(p *ledger.Page) TransactionListResponse {
	return TransactionListResponse{
		Transactions: FromTransactions(p.Items),
		Pagination:   NewPaginationResponse(p.Total, p.Limit, p.Offset, len(p.Items)),
	}
}

// SummaryResponse is returned by GET /transactions/summary.
type SummaryResponse struct {
	TotalTransactions int64  `json:"total_transactions"`
	TotalSales        string `json:"total_sales"`
	TotalRestockValue string `json:"total_restock_value"`
	SalesCount        int64  `json:"sales_count"`
	RestockCount      int64  `json:"restock_count"`
	AdjustmentCount   int64  `json:"adjustment_count"`
	TransferCount     int64  `json:"transfer_count"`
	UnitsSold         int64  `json:"units_sold"`
	UnitsRestocked    int64  `json:"units_restocked"`
}

// FromSummary creates SummaryResponse.
func FromSummary(s *ledger.Summary) SummaryResponse {
	return SummaryResponse{
		TotalTransactions: s.TotalTransactions,
		TotalSales:        Money(s.TotalSales),
		TotalRestockValue: Money(s.TotalRestockValue),
		SalesCount:        s.SalesCount,
		RestockCount:      s.RestockCount,
		AdjustmentCount:   s.AdjustmentCount,
		TransferCount:     s.TransferCount,
		UnitsSold:         s.UnitsSold,
		UnitsRestocked:    s.UnitsRestocked,
	}
}
