// Package ledger records inventory-affecting transactions and reconciles their
// stock effect against the catalog in the same database transaction.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"invencare/internal/core/apperror"
	"invencare/internal/core/id"
	"invencare/internal/core/types"
)

// Type is the canonical transaction type.
type Type string

const (
	TypeSale       Type = "Sale"
	TypeRestock    Type = "Restock"
	TypeAdjustment Type = "Adjustment"
	TypeTransfer   Type = "Transfer"
)

// AllTypes lists the types in display order.
var AllTypes = []Type{TypeSale, TypeRestock, TypeAdjustment, TypeTransfer}

// ParseType accepts any casing ("sale", "SALE") and returns the canonical type.
func ParseType(s string) (Type, error) {
	normalized := Type(cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(s))))
	switch normalized {
	case TypeSale, TypeRestock, TypeAdjustment, TypeTransfer:
		return normalized, nil
	}
	return "", apperror.NewInvalidField(apperror.CodeInvalidTransactionType, "type",
		"type must be one of Sale, Restock, Adjustment, Transfer").
		WithDetail("value", s)
}

// Prefix is the reference-number prefix for the type.
func (t Type) Prefix() string {
	switch t {
	case TypeSale:
		return "SAL"
	case TypeRestock:
		return "RST"
	case TypeAdjustment:
		return "ADJ"
	case TypeTransfer:
		return "TRF"
	}
	return "TXN"
}

// Inbound reports whether the type adds stock at the source store.
func (t Type) Inbound() bool {
	return t == TypeRestock
}

// Signed returns the canonical signed quantity for the type: +|q| for
// Restock, -|q| for everything else.
func (t Type) Signed(q types.Units) types.Units {
	if t.Inbound() {
		return q.Abs()
	}
	return -q.Abs()
}

// ReconciliationStatus records what the reconciler did for a transaction.
type ReconciliationStatus string

const (
	// ReconciliationApplied: every stock effect was applied.
	ReconciliationApplied ReconciliationStatus = "applied"
	// ReconciliationDestinationMissing: transfer source applied, destination had no matching row.
	ReconciliationDestinationMissing ReconciliationStatus = "destination_missing"
	// ReconciliationSkipped: free-text transaction without a catalog product.
	ReconciliationSkipped ReconciliationStatus = "skipped"
)

// Transaction is an immutable ledger row.
//
// Quantity is signed from the source store's point of view: the source delta
// is Quantity and a transfer's destination delta is -Quantity. TotalAmount is
// always |Quantity| * UnitPrice.
type Transaction struct {
	ID                   id.ID                `db:"id"`
	ReferenceNumber      string               `db:"reference_number"`
	Type                 Type                 `db:"type"`
	ProductID            *string              `db:"product_id"`
	ProductName          string               `db:"product_name"`
	Category             string               `db:"category"`
	Quantity             int64                `db:"quantity"`
	UnitPrice            types.Money          `db:"unit_price"`
	TotalAmount          types.Money          `db:"total_amount"`
	StoreID              string               `db:"store_id"`
	TransferToStoreID    *string              `db:"transfer_to_store_id"`
	DestinationProductID *string              `db:"destination_product_id"`
	UserID               string               `db:"user_id"`
	UserName             string               `db:"user_name"`
	Notes                *string              `db:"notes"`
	ReconciliationStatus ReconciliationStatus `db:"reconciliation_status"`
	ReversalOf           *id.ID               `db:"reversal_of"`
	CreatedAt            time.Time            `db:"created_at"`
}

// IsReversal reports whether the row compensates another transaction.
func (t Transaction) IsReversal() bool {
	return t.ReversalOf != nil
}

// TotalFor computes the stored total: |quantity| * unit price, 2 decimals.
func TotalFor(quantity types.Units, unitPrice types.Money) types.Money {
	return unitPrice.Mul(decimal.NewFromInt(quantity.Abs().Int64())).Round(types.MoneyScale)
}

// Warning codes attached to successful results.
const (
	WarningDestinationNotFound   = "DESTINATION_NOT_FOUND"
	WarningReconciliationSkipped = "RECONCILIATION_SKIPPED"
	WarningNegativeStock         = "NEGATIVE_STOCK"
)

// ReconciliationWarning is a non-fatal reconciliation outcome. The
// transaction still commits.
type ReconciliationWarning struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	StoreID   string `json:"storeId,omitempty"`
	ProductID string `json:"productId,omitempty"`
}
