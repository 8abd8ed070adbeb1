package ledger

import (
	"strings"

	"invencare/internal/core/apperror"
	"invencare/internal/core/types"
)

// RecordInput is a transaction request as received from a client.
type RecordInput struct {
	Type              string
	ProductID         string
	ProductName       string
	Category          string
	Quantity          types.Units
	UnitPrice         types.Money
	StoreID           string
	TransferToStoreID string
	UserID            string
	UserName          string
	Notes             string
}

// draft is a validated RecordInput with the canonical type and sign applied.
type draft struct {
	Type              Type
	ProductID         *string
	ProductName       string
	Category          string
	Quantity          types.Units
	UnitPrice         types.Money
	StoreID           string
	TransferToStoreID *string
	UserID            string
	UserName          string
	Notes             *string
}

// normalize trims every field, canonicalizes the type and the quantity sign,
// and validates field-level rules. Catalog lookups happen later.
func (in RecordInput) normalize() (*draft, error) {
	t, err := ParseType(in.Type)
	if err != nil {
		return nil, err
	}
	if in.Quantity == 0 {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidQuantity, "quantity",
			"quantity must be a non-zero whole number")
	}
	if !in.Quantity.InRange() {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidQuantity, "quantity",
			"quantity is out of range").WithDetail("max", int64(types.MaxUnits))
	}

	d := &draft{
		Type:        t,
		ProductID:   optional(in.ProductID),
		ProductName: strings.TrimSpace(in.ProductName),
		Category:    strings.TrimSpace(in.Category),
		Quantity:    t.Signed(in.Quantity),
		UnitPrice:   in.UnitPrice,
		StoreID:     strings.TrimSpace(in.StoreID),
		UserID:      strings.TrimSpace(in.UserID),
		UserName:    strings.TrimSpace(in.UserName),
		Notes:       optional(in.Notes),
	}

	if d.UnitPrice.IsNegative() {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidInput, "unitPrice",
			"unitPrice must not be negative")
	}
	if d.StoreID == "" {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidInput, "storeId", "storeId is required")
	}
	if d.ProductID == nil && d.ProductName == "" {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidInput, "productName",
			"productName is required when productId is empty")
	}
	if d.UserID == "" || d.UserName == "" {
		return nil, apperror.NewInvalidField(apperror.CodeInvalidInput, "userId",
			"userId and userName are required")
	}

	target := strings.TrimSpace(in.TransferToStoreID)
	switch {
	case t == TypeTransfer && target == "":
		return nil, apperror.NewInvalidField(apperror.CodeInvalidTransferTarget, "transferToStoreId",
			"transferToStoreId is required for transfers")
	case t == TypeTransfer && target == d.StoreID:
		return nil, apperror.NewInvalidField(apperror.CodeInvalidTransferTarget, "transferToStoreId",
			"transferToStoreId must differ from storeId")
	case t != TypeTransfer && target != "":
		return nil, apperror.NewInvalidField(apperror.CodeInvalidTransferTarget, "transferToStoreId",
			"transferToStoreId is only allowed for transfers")
	}
	d.TransferToStoreID = optional(target)

	return d, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// VoidInput identifies who voids a transaction and why.
type VoidInput struct {
	Reason   string
	UserID   string
	UserName string
}

func (in VoidInput) validate() error {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.UserName) == "" {
		return apperror.NewInvalidField(apperror.CodeInvalidInput, "userId", "userId and userName are required")
	}
	return nil
}
