package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"invencare/internal/core/types"
)

// Summary aggregates the transactions matching a filter.
type Summary struct {
	TotalTransactions int64           `json:"total_transactions"`
	TotalSales        decimal.Decimal `json:"total_sales"`
	TotalRestockValue decimal.Decimal `json:"total_restock_value"`
	SalesCount        int64           `json:"sales_count"`
	RestockCount      int64           `json:"restock_count"`
	AdjustmentCount   int64           `json:"adjustment_count"`
	TransferCount     int64           `json:"transfer_count"`
	UnitsSold         int64           `json:"units_sold"`
	UnitsRestocked    int64           `json:"units_restocked"`
}

func summarize(rows []TypeTotals) *Summary {
	s := &Summary{TotalSales: types.Zero(), TotalRestockValue: types.Zero()}
	for _, r := range rows {
		s.TotalTransactions += r.Count
		switch r.Type {
		case TypeSale:
			s.SalesCount += r.Count
			s.TotalSales = s.TotalSales.Add(r.Value)
			s.UnitsSold += -r.Units
		case TypeRestock:
			s.RestockCount += r.Count
			s.TotalRestockValue = s.TotalRestockValue.Add(r.Value)
			s.UnitsRestocked += r.Units
		case TypeAdjustment:
			s.AdjustmentCount += r.Count
		case TypeTransfer:
			s.TransferCount += r.Count
		}
	}
	s.TotalSales = s.TotalSales.Round(types.MoneyScale)
	s.TotalRestockValue = s.TotalRestockValue.Round(types.MoneyScale)
	return s
}

// cacheKey identifies q for the summary cache. Relative ranges are bucketed
// to the minute so repeated dashboard polls share an entry. Explicit bounds
// are kept at full precision.
func (q Query) cacheKey() string {
	var b strings.Builder
	b.WriteString("stores=")
	b.WriteString(strings.Join(q.StoreIDs, ","))
	b.WriteString("|type=")
	b.WriteString(string(q.Type))
	b.WriteString("|search=")
	b.WriteString(strings.ToLower(q.Search))
	if q.Range != "" {
		fmt.Fprintf(&b, "|range=%s@%s", q.Range, bucket(q.From))
	} else {
		fmt.Fprintf(&b, "|from=%s|to=%s", exact(q.From), exact(q.To))
	}
	return b.String()
}

func bucket(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Truncate(time.Minute).Format(time.RFC3339)
}

func exact(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339Nano)
}
