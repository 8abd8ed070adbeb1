// Package sqlbuild holds the squirrel statements shared by the postgres and
// sqlite backends. Only the placeholder format differs between them.
package sqlbuild

import (
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"invencare/internal/domain/catalog"
	"invencare/internal/domain/ledger"
)

// Table names.
const (
	TableStores       = "stores"
	TableProducts     = "products"
	TableTransactions = "transactions"
)

// ProductColumns is the select list for catalog.Product.
var ProductColumns = Columns[catalog.Product]()

// TransactionColumns is the select list for ledger.Transaction. Insert
// values below follow the same order.
var TransactionColumns = Columns[ledger.Transaction]()

// Builder produces statements for one placeholder format.
type Builder struct {
	sb sq.StatementBuilderType
}

// Postgres uses $1, $2...
var Postgres = Builder{sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}

// SQLite uses ?.
var SQLite = Builder{sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}

// --- catalog ---

// GetStore selects one store.
func (b Builder) GetStore(storeID string) (string, []any, error) {
	return b.sb.Select("id", "name", "created_at").From(TableStores).
		Where(sq.Eq{"id": storeID}).ToSql()
}

// ListStores selects every store ordered by id.
func (b Builder) ListStores() (string, []any, error) {
	return b.sb.Select("id", "name", "created_at").From(TableStores).OrderBy("id").ToSql()
}

// InsertStore inserts s.
func (b Builder) InsertStore(s *catalog.Store) (string, []any, error) {
	return b.sb.Insert(TableStores).Columns("id", "name", "created_at").
		Values(s.ID, s.Name, s.CreatedAt).ToSql()
}

// GetProduct selects the row for (productID, storeID).
func (b Builder) GetProduct(productID, storeID string) (string, []any, error) {
	return b.sb.Select(ProductColumns...).From(TableProducts).
		Where(sq.Eq{"id": productID, "store_id": storeID}).ToSql()
}

// InsertProduct inserts p.
func (b Builder) InsertProduct(p *catalog.Product) (string, []any, error) {
	return b.sb.Insert(TableProducts).Columns(ProductColumns...).
		Values(p.ID, p.StoreID, p.FamilyKey, p.Name, p.Category, p.UnitPrice,
			p.Quantity, p.MinimumStock, p.MaximumStock, p.CreatedAt, p.UpdatedAt).ToSql()
}

// CounterpartByFamily finds the row in storeID sharing familyKey.
func (b Builder) CounterpartByFamily(familyKey, storeID string) (string, []any, error) {
	return b.sb.Select(ProductColumns...).From(TableProducts).
		Where(sq.Eq{"store_id": storeID, "family_key": familyKey}).
		OrderBy("id").Limit(1).ToSql()
}

// CounterpartByName finds the row in storeID with the same name and
// category, compared case-insensitively.
func (b Builder) CounterpartByName(name, category, storeID string) (string, []any, error) {
	return b.sb.Select(ProductColumns...).From(TableProducts).
		Where(sq.Eq{"store_id": storeID}).
		Where("LOWER(name) = LOWER(?)", name).
		Where("LOWER(category) = LOWER(?)", category).
		OrderBy("id").Limit(1).ToSql()
}

// IncrementStock is the single-statement stock update. With a guard the row
// is only touched when the result stays non-negative.
func (b Builder) IncrementStock(productID, storeID string, delta int64, guard catalog.StockGuard, now time.Time) (string, []any, error) {
	q := b.sb.Update(TableProducts).
		Set("quantity", sq.Expr("quantity + ?", delta)).
		Set("updated_at", now).
		Where(sq.Eq{"id": productID, "store_id": storeID})
	if guard.NonNegative {
		q = q.Where("quantity + ? >= 0", delta)
	}
	return q.Suffix("RETURNING " + strings.Join(ProductColumns, ", ")).ToSql()
}

// ListProducts selects a page of products.
func (b Builder) ListProducts(f catalog.ProductFilter) (string, []any, error) {
	q := productFilter(b.sb.Select(ProductColumns...).From(TableProducts), f).
		OrderBy("store_id", "name", "id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint64(f.Offset))
	}
	return q.ToSql()
}

// CountProducts counts the rows matching f.
func (b Builder) CountProducts(f catalog.ProductFilter) (string, []any, error) {
	return productFilter(b.sb.Select("COUNT(*)").From(TableProducts), f).ToSql()
}

func productFilter(q sq.SelectBuilder, f catalog.ProductFilter) sq.SelectBuilder {
	if s := strings.TrimSpace(f.StoreID); s != "" && !strings.EqualFold(s, "all") {
		q = q.Where(sq.Eq{"store_id": s})
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		q = q.Where("LOWER(category) = LOWER(?)", c)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := likePattern(s)
		q = q.Where(sq.Or{
			sq.Expr("LOWER(name) LIKE ? ESCAPE '\\'", p),
			sq.Expr("LOWER(id) LIKE ? ESCAPE '\\'", p),
		})
	}
	if f.LowStockOnly {
		q = q.Where("quantity <= minimum_stock")
	}
	return q
}

// --- ledger ---

// InsertTransaction inserts t.
func (b Builder) InsertTransaction(t *ledger.Transaction) (string, []any, error) {
	return b.sb.Insert(TableTransactions).Columns(TransactionColumns...).
		Values(t.ID, t.ReferenceNumber, string(t.Type), t.ProductID, t.ProductName, t.Category,
			t.Quantity, t.UnitPrice, t.TotalAmount, t.StoreID, t.TransferToStoreID,
			t.DestinationProductID, t.UserID, t.UserName, t.Notes,
			string(t.ReconciliationStatus), t.ReversalOf, t.CreatedAt).ToSql()
}

// GetTransaction selects by id.
func (b Builder) GetTransaction(txnID any) (string, []any, error) {
	return b.sb.Select(TransactionColumns...).From(TableTransactions).
		Where(sq.Eq{"id": txnID}).ToSql()
}

// FindReversal selects the row whose reversal_of is txnID.
func (b Builder) FindReversal(txnID any) (string, []any, error) {
	return b.sb.Select(TransactionColumns...).From(TableTransactions).
		Where(sq.Eq{"reversal_of": txnID}).Limit(1).ToSql()
}

// ListTransactions selects a newest-first page.
func (b Builder) ListTransactions(q ledger.Query) (string, []any, error) {
	s := transactionFilter(b.sb.Select(TransactionColumns...).From(TableTransactions), q).
		OrderBy("created_at DESC", "id DESC")
	if q.Limit > 0 {
		s = s.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		s = s.Offset(uint64(q.Offset))
	}
	return s.ToSql()
}

// CountTransactions counts the rows matching q, ignoring paging.
func (b Builder) CountTransactions(q ledger.Query) (string, []any, error) {
	return transactionFilter(b.sb.Select("COUNT(*)").From(TableTransactions), q).ToSql()
}

// TransactionTotals aggregates per type into ledger.TypeTotals columns.
// Reversal rows subtract their amount. SQLite sums TEXT money as REAL, so
// the value is rounded back to cents.
func (b Builder) TransactionTotals(q ledger.Query) (string, []any, error) {
	return transactionFilter(b.sb.Select(
		"type",
		"COUNT(*) AS count",
		"ROUND(COALESCE(SUM(CASE WHEN reversal_of IS NULL THEN total_amount ELSE -total_amount END), 0), 2) AS value",
		"CAST(COALESCE(SUM(quantity), 0) AS BIGINT) AS units",
	).From(TableTransactions), q).GroupBy("type").OrderBy("type").ToSql()
}

// transactionFilter applies q. A store matches as source or transfer target.
func transactionFilter(s sq.SelectBuilder, q ledger.Query) sq.SelectBuilder {
	if len(q.StoreIDs) > 0 {
		s = s.Where(sq.Or{
			sq.Eq{"store_id": q.StoreIDs},
			sq.Eq{"transfer_to_store_id": q.StoreIDs},
		})
	}
	if q.Type != "" {
		s = s.Where(sq.Eq{"type": string(q.Type)})
	}
	if q.From != nil {
		s = s.Where(sq.GtOrEq{"created_at": q.From.UTC()})
	}
	if q.To != nil {
		s = s.Where(sq.LtOrEq{"created_at": q.To.UTC()})
	}
	if q.Search != "" {
		p := likePattern(q.Search)
		s = s.Where(sq.Or{
			sq.Expr("LOWER(product_name) LIKE ? ESCAPE '\\'", p),
			sq.Expr("LOWER(product_id) LIKE ? ESCAPE '\\'", p),
			sq.Expr("LOWER(reference_number) LIKE ? ESCAPE '\\'", p),
			sq.Expr("LOWER(user_name) LIKE ? ESCAPE '\\'", p),
		})
	}
	return s
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern builds a lower-cased substring pattern with wildcards escaped.
func likePattern(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}
