package ledger

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
	"invencare/internal/core/numerator"
	"invencare/internal/core/types"
	"invencare/internal/domain/catalog"
)

func mustDec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func strPtr(s string) *string { return &s }

// seqGenerator numbers per prefix in memory.
type seqGenerator struct {
	mu   sync.Mutex
	next map[string]int
}

func (g *seqGenerator) GetNextNumber(_ context.Context, cfg numerator.Config, _ *numerator.Options, period time.Time) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next == nil {
		g.next = map[string]int{}
	}
	g.next[cfg.Prefix]++
	return fmt.Sprintf("%s-%d-%05d", cfg.Prefix, period.Year(), g.next[cfg.Prefix]), nil
}

func (g *seqGenerator) SetNextNumber(context.Context, numerator.Config, time.Time, int64) error {
	return nil
}

type fixture struct {
	catalog *memCatalog
	ledger  *memLedger
	events  *memEvents
	audit   *memAudit
	deps    Dependencies
	cfg     Config
	svc     *Service
}

// withCache rebuilds the service with a summary cache.
func (f *fixture) withCache(c SummaryCache) {
	f.deps.Cache = c
	f.cfg.SummaryTTL = time.Minute
	f.svc = NewService(f.deps, f.cfg)
}

func newFixture(t *testing.T, policy StockPolicy, gen numerator.Generator) *fixture {
	t.Helper()
	cat := newMemCatalog()
	cat.addStore("store_001", "store_002", "store_003")
	cat.add(catalog.Product{ID: "FV-BAN-001", StoreID: "store_001", Name: "Bananas", Category: "Fruits & Vegetables",
		UnitPrice: types.MustMoney("1.99"), Quantity: 100, MinimumStock: 20})
	cat.add(catalog.Product{ID: "DA-CHE-004", StoreID: "store_002", Name: "Cheddar", Category: "Dairy",
		UnitPrice: types.MustMoney("4.50"), Quantity: 19, MinimumStock: 5})
	cat.add(catalog.Product{ID: "DA-CHE-104", StoreID: "store_001", Name: "Cheddar", Category: "Dairy",
		UnitPrice: types.MustMoney("4.50"), Quantity: 7, MinimumStock: 5})

	if gen == nil {
		gen = &seqGenerator{}
	}
	f := &fixture{catalog: cat, ledger: &memLedger{}, events: &memEvents{}, audit: &memAudit{}}
	f.deps = Dependencies{
		TxManager:  directTx{},
		Repo:       f.ledger,
		Catalog:    cat,
		Reconciler: NewReconciler(cat, policy),
		Numerator:  gen,
		Events:     f.events,
		Audit:      f.audit,
	}
	f.cfg = Config{Now: func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }}
	f.svc = NewService(f.deps, f.cfg)
	return f
}

func TestRecordSale(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)

	out, err := f.svc.Record(context.Background(), validInput())
	require.NoError(t, err)

	txn := out.Transaction
	assert.Regexp(t, `^SAL-\d{4}-.+$`, txn.ReferenceNumber)
	assert.Equal(t, int64(-15), txn.Quantity)
	assert.Equal(t, "29.85", txn.TotalAmount.StringFixed(2))
	assert.Equal(t, ReconciliationApplied, txn.ReconciliationStatus)
	assert.Equal(t, int64(85), f.catalog.qty("FV-BAN-001", "store_001"))
	require.Len(t, out.Affected, 1)
	assert.Equal(t, int64(85), out.Affected[0].Quantity)
	assert.Empty(t, out.Warnings)
	assert.Equal(t, []string{EventTransactionRecorded}, f.events.types())
}

func TestRecordRestock(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)

	in := validInput()
	in.Type, in.Quantity, in.UnitPrice = "Restock", 50, types.MustMoney("1.20")
	out, err := f.svc.Record(ctx, in)
	require.NoError(t, err)

	assert.Regexp(t, `^RST-2024-`, out.Transaction.ReferenceNumber)
	assert.Equal(t, int64(50), out.Transaction.Quantity)
	assert.Equal(t, "60.00", out.Transaction.TotalAmount.StringFixed(2))
	assert.Equal(t, int64(135), f.catalog.qty("FV-BAN-001", "store_001"))
}

func TestRecordTransfer(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)

	out, err := f.svc.Record(context.Background(), RecordInput{
		Type: "Transfer", ProductID: "DA-CHE-004", ProductName: "Cheddar", Category: "Dairy",
		Quantity: 12, UnitPrice: types.MustMoney("4.50"),
		StoreID: "store_002", TransferToStoreID: "store_001", UserID: "u1", UserName: "Ann",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), f.catalog.qty("DA-CHE-004", "store_002"))
	assert.Equal(t, int64(19), f.catalog.qty("DA-CHE-104", "store_001"))
	assert.Equal(t, ReconciliationApplied, out.Transaction.ReconciliationStatus)
	require.NotNil(t, out.Transaction.DestinationProductID)
	assert.Equal(t, "DA-CHE-104", *out.Transaction.DestinationProductID)
	require.Len(t, out.Affected, 2)
	assert.Empty(t, out.Warnings)
	// source fell to 7, above minimum 5; destination 19 fine
	assert.NotContains(t, f.events.types(), EventLowStock)
}

func TestTransferLocksRowsInStoreOrder(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	transfer := func(productID, from, to string) RecordInput {
		return RecordInput{
			Type: "Transfer", ProductID: productID, Quantity: 2, UnitPrice: types.MustMoney("4.50"),
			StoreID: from, TransferToStoreID: to, UserID: "u1", UserName: "Ann",
		}
	}

	out, err := f.svc.Record(ctx, transfer("DA-CHE-004", "store_002", "store_001"))
	require.NoError(t, err)
	assert.Equal(t, "DA-CHE-004", out.Affected[0].ID, "source reported first")
	assert.Equal(t, []string{"DA-CHE-104|store_001", "DA-CHE-004|store_002"}, f.catalog.moves)

	f.catalog.moves = nil
	_, err = f.svc.Record(ctx, transfer("DA-CHE-104", "store_001", "store_002"))
	require.NoError(t, err)
	assert.Equal(t, []string{"DA-CHE-104|store_001", "DA-CHE-004|store_002"}, f.catalog.moves)

	f.catalog.moves = nil
	_, err = f.svc.Void(ctx, out.Transaction.ID, VoidInput{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, []string{"DA-CHE-104|store_001", "DA-CHE-004|store_002"}, f.catalog.moves)

	// 19 -2 +2 +2 and 7 +2 -2 -2
	assert.Equal(t, int64(21), f.catalog.qty("DA-CHE-004", "store_002"))
	assert.Equal(t, int64(5), f.catalog.qty("DA-CHE-104", "store_001"))
}

func TestRecordRetriesConcurrentUpdate(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	f.catalog.failNext = apperror.NewConcurrentUpdate()

	out, err := f.svc.Record(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(85), f.catalog.qty("FV-BAN-001", "store_001"))
	assert.Len(t, f.ledger.rows, 1)
	assert.Equal(t, "SAL-2024-00002", out.Transaction.ReferenceNumber, "second attempt takes a new number")
}

func TestRecordTransferWithoutDestination(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)

	out, err := f.svc.Record(context.Background(), RecordInput{
		Type: "Transfer", ProductID: "DA-CHE-004", ProductName: "Cheddar", Category: "Dairy",
		Quantity: 4, UnitPrice: types.MustMoney("4.50"),
		StoreID: "store_002", TransferToStoreID: "store_003", UserID: "u1", UserName: "Ann",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(15), f.catalog.qty("DA-CHE-004", "store_002"))
	assert.Equal(t, ReconciliationDestinationMissing, out.Transaction.ReconciliationStatus)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, WarningDestinationNotFound, out.Warnings[0].Code)
	assert.Equal(t, "store_003", out.Warnings[0].StoreID)
	assert.Contains(t, f.events.types(), EventReconciliationWarning)
}

func TestRecordErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown product", func(t *testing.T) {
		f := newFixture(t, StockPolicy{}, nil)
		in := validInput()
		in.ProductID = "NOPE"
		_, err := f.svc.Record(ctx, in)
		assert.True(t, apperror.IsCode(err, apperror.CodeProductNotFound))
		assert.Empty(t, f.ledger.rows)
	})

	t.Run("unknown store", func(t *testing.T) {
		f := newFixture(t, StockPolicy{}, nil)
		in := validInput()
		in.StoreID = "store_999"
		_, err := f.svc.Record(ctx, in)
		assert.True(t, apperror.IsCode(err, apperror.CodeStoreNotFound))
	})

	t.Run("insufficient stock", func(t *testing.T) {
		f := newFixture(t, StockPolicy{}, nil)
		in := validInput()
		in.Quantity = 101
		_, err := f.svc.Record(ctx, in)
		assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))
		assert.Equal(t, int64(100), f.catalog.qty("FV-BAN-001", "store_001"))
	})

	t.Run("negative allowed", func(t *testing.T) {
		f := newFixture(t, StockPolicy{AllowNegative: true}, nil)
		in := validInput()
		in.Quantity = 120
		out, err := f.svc.Record(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, int64(-20), f.catalog.qty("FV-BAN-001", "store_001"))
		require.NotEmpty(t, out.Warnings)
		assert.Equal(t, WarningNegativeStock, out.Warnings[0].Code)
		assert.Contains(t, f.events.types(), EventLowStock)
	})

	t.Run("store access", func(t *testing.T) {
		f := newFixture(t, StockPolicy{}, nil)
		uctx := appctx.WithUser(ctx, &appctx.UserContext{UserID: "u1", StoreIDs: []string{"store_002"}})
		_, err := f.svc.Record(uctx, validInput())
		assert.True(t, apperror.IsCode(err, apperror.CodeForbidden))
	})
}

func TestRecordAdHoc(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	in := validInput()
	in.ProductID, in.ProductName = "", "Gift wrap"

	out, err := f.svc.Record(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, out.Transaction.ProductID)
	assert.Equal(t, ReconciliationSkipped, out.Transaction.ReconciliationStatus)
	require.Len(t, out.Warnings, 1)
	assert.Equal(t, WarningReconciliationSkipped, out.Warnings[0].Code)
	assert.Equal(t, int64(100), f.catalog.qty("FV-BAN-001", "store_001"))
}

func TestRecordRetriesReferenceCollision(t *testing.T) {
	calls := 0
	gen := &numerator.MockGenerator{
		GetNextNumberFunc: func(_ context.Context, cfg numerator.Config, _ *numerator.Options, _ time.Time) (string, error) {
			calls++
			if calls <= 2 {
				return cfg.Prefix + "-2024-00001", nil
			}
			return fmt.Sprintf("%s-2024-%05d", cfg.Prefix, calls), nil
		},
	}
	f := newFixture(t, StockPolicy{}, gen)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)

	out, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)
	assert.Equal(t, "SAL-2024-00003", out.Transaction.ReferenceNumber)
	assert.Equal(t, 3, calls)
	assert.Len(t, f.ledger.rows, 2)
}

func TestRecordGivesUpAfterRetries(t *testing.T) {
	gen := &numerator.MockGenerator{} // always SAL-YYYY-00001
	f := newFixture(t, StockPolicy{}, gen)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)

	_, err = f.svc.Record(ctx, validInput())
	assert.True(t, apperror.IsCode(err, apperror.CodeDuplicateReference))
	assert.Equal(t, 409, apperror.GetHTTPStatus(err))
}

func TestVoid(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	sale, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)
	require.Equal(t, int64(85), f.catalog.qty("FV-BAN-001", "store_001"))

	rev, err := f.svc.Void(ctx, sale.Transaction.ID, VoidInput{Reason: "customer return", UserID: "u2", UserName: "Bo"})
	require.NoError(t, err)

	assert.Equal(t, int64(100), f.catalog.qty("FV-BAN-001", "store_001"))
	assert.Equal(t, TypeSale, rev.Transaction.Type)
	assert.Equal(t, int64(15), rev.Transaction.Quantity)
	require.NotNil(t, rev.Transaction.ReversalOf)
	assert.Equal(t, sale.Transaction.ID, *rev.Transaction.ReversalOf)
	assert.Contains(t, f.events.types(), EventTransactionVoided)

	history, err := f.svc.History(ctx, sale.Transaction.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "void", history[0].Action)

	_, err = f.svc.Void(ctx, sale.Transaction.ID, VoidInput{UserID: "u2", UserName: "Bo"})
	assert.True(t, apperror.IsCode(err, apperror.CodeAlreadyVoided))

	_, err = f.svc.Void(ctx, rev.Transaction.ID, VoidInput{UserID: "u2", UserName: "Bo"})
	assert.True(t, apperror.IsCode(err, apperror.CodeBusinessRule))

	summary, err := f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), summary.SalesCount)
	assert.True(t, summary.TotalSales.IsZero())
	assert.Equal(t, int64(0), summary.UnitsSold)
}

func TestVoidTransfer(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	trf, err := f.svc.Record(ctx, RecordInput{
		Type: "Transfer", ProductID: "DA-CHE-004", ProductName: "Cheddar", Category: "Dairy",
		Quantity: 12, UnitPrice: types.MustMoney("4.50"),
		StoreID: "store_002", TransferToStoreID: "store_001", UserID: "u1", UserName: "Ann",
	})
	require.NoError(t, err)

	_, err = f.svc.Void(ctx, trf.Transaction.ID, VoidInput{UserID: "u1", UserName: "Ann"})
	require.NoError(t, err)
	assert.Equal(t, int64(19), f.catalog.qty("DA-CHE-004", "store_002"))
	assert.Equal(t, int64(7), f.catalog.qty("DA-CHE-104", "store_001"))
}

func TestListAndSummarize(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Record(ctx, validInput())
		require.NoError(t, err)
	}
	in := validInput()
	in.Type, in.Quantity = "Restock", 10
	_, err := f.svc.Record(ctx, in)
	require.NoError(t, err)

	page, err := f.svc.List(ctx, ListFilter{StoreID: "store_001", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), page.Total)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore())

	page, err = f.svc.List(ctx, ListFilter{Type: "sale", Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Items, 1)
	assert.False(t, page.HasMore())

	s, err := f.svc.Summarize(ctx, ListFilter{StoreID: "all"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), s.TotalTransactions)
	assert.Equal(t, "89.55", s.TotalSales.StringFixed(2))
	assert.Equal(t, int64(3), s.SalesCount)
	assert.Equal(t, int64(1), s.RestockCount)
	assert.Equal(t, int64(45), s.UnitsSold)
}

func TestSummarizeCachesUntilNextWrite(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	c := newMemCache()
	f.withCache(c)
	ctx := context.Background()

	_, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)

	s, err := f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalTransactions)
	assert.Equal(t, 1, c.len())

	// served from cache
	f.ledger.rows = nil
	s, err = f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalTransactions)

	_, err = f.svc.Record(ctx, validInput())
	require.NoError(t, err)
	s, err = f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalTransactions, "recomputed after invalidation")
}

func TestSummarizeDoesNotCacheResultOverlappingAWrite(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	f.withCache(newMemCache())
	ctx := context.Background()

	_, err := f.svc.Record(ctx, validInput())
	require.NoError(t, err)

	// a sale commits after the totals were read but before they are cached
	f.ledger.afterTotals = func() {
		_, err := f.svc.Record(ctx, validInput())
		require.NoError(t, err)
	}
	s, err := f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.TotalTransactions)

	s, err = f.svc.Summarize(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.TotalTransactions)
}

func TestConcurrentSalesDrainStock(t *testing.T) {
	f := newFixture(t, StockPolicy{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := validInput()
			in.Quantity = 1
			_, err := f.svc.Record(ctx, in)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), f.catalog.qty("FV-BAN-001", "store_001"))
	assert.Len(t, f.ledger.rows, 100)

	seen := map[string]bool{}
	for _, r := range f.ledger.rows {
		assert.False(t, seen[r.ReferenceNumber], r.ReferenceNumber)
		seen[r.ReferenceNumber] = true
	}
}
