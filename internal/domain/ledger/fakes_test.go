package ledger

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"invencare/internal/core/apperror"
	"invencare/internal/core/id"
	"invencare/internal/domain/catalog"
)

// directTx runs fn without a real transaction.
type directTx struct{}

func (directTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memCatalog struct {
	mu       sync.Mutex
	stores   map[string]catalog.Store
	products map[string]*catalog.Product // key: id|store
	moves    []string                    // IncrementStock calls, in order
	failNext error                       // returned once by the next IncrementStock
}

func newMemCatalog() *memCatalog {
	return &memCatalog{stores: map[string]catalog.Store{}, products: map[string]*catalog.Product{}}
}

func key(productID, storeID string) string { return productID + "|" + storeID }

func (m *memCatalog) addStore(ids ...string) {
	for _, s := range ids {
		m.stores[s] = catalog.Store{ID: s, Name: s}
	}
}

func (m *memCatalog) add(p catalog.Product) {
	m.products[key(p.ID, p.StoreID)] = &p
}

func (m *memCatalog) qty(productID, storeID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[key(productID, storeID)].Quantity
}

func (m *memCatalog) GetProduct(_ context.Context, productID, storeID string) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[key(productID, storeID)]
	if !ok {
		return nil, apperror.NewProductNotFound(productID, storeID)
	}
	cp := *p
	return &cp, nil
}

func (m *memCatalog) FindCounterpart(_ context.Context, source catalog.Product, storeID string) (*catalog.Product, catalog.MatchStrategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fam := source.Family(); fam != "" {
		for _, p := range m.products {
			if p.StoreID == storeID && p.Family() == fam {
				cp := *p
				return &cp, catalog.MatchFamilyKey, nil
			}
		}
	}
	for _, p := range m.products {
		if p.StoreID == storeID && strings.EqualFold(p.Name, source.Name) && strings.EqualFold(p.Category, source.Category) {
			cp := *p
			return &cp, catalog.MatchNameCategory, nil
		}
	}
	return nil, "", apperror.NewProductNotFound(source.ID, storeID)
}

func (m *memCatalog) IncrementStock(_ context.Context, productID, storeID string, delta int64, guard catalog.StockGuard) (*catalog.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return nil, err
	}
	m.moves = append(m.moves, key(productID, storeID))
	p, ok := m.products[key(productID, storeID)]
	if !ok {
		return nil, apperror.NewProductNotFound(productID, storeID)
	}
	if guard.NonNegative && p.Quantity+delta < 0 {
		return nil, apperror.NewInsufficientStock(productID, storeID, -delta, p.Quantity)
	}
	p.Quantity += delta
	cp := *p
	return &cp, nil
}

func (m *memCatalog) GetStore(_ context.Context, storeID string) (*catalog.Store, error) {
	s, ok := m.stores[storeID]
	if !ok {
		return nil, apperror.NewStoreNotFound(storeID)
	}
	return &s, nil
}

func (m *memCatalog) ListProducts(context.Context, catalog.ProductFilter) ([]catalog.Product, int64, error) {
	return nil, 0, nil
}

func (m *memCatalog) ListStores(context.Context) ([]catalog.Store, error) { return nil, nil }

func (m *memCatalog) CreateStore(_ context.Context, s *catalog.Store) error {
	m.addStore(s.ID)
	return nil
}

func (m *memCatalog) CreateProduct(_ context.Context, p *catalog.Product) error {
	m.add(*p)
	return nil
}

type memLedger struct {
	mu   sync.Mutex
	rows []Transaction
	// afterTotals runs once, after Totals has read its rows.
	afterTotals func()
}

func (m *memLedger) Create(_ context.Context, txn *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ReferenceNumber == txn.ReferenceNumber {
			return apperror.NewDuplicateReference(txn.ReferenceNumber)
		}
		if txn.ReversalOf != nil && r.ReversalOf != nil && *r.ReversalOf == *txn.ReversalOf {
			return apperror.NewAlreadyVoided(txn.ReversalOf.String())
		}
	}
	m.rows = append(m.rows, *txn)
	return nil
}

func (m *memLedger) GetByID(_ context.Context, txnID id.ID) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == txnID {
			cp := r
			return &cp, nil
		}
	}
	return nil, apperror.NewTransactionNotFound(txnID.String())
}

func (m *memLedger) FindReversal(_ context.Context, txnID id.ID) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ReversalOf != nil && *r.ReversalOf == txnID {
			cp := r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memLedger) List(_ context.Context, q Query) ([]Transaction, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Transaction
	for _, r := range m.rows {
		if len(q.StoreIDs) > 0 && !containsStore(q.StoreIDs, r.StoreID) {
			continue
		}
		if q.Type != "" && r.Type != q.Type {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	if q.Offset < len(out) {
		out = out[q.Offset:]
	} else {
		out = nil
	}
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (m *memLedger) Totals(ctx context.Context, q Query) ([]TypeTotals, error) {
	rows, _, _ := m.List(ctx, Query{StoreIDs: q.StoreIDs, Type: q.Type, Limit: 1 << 30})
	byType := map[Type]*TypeTotals{}
	for _, r := range rows {
		t, ok := byType[r.Type]
		if !ok {
			t = &TypeTotals{Type: r.Type}
			byType[r.Type] = t
		}
		t.Count++
		t.Units += r.Quantity
		if r.IsReversal() {
			t.Value = t.Value.Sub(r.TotalAmount)
		} else {
			t.Value = t.Value.Add(r.TotalAmount)
		}
	}
	var out []TypeTotals
	for _, t := range byType {
		out = append(out, *t)
	}

	m.mu.Lock()
	hook := m.afterTotals
	m.afterTotals = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, nil
}

func containsStore(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type memEvents struct {
	mu     sync.Mutex
	events []Event
}

func (m *memEvents) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *memEvents) types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

type memAudit struct {
	entries []AuditEntry
}

func (m *memAudit) Record(_ context.Context, e AuditEntry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memAudit) History(_ context.Context, entityType, entityID string) ([]AuditEntry, error) {
	var out []AuditEntry
	for _, e := range m.entries {
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memCache struct {
	mu      sync.Mutex
	gen     int64
	entries map[string]Summary
}

func newMemCache() *memCache { return &memCache{entries: map[string]Summary{}} }

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *memCache) GetSummary(_ context.Context, key string) (*Summary, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &s, true, nil
}

func (c *memCache) Generation(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen, nil
}

func (c *memCache) SetSummary(_ context.Context, key string, gen int64, s *Summary, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.entries[key] = *s
	}
	return nil
}

func (c *memCache) InvalidateSummaries(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.entries = map[string]Summary{}
	return nil
}
