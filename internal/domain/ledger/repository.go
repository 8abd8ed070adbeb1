package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invencare/internal/core/id"
)

// Repository persists ledger rows. Rows are only ever inserted.
type Repository interface {
	// Create inserts txn. A reference-number collision yields
	// DUPLICATE_REFERENCE_NUMBER; a second reversal of the same row yields
	// ALREADY_VOIDED.
	Create(ctx context.Context, txn *Transaction) error

	// GetByID returns TRANSACTION_NOT_FOUND for unknown ids.
	GetByID(ctx context.Context, txnID id.ID) (*Transaction, error)

	// FindReversal returns the row compensating txnID, or nil when there is none.
	FindReversal(ctx context.Context, txnID id.ID) (*Transaction, error)

	// List returns a newest-first page and the total count for q.
	List(ctx context.Context, q Query) ([]Transaction, int64, error)

	// Totals aggregates q per type.
	Totals(ctx context.Context, q Query) ([]TypeTotals, error)
}

// Query is a resolved listing filter. Zero values mean "no constraint".
type Query struct {
	StoreIDs []string // any of; nil for every store
	Type     Type
	From     *time.Time // inclusive
	To       *time.Time // inclusive
	Range    string     // relative range From was derived from; "" for explicit bounds
	Search   string
	Limit    int
	Offset   int
}

// TypeTotals is one aggregate row.
type TypeTotals struct {
	Type  Type            `db:"type"`
	Count int64           `db:"count"`
	Value decimal.Decimal `db:"value"` // reversals subtract
	Units int64           `db:"units"` // signed quantity sum
}

// Event is a domain event handed to the outbox inside the recording transaction.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       any
}

// Event types.
const (
	EventTransactionRecorded   = "ledger.transaction_recorded"
	EventTransactionVoided     = "ledger.transaction_voided"
	EventReconciliationWarning = "ledger.reconciliation_warning"
	EventLowStock              = "inventory.low_stock"
)

// EventPublisher stores events transactionally (outbox).
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// AuditEntry describes a state-changing action on an entity.
type AuditEntry struct {
	ID         id.ID          `json:"id"`
	EntityType string         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     string         `json:"action"`
	UserID     string         `json:"userId"`
	Changes    map[string]any `json:"changes,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AuditLog stores audit entries in the caller's transaction.
type AuditLog interface {
	Record(ctx context.Context, entry AuditEntry) error
	History(ctx context.Context, entityType, entityID string) ([]AuditEntry, error)
}

// SummaryCache holds computed summaries between writes.
type SummaryCache interface {
	GetSummary(ctx context.Context, key string) (*Summary, bool, error)
	// Generation changes on every invalidation.
	Generation(ctx context.Context) (int64, error)
	// SetSummary stores summary computed at generation gen. It is dropped
	// when the cache has been invalidated since.
	SetSummary(ctx context.Context, key string, gen int64, summary *Summary, ttl time.Duration) error
	InvalidateSummaries(ctx context.Context) error
}
