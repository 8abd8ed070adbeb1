// Package outbox implements the transactional outbox: events are inserted in
// the same database transaction as the ledger row and relayed to a broker
// afterwards by the worker.
package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"invencare/internal/core/id"
	"invencare/internal/core/tx"
	"invencare/internal/domain/ledger"
	"invencare/pkg/logger"
)

// Status of an outbox message.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

// Message is one stored event.
type Message struct {
	ID            id.ID      `db:"id"`
	AggregateType string     `db:"aggregate_type"`
	AggregateID   string     `db:"aggregate_id"`
	EventType     string     `db:"event_type"`
	Payload       []byte     `db:"payload"`
	Status        Status     `db:"status"`
	RetryCount    int        `db:"retry_count"`
	LastError     *string    `db:"last_error"`
	NextRetryAt   *time.Time `db:"next_retry_at"`
	CreatedAt     time.Time  `db:"created_at"`
	PublishedAt   *time.Time `db:"published_at"`
}

// Store is the backend-specific persistence of messages. Every method runs
// on the transaction in ctx when there is one.
type Store interface {
	Insert(ctx context.Context, msg *Message) error
	// FetchDue returns pending messages due at now, oldest first, locked
	// against concurrent relays for the rest of the transaction.
	FetchDue(ctx context.Context, now time.Time, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error
	// MarkRetry records a failure; the message becomes failed once its retry
	// count reaches maxRetries.
	MarkRetry(ctx context.Context, msgID id.ID, reason string, next time.Time, maxRetries int) error
	DeletePublished(ctx context.Context, before time.Time) (int64, error)
}

// Handler delivers one message, e.g. to a broker.
type Handler interface {
	Handle(ctx context.Context, msg *Message) error
}

// Publisher adapts Store to ledger.EventPublisher.
type Publisher struct {
	store Store
	now   func() time.Time
}

var _ ledger.EventPublisher = (*Publisher)(nil)

// NewPublisher creates a publisher writing to store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Publish stores event. It must be called inside the business transaction.
func (p *Publisher) Publish(ctx context.Context, event ledger.Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	return p.store.Insert(ctx, &Message{
		ID:            id.New(),
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       payload,
		Status:        StatusPending,
		CreatedAt:     p.now(),
	})
}

// RelayConfig tunes the relay.
type RelayConfig struct {
	BatchSize  int
	MaxRetries int
}

// Relay moves pending messages to a Handler.
type Relay struct {
	txManager tx.Manager
	store     Store
	handler   Handler
	cfg       RelayConfig
	now       func() time.Time
}

// NewRelay creates a relay.
func NewRelay(txManager tx.Manager, store Store, handler Handler, cfg RelayConfig) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	return &Relay{
		txManager: txManager,
		store:     store,
		handler:   handler,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ProcessBatch delivers up to BatchSize due messages and returns how many
// were published. Failed deliveries are rescheduled with linear backoff.
func (r *Relay) ProcessBatch(ctx context.Context) (int, error) {
	published := 0
	err := r.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		now := r.now()
		msgs, err := r.store.FetchDue(ctx, now, r.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("fetch outbox messages: %w", err)
		}

		for i := range msgs {
			msg := &msgs[i]
			if herr := r.handler.Handle(ctx, msg); herr != nil {
				logger.Warn(ctx, "outbox delivery failed",
					"message_id", msg.ID, "event_type", msg.EventType,
					"retry_count", msg.RetryCount, "error", herr)
				next := now.Add(Backoff(msg.RetryCount))
				if err := r.store.MarkRetry(ctx, msg.ID, herr.Error(), next, r.cfg.MaxRetries); err != nil {
					return fmt.Errorf("mark retry: %w", err)
				}
				continue
			}
			if err := r.store.MarkPublished(ctx, msg.ID, now); err != nil {
				return fmt.Errorf("mark published: %w", err)
			}
			published++
		}
		return nil
	})
	return published, err
}

// Cleanup deletes messages published before now minus retention.
func (r *Relay) Cleanup(ctx context.Context, retention time.Duration) (int64, error) {
	return r.store.DeletePublished(ctx, r.now().Add(-retention))
}

// Backoff is the delay before retry number retryCount+1.
func Backoff(retryCount int) time.Duration {
	return time.Duration(retryCount+1) * time.Minute
}
