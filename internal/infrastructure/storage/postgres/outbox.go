package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"invencare/internal/core/id"
	"invencare/internal/infrastructure/outbox"
)

// OutboxStore keeps outbox messages in sys_outbox.
type OutboxStore struct {
	txManager *TxManager
}

var _ outbox.Store = (*OutboxStore)(nil)

// NewOutboxStore creates the outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

// Insert requires a transaction in ctx so the event commits with the ledger row.
func (s *OutboxStore) Insert(ctx context.Context, msg *outbox.Message) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, string(msg.Status), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

// FetchDue locks due rows with SKIP LOCKED so parallel workers split the backlog.
func (s *OutboxStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	var msgs []outbox.Message
	err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &msgs, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = $1
		  AND (next_retry_at IS NULL OR next_retry_at <= $2)
		ORDER BY created_at
		LIMIT $3
		FOR UPDATE SKIP LOCKED
	`, string(outbox.StatusPending), now, limit)
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox SET status = $1, published_at = $2 WHERE id = $3
	`, string(outbox.StatusPublished), at, msgID)
	return err
}

func (s *OutboxStore) MarkRetry(ctx context.Context, msgID id.ID, reason string, next time.Time, maxRetries int) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = $1,
		    next_retry_at = $2,
		    status = CASE WHEN retry_count + 1 >= $3 THEN $4 ELSE status END
		WHERE id = $5
	`, reason, next, maxRetries, string(outbox.StatusFailed), msgID)
	return err
}

func (s *OutboxStore) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		DELETE FROM sys_outbox WHERE status = $1 AND published_at < $2
	`, string(outbox.StatusPublished), before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
