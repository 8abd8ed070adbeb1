package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"invencare/internal/core/id"
	"invencare/internal/infrastructure/outbox"
)

// OutboxStore keeps outbox messages in sys_outbox. The IMMEDIATE
// transaction of the relay already excludes other writers, so FetchDue
// needs no row locks.
type OutboxStore struct {
	txManager *TxManager
}

var _ outbox.Store = (*OutboxStore)(nil)

// NewOutboxStore creates the outbox store.
func NewOutboxStore(txManager *TxManager) *OutboxStore {
	return &OutboxStore{txManager: txManager}
}

func (s *OutboxStore) Insert(ctx context.Context, msg *outbox.Message) error {
	tx := s.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("outbox insert requires transaction context")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sys_outbox (id, aggregate_type, aggregate_id, event_type, payload, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload, string(msg.Status), msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert outbox message: %w", err)
	}
	return nil
}

func (s *OutboxStore) FetchDue(ctx context.Context, now time.Time, limit int) ([]outbox.Message, error) {
	var msgs []outbox.Message
	err := sqlx.SelectContext(ctx, s.txManager.GetQuerier(ctx), &msgs, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, status,
		       retry_count, last_error, next_retry_at, created_at, published_at
		FROM sys_outbox
		WHERE status = ? AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at
		LIMIT ?
	`, string(outbox.StatusPending), now, limit)
	return msgs, err
}

func (s *OutboxStore) MarkPublished(ctx context.Context, msgID id.ID, at time.Time) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx,
		`UPDATE sys_outbox SET status = ?, published_at = ? WHERE id = ?`,
		string(outbox.StatusPublished), at, msgID)
	return err
}

func (s *OutboxStore) MarkRetry(ctx context.Context, msgID id.ID, reason string, next time.Time, maxRetries int) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE sys_outbox
		SET retry_count = retry_count + 1,
		    last_error = ?,
		    next_retry_at = ?,
		    status = CASE WHEN retry_count + 1 >= ? THEN ? ELSE status END
		WHERE id = ?
	`, reason, next, maxRetries, string(outbox.StatusFailed), msgID)
	return err
}

func (s *OutboxStore) DeletePublished(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.txManager.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM sys_outbox WHERE status = ? AND published_at < ?`,
		string(outbox.StatusPublished), before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Pending counts undelivered messages.
func (s *OutboxStore) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, s.txManager.GetQuerier(ctx), &n,
		`SELECT COUNT(*) FROM sys_outbox WHERE status = ?`, string(outbox.StatusPending))
	return n, err
}
