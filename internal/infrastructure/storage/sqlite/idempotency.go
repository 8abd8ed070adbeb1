package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"invencare/internal/core/apperror"
	"invencare/internal/infrastructure/idempotency"
)

// IdempotencyStore keeps idempotency keys in sys_idempotency.
type IdempotencyStore struct {
	txManager *TxManager
	ttl       time.Duration
}

var _ idempotency.Store = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(txManager *TxManager, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{txManager: txManager, ttl: ttl}
}

func (s *IdempotencyStore) AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*idempotency.Replay, error) {
	now := time.Now().UTC()
	var replay *idempotency.Replay

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		q := s.txManager.GetQuerier(ctx)
		res, err := q.ExecContext(ctx, `
			INSERT OR IGNORE INTO sys_idempotency
				(idempotency_key, user_id, operation, status, request_hash, created_at, updated_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, key, userID, operation, string(idempotency.StatusPending), requestHash, now, now, now.Add(s.ttl))
		if err != nil {
			return fmt.Errorf("acquire idempotency key: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return nil
		}

		var rec idempotency.Record
		if err := sqlx.GetContext(ctx, q, &rec, `
			SELECT idempotency_key, user_id, operation, status, request_hash,
			       response, response_status, response_content_type,
			       created_at, updated_at, expires_at
			FROM sys_idempotency WHERE idempotency_key = ?
		`, key); err != nil {
			return fmt.Errorf("load idempotency key: %w", err)
		}

		if !rec.Matches(userID, operation, requestHash) {
			return apperror.NewIdempotencyMismatch(key)
		}
		switch rec.Status {
		case idempotency.StatusSuccess, idempotency.StatusFailed:
			replay = rec.Replay()
			return nil
		}
		if now.Sub(rec.UpdatedAt) <= idempotency.StaleAfter {
			return apperror.NewIdempotencyConflict(key)
		}
		_, err = q.ExecContext(ctx,
			`UPDATE sys_idempotency SET updated_at = ? WHERE idempotency_key = ?`, now, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return replay, nil
}

func (s *IdempotencyStore) CompleteKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, idempotency.StatusSuccess, statusCode, contentType, body)
}

func (s *IdempotencyStore) FailKey(ctx context.Context, key string, statusCode int, contentType string, body []byte) error {
	return s.finish(ctx, key, idempotency.StatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(ctx context.Context, key string, status idempotency.Status, statusCode int, contentType string, body []byte) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		UPDATE sys_idempotency
		SET status = ?, response = ?, response_status = ?, response_content_type = ?, updated_at = ?
		WHERE idempotency_key = ?
	`, string(status), body, statusCode, contentType, time.Now().UTC(), key)
	return err
}

func (s *IdempotencyStore) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.txManager.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM sys_idempotency WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
