package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"invencare/internal/infrastructure/numerator"
)

// SequenceStore keeps reference-number counters in sys_sequences.
type SequenceStore struct {
	txManager *TxManager
}

var _ numerator.SequenceStore = (*SequenceStore)(nil)

// NewSequenceStore creates a sequence store.
func NewSequenceStore(txManager *TxManager) *SequenceStore {
	return &SequenceStore{txManager: txManager}
}

func (s *SequenceStore) Next(ctx context.Context, key string, increment int64) (int64, error) {
	var value int64
	err := sqlx.GetContext(ctx, s.txManager.GetQuerier(ctx), &value, `
		INSERT INTO sys_sequences (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = value + excluded.value
		RETURNING value
	`, key, increment)
	if err != nil {
		return 0, fmt.Errorf("next sequence value %s: %w", key, err)
	}
	return value, nil
}

func (s *SequenceStore) Set(ctx context.Context, key string, value int64) error {
	_, err := s.txManager.GetQuerier(ctx).ExecContext(ctx, `
		INSERT INTO sys_sequences (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
