package postgres

import (
	"context"
	"fmt"

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

// Next atomically adds increment to key and returns the new value.
func (s *SequenceStore) Next(ctx context.Context, key string, increment int64) (int64, error) {
	var value int64
	err := s.txManager.GetQuerier(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = sys_sequences.value + EXCLUDED.value
		RETURNING value
	`, key, increment).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("next sequence value %s: %w", key, err)
	}
	return value, nil
}

// Set overwrites the counter for key.
func (s *SequenceStore) Set(ctx context.Context, key string, value int64) error {
	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, `
		INSERT INTO sys_sequences (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set sequence %s: %w", key, err)
	}
	return nil
}
