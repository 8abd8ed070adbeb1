package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/auditlog"
)

// AuditLog stores audit entries in sys_audit.
type AuditLog struct {
	txManager *TxManager
	codec     *auditlog.Codec
}

var _ ledger.AuditLog = (*AuditLog)(nil)

// NewAuditLog creates the audit log.
func NewAuditLog(txManager *TxManager, codec *auditlog.Codec) *AuditLog {
	return &AuditLog{txManager: txManager, codec: codec}
}

func (a *AuditLog) Record(ctx context.Context, entry ledger.AuditEntry) error {
	row, err := a.codec.Encode(entry)
	if err != nil {
		return err
	}
	_, err = a.txManager.GetQuerier(ctx).ExecContext(ctx, `
		INSERT INTO sys_audit (id, entity_type, entity_id, action, user_id,
			changes, changes_compressed, compression_algo, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.ID, row.EntityType, row.EntityID, row.Action, row.UserID,
		row.Changes, row.ChangesCompressed, row.CompressionAlgo, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (a *AuditLog) History(ctx context.Context, entityType, entityID string) ([]ledger.AuditEntry, error) {
	var rows []auditlog.Row
	err := sqlx.SelectContext(ctx, a.txManager.GetQuerier(ctx), &rows, `
		SELECT id, entity_type, entity_id, action, user_id,
		       changes, changes_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at DESC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit history: %w", err)
	}

	entries := make([]ledger.AuditEntry, 0, len(rows))
	for _, r := range rows {
		e, err := a.codec.Decode(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
