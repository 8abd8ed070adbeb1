// Package auditlog encodes audit entries for storage. Large change sets are
// compressed with zstd; small ones are stored as plain JSON.
package auditlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"invencare/internal/core/id"
	"invencare/internal/domain/ledger"
)

// Compression algorithms recorded per row.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// DefaultThreshold is the change-set size above which entries are compressed.
const DefaultThreshold = 10 * 1024

// Row is the stored form of an entry.
type Row struct {
	ID                id.ID     `db:"id"`
	EntityType        string    `db:"entity_type"`
	EntityID          string    `db:"entity_id"`
	Action            string    `db:"action"`
	UserID            string    `db:"user_id"`
	Changes           []byte    `db:"changes"`
	ChangesCompressed []byte    `db:"changes_compressed"`
	CompressionAlgo   string    `db:"compression_algo"`
	CreatedAt         time.Time `db:"created_at"`
}

// Codec converts between ledger.AuditEntry and Row.
type Codec struct {
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	threshold int
}

// NewCodec creates a codec compressing change sets larger than threshold bytes.
func NewCodec(threshold int) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Codec{encoder: encoder, decoder: decoder, threshold: threshold}, nil
}

// Encode fills in ID and CreatedAt when missing and compresses large changes.
func (c *Codec) Encode(e ledger.AuditEntry) (*Row, error) {
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return nil, fmt.Errorf("marshal changes: %w", err)
	}
	if id.IsNil(e.ID) {
		e.ID = id.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	row := &Row{
		ID:              e.ID,
		EntityType:      e.EntityType,
		EntityID:        e.EntityID,
		Action:          e.Action,
		UserID:          e.UserID,
		Changes:         changes,
		CompressionAlgo: CompressionNone,
		CreatedAt:       e.CreatedAt,
	}
	if len(changes) > c.threshold {
		row.ChangesCompressed = c.encoder.EncodeAll(changes, nil)
		row.Changes = nil
		row.CompressionAlgo = CompressionZstd
	}
	return row, nil
}

// Decode restores an entry, decompressing when needed.
func (c *Codec) Decode(r Row) (ledger.AuditEntry, error) {
	raw := r.Changes
	if r.CompressionAlgo == CompressionZstd && len(r.ChangesCompressed) > 0 {
		decompressed, err := c.decoder.DecodeAll(r.ChangesCompressed, nil)
		if err != nil {
			return ledger.AuditEntry{}, fmt.Errorf("decompress changes: %w", err)
		}
		raw = decompressed
	}

	e := ledger.AuditEntry{
		ID:         r.ID,
		EntityType: r.EntityType,
		EntityID:   r.EntityID,
		Action:     r.Action,
		UserID:     r.UserID,
		CreatedAt:  r.CreatedAt,
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &e.Changes); err != nil {
			return ledger.AuditEntry{}, fmt.Errorf("unmarshal changes: %w", err)
		}
	}
	return e, nil
}
