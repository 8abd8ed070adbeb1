package numerator

import (
	"context"
	"time"
)

// Generator produces sequential reference numbers.
// Implementations live in infrastructure/numerator.
type Generator interface {
	// GetNextNumber returns the next number for cfg in the given period,
	// e.g. TRF-2024-00010.
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)

	// SetNextNumber moves the sequence (imports, repairs).
	SetNextNumber(ctx context.Context, cfg Config, period time.Time, value int64) error
}
