// Package tx decouples domain services from a concrete database: the
// postgres and sqlite backends both implement Manager.
package tx

import (
	"context"
)

// Manager runs work inside a database transaction.
//
// fn receives a context carrying the transaction; repositories pick it up from
// there. A non-nil error from fn rolls everything back. Nested calls reuse the
// outer transaction.
type Manager interface {
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
