// Package storage opens the configured database backend and exposes its
// repositories behind the domain interfaces.
package storage

import (
	"context"
	"fmt"
	"time"

	"invencare/internal/core/tx"
	"invencare/internal/domain/catalog"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/auditlog"
	"invencare/internal/infrastructure/idempotency"
	"invencare/internal/infrastructure/numerator"
	"invencare/internal/infrastructure/outbox"
	"invencare/internal/infrastructure/storage/postgres"
	"invencare/internal/infrastructure/storage/sqlite"
)

// Drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and configures the backend.
type Config struct {
	Driver         string
	DatabaseURL    string
	SQLitePath     string
	IdempotencyTTL time.Duration
}

// Backend bundles the repositories of one database.
type Backend struct {
	Driver      string
	TxManager   tx.Manager
	Catalog     catalog.Repository
	Ledger      ledger.Repository
	Sequences   numerator.SequenceStore
	Outbox      outbox.Store
	Audit       ledger.AuditLog
	Idempotency idempotency.Store

	// Pool is set for the postgres driver only.
	Pool *postgres.Pool

	loadCatalog func(ctx context.Context, stores []catalog.Store, products []catalog.Product) error
	ping        func(ctx context.Context) error
	stats       func(ctx context.Context)
	close       func()
}

// Open connects to the configured database and applies migrations.
func Open(ctx context.Context, cfg Config) (*Backend, error) {
	codec, err := auditlog.NewCodec(auditlog.DefaultThreshold)
	if err != nil {
		return nil, err
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 24 * time.Hour
	}

	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, codec)
	case DriverSQLite, "":
		return openSQLite(ctx, cfg, codec)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg Config, codec *auditlog.Codec) (*Backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, err
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	txm := postgres.NewTxManager(pool)
	return &Backend{
		Driver:      DriverPostgres,
		TxManager:   txm,
		Catalog:     postgres.NewCatalogRepo(txm),
		Ledger:      postgres.NewLedgerRepo(txm),
		Sequences:   postgres.NewSequenceStore(txm),
		Outbox:      postgres.NewOutboxStore(txm),
		Audit:       postgres.NewAuditLog(txm, codec),
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Pool:        pool,
		loadCatalog: postgres.NewBulkLoader(txm).LoadCatalog,
		ping:        pool.Ping,
		stats:       pool.LogStats,
		close:       pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config, codec *auditlog.Codec) (*Backend, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "invencare.db"
	}
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(db, codec, cfg.IdempotencyTTL), nil
}

// NewSQLite wraps an open sqlite database.
func NewSQLite(db *sqlite.DB, codec *auditlog.Codec, idempotencyTTL time.Duration) *Backend {
	txm := sqlite.NewTxManager(db)
	cat := sqlite.NewCatalogRepo(txm)
	return &Backend{
		Driver:      DriverSQLite,
		TxManager:   txm,
		Catalog:     cat,
		Ledger:      sqlite.NewLedgerRepo(txm),
		Sequences:   sqlite.NewSequenceStore(txm),
		Outbox:      sqlite.NewOutboxStore(txm),
		Audit:       sqlite.NewAuditLog(txm, codec),
		Idempotency: sqlite.NewIdempotencyStore(txm, idempotencyTTL),
		loadCatalog: cat.LoadCatalog,
		ping:        db.Ping,
		stats:       func(context.Context) {},
		close:       func() { _ = db.Close() },
	}
}

// LoadCatalog bulk-inserts stores and products.
func (b *Backend) LoadCatalog(ctx context.Context, stores []catalog.Store, products []catalog.Product) error {
	return b.loadCatalog(ctx, stores, products)
}

// Ping checks database connectivity.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// LogStats logs connection statistics where the driver has them.
func (b *Backend) LogStats(ctx context.Context) {
	b.stats(ctx)
}

// Close releases the database.
func (b *Backend) Close() {
	b.close()
}
