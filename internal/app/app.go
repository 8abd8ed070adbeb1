// Package app wires the domain services onto a storage backend.
package app

import (
	"time"

	"invencare/internal/domain/catalog"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/numerator"
	"invencare/internal/infrastructure/outbox"
	"invencare/internal/infrastructure/storage"
)

// Options tune the ledger.
type Options struct {
	AllowNegativeStock bool
	ReferenceAttempts  int
	SummaryTTL         time.Duration
	Cache              ledger.SummaryCache
	Now                func() time.Time
}

// App holds the services shared by the HTTP server and the tests.
type App struct {
	Backend *storage.Backend
	Ledger  *ledger.Service
	Catalog *catalog.Service
}

// New builds the services over backend.
func New(backend *storage.Backend, opts Options) *App {
	ledgerSvc := ledger.NewService(ledger.Dependencies{
		TxManager:  backend.TxManager,
		Repo:       backend.Ledger,
		Catalog:    backend.Catalog,
		Reconciler: ledger.NewReconciler(backend.Catalog, ledger.StockPolicy{AllowNegative: opts.AllowNegativeStock}),
		Numerator:  numerator.New(backend.Sequences),
		Events:     outbox.NewPublisher(backend.Outbox),
		Audit:      backend.Audit,
		Cache:      opts.Cache,
	}, ledger.Config{
		ReferenceAttempts: opts.ReferenceAttempts,
		SummaryTTL:        opts.SummaryTTL,
		Now:               opts.Now,
	})

	return &App{
		Backend: backend,
		Ledger:  ledgerSvc,
		Catalog: catalog.NewService(backend.Catalog),
	}
}
