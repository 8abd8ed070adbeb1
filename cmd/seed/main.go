// Package main loads the demo stores and products into the configured database.
package main

import (
	"context"
	"fmt"
	"os"

	"invencare/internal/config"
	"invencare/internal/domain/catalog"
	"invencare/internal/infrastructure/storage"
	"invencare/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalw("invalid configuration", "error", err)
	}

	ctx := context.Background()

	backend, err := storage.Open(ctx, storage.Config{
		Driver:         cfg.StorageDriver,
		DatabaseURL:    cfg.DatabaseURL,
		SQLitePath:     cfg.SQLitePath,
		IdempotencyTTL: cfg.IdempotencyTTL,
	})
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer backend.Close()

	log.Infow("connected to database", "storage", backend.Driver)

	stores, products := catalog.DemoStores(), catalog.DemoProducts()
	if err := backend.LoadCatalog(ctx, stores, products); err != nil {
		log.Fatalw("failed to seed catalog", "error", err)
	}

	for _, p := range products {
		log.Infow("seeded product",
			"product_id", p.ID,
			"store_id", p.StoreID,
			"quantity", p.Quantity,
			"status", p.Status(),
		)
	}
	log.Infow("seed completed", "stores", len(stores), "products", len(products))
}
