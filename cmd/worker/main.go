// Package main is the entry point for the invencare background worker:
// it relays outbox events and prunes expired bookkeeping rows.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"invencare/internal/config"
	appctx "invencare/internal/core/context"
	"invencare/internal/infrastructure/broker"
	"invencare/internal/infrastructure/cache"
	"invencare/internal/infrastructure/outbox"
	"invencare/internal/infrastructure/storage"
	"invencare/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Infow("starting invencare worker", "storage", cfg.StorageDriver)

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

	var handler outbox.Handler = logHandler{log: log.WithComponent("outbox")}
	if cfg.RedisEnabled() {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalw("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
		}
		handler = broker.NewRedisHandler(client)
		log.Infow("relaying outbox to redis", "addr", cfg.RedisAddr, "prefix", broker.ChannelPrefix)
	} else {
		log.Warn("REDIS_ADDR not set, outbox events are only logged")
	}

	worker := &Worker{
		backend: backend,
		relay: outbox.NewRelay(backend.TxManager, backend.Outbox, handler, outbox.RelayConfig{
			BatchSize:  cfg.OutboxBatchSize,
			MaxRetries: cfg.OutboxMaxRetries,
		}),
		pollInterval: cfg.OutboxPollInterval,
		retention:    cfg.OutboxRetention,
		log:          log.WithComponent("worker"),
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// Worker polls the outbox and runs periodic cleanup.
type Worker struct {
	backend      *storage.Backend
	relay        *outbox.Relay
	pollInterval time.Duration
	retention    time.Duration
	log          *logger.Logger
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	cleanupTicker := time.NewTicker(time.Hour)
	defer cleanupTicker.Stop()

	statsTicker := time.NewTicker(5 * time.Minute)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processOutbox(ctx)
		case <-cleanupTicker.C:
			w.cleanup(ctx)
		case <-statsTicker.C:
			w.backend.LogStats(ctx)
		}
	}
}

func (w *Worker) processOutbox(ctx context.Context) {
	// drain: keep going while batches come back non-empty
	for ctx.Err() == nil {
		batchCtx := appctx.WithTrace(ctx, appctx.NewTraceContext(appctx.OriginWorker))
		n, err := w.relay.ProcessBatch(batchCtx)
		if err != nil {
			w.log.WithContext(batchCtx).Errorw("outbox batch failed", "error", err)
			return
		}
		if n == 0 {
			return
		}
		w.log.WithContext(batchCtx).Debugw("processed outbox batch", "count", n)
	}
}

func (w *Worker) cleanup(ctx context.Context) {
	if n, err := w.relay.Cleanup(ctx, w.retention); err != nil {
		w.log.Errorw("outbox cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up outbox messages", "count", n)
	}

	if n, err := w.backend.Idempotency.CleanupExpired(ctx); err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
	} else if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}

// logHandler stands in for the broker when Redis is not configured.
type logHandler struct {
	log *logger.Logger
}

func (h logHandler) Handle(ctx context.Context, msg *outbox.Message) error {
	h.log.WithContext(ctx).Infow("outbox event",
		"event_type", msg.EventType,
		"aggregate_type", msg.AggregateType,
		"aggregate_id", msg.AggregateID,
		"payload", string(msg.Payload),
	)
	return nil
}
