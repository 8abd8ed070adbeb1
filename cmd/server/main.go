// Package main is the entry point for the invencare API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"invencare/internal/app"
	"invencare/internal/config"
	"invencare/internal/domain/auth"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/cache"
	v1 "invencare/internal/infrastructure/http/v1"
	"invencare/internal/infrastructure/storage"
	"invencare/pkg/logger"
)

const version = "0.1.0"

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

	log.Infow("starting invencare server", "storage", cfg.StorageDriver, "version", version)

	// --- Storage ---
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

	// --- Summary cache ---
	summaryCache, stopCache := setupSummaryCache(ctx, cfg, backend, log)
	defer stopCache()

	services := app.New(backend, app.Options{
		AllowNegativeStock: cfg.AllowNegativeStock,
		ReferenceAttempts:  cfg.ReferenceRetries,
		SummaryTTL:         cfg.SummaryCacheTTL,
		Cache:              summaryCache,
	})

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Logger:        log,
		Ledger:        services.Ledger,
		Catalog:       services.Catalog,
		Health:        backend,
		StorageDriver: backend.Driver,
		Version:       version,
		Development:   cfg.IsDevelopment(),
	}
	if cfg.AuthEnabled {
		routerCfg.JWTValidator = auth.NewJWTService(auth.DefaultJWTConfig(cfg.JWTSecret))
	}
	if cfg.IdempotencyEnabled {
		routerCfg.Idempotency = backend.Idempotency
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.Port, "auth", cfg.AuthEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

// setupSummaryCache picks Redis when configured, otherwise a process-local
// cache. On postgres the local cache is kept coherent across instances
// through LISTEN/NOTIFY.
func setupSummaryCache(ctx context.Context, cfg *config.Config, backend *storage.Backend, log *logger.Logger) (ledger.SummaryCache, func()) {
	if cfg.SummaryCacheTTL <= 0 {
		return nil, func() {}
	}

	if cfg.RedisEnabled() {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		rc := cache.NewRedis(client)
		if err := rc.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, summary cache disabled", "addr", cfg.RedisAddr, "error", err)
			_ = client.Close()
			return nil, func() {}
		}
		log.Infow("summary cache: redis", "addr", cfg.RedisAddr)
		return rc, func() { _ = client.Close() }
	}

	if backend.Pool == nil {
		log.Info("summary cache: in-memory")
		return cache.NewMemory(nil), func() {}
	}

	mem := cache.NewMemory(cache.NewPGNotifier(backend.Pool.Pool))
	listener := cache.NewListener(backend.Pool.Pool, mem)
	listener.Start(ctx)
	log.Info("summary cache: in-memory with postgres notifications")
	return mem, listener.Stop
}
