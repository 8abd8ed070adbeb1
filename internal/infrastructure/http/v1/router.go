// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"invencare/internal/domain/catalog"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/http/v1/handlers"
	"invencare/internal/infrastructure/http/v1/middleware"
	"invencare/internal/infrastructure/idempotency"
	"invencare/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator enables bearer authentication when set
	JWTValidator middleware.JWTValidator

	Ledger  *ledger.Service
	Catalog *catalog.Service

	// Health is pinged by /health/ready
	Health        handlers.Pinger
	StorageDriver string
	Version       string

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency idempotency.Store

	// Development switches gin to debug mode
	Development bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Health, cfg.StorageDriver, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		if cfg.JWTValidator != nil {
			v1.Use(middleware.Auth(cfg.JWTValidator))
		}

		// Runs after Auth so keys are scoped to the caller
		if cfg.Idempotency != nil {
			v1.Use(middleware.Idempotency(cfg.Idempotency))
		}

		baseHandler := handlers.NewBaseHandler()
		RegisterTransactionRoutes(v1.Group("/transactions"),
			handlers.NewTransactionHandler(baseHandler, cfg.Ledger))
		productHandler := handlers.NewProductHandler(baseHandler, cfg.Catalog)
		RegisterProductRoutes(v1.Group("/products"), productHandler)
		RegisterStoreRoutes(v1.Group("/stores"), productHandler)
	}

	return router
}
