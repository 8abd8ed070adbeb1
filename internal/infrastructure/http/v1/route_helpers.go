package v1

import (
	"github.com/gin-gonic/gin"

	"invencare/internal/infrastructure/http/v1/middleware"
)

// TransactionRouteHandler defines the ledger endpoints.
type TransactionRouteHandler interface {
	Record(c *gin.Context)
	List(c *gin.Context)
	Summary(c *gin.Context)
	Get(c *gin.Context)
	History(c *gin.Context)
	Void(c *gin.Context)
}

// ProductRouteHandler defines the read-only catalog endpoints.
type ProductRouteHandler interface {
	List(c *gin.Context)
	LowStock(c *gin.Context)
	Stores(c *gin.Context)
}

// RegisterTransactionRoutes registers the ledger routes on group.
// Static segments (/summary) are registered before /:id.
func RegisterTransactionRoutes(group *gin.RouterGroup, handler TransactionRouteHandler) {
	group.POST("", middleware.RequirePermission(middleware.PermTransactionsWrite), handler.Record)
	group.GET("", middleware.RequirePermission(middleware.PermTransactionsRead), handler.List)
	group.GET("/summary", middleware.RequirePermission(middleware.PermTransactionsRead), handler.Summary)
	group.GET("/:id", middleware.RequirePermission(middleware.PermTransactionsRead), handler.Get)
	group.GET("/:id/history", middleware.RequirePermission(middleware.PermTransactionsRead), handler.History)
	group.POST("/:id/void", middleware.RequirePermission(middleware.PermTransactionsVoid), handler.Void)
}

// RegisterProductRoutes registers the product routes on group.
func RegisterProductRoutes(group *gin.RouterGroup, handler ProductRouteHandler) {
	group.GET("", middleware.RequirePermission(middleware.PermProductsRead), handler.List)
	group.GET("/low-stock", middleware.RequirePermission(middleware.PermProductsRead), handler.LowStock)
}

// RegisterStoreRoutes registers the store listing on group.
func RegisterStoreRoutes(group *gin.RouterGroup, handler ProductRouteHandler) {
	group.GET("", middleware.RequirePermission(middleware.PermProductsRead), handler.Stores)
}
