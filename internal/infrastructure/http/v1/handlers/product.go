package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
	"invencare/internal/domain/catalog"
	"invencare/internal/infrastructure/http/v1/dto"
)

// ProductHandler exposes the catalog with derived stock status.
type ProductHandler struct {
	*BaseHandler
	service *catalog.Service
}

// NewProductHandler creates a product handler.
func NewProductHandler(base *BaseHandler, service *catalog.Service) *ProductHandler {
	return &ProductHandler{BaseHandler: base, service: service}
}

// List handles GET /products.
func (h *ProductHandler) List(c *gin.Context) {
	var q dto.ProductFilter
	if !h.BindQuery(c, &q) {
		return
	}

	if !h.checkStore(c, q.StoreID) {
		return
	}

	filter := q.ToFilter()
	products, total, err := h.service.ListProducts(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	limit := q.Limit
	if limit <= 0 {
		limit = len(products)
	}
	h.OK(c, dto.ProductListResponse{
		Products:   dto.FromProducts(products),
		Pagination: dto.NewPaginationResponse(total, limit, q.Offset, len(products)),
	})
}

// LowStock handles GET /products/low-stock.
func (h *ProductHandler) LowStock(c *gin.Context) {
	storeID := c.DefaultQuery("storeId", "all")
	if !h.checkStore(c, storeID) {
		return
	}

	products, err := h.service.LowStock(c.Request.Context(), storeID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"products": dto.FromProducts(products)})
}

// Stores handles GET /stores.
func (h *ProductHandler) Stores(c *gin.Context) {
	stores, err := h.service.ListStores(c.Request.Context())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"stores": dto.FromStores(stores)})
}

func (h *ProductHandler) checkStore(c *gin.Context, storeID string) bool {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" || strings.EqualFold(storeID, "all") {
		return true
	}
	if !appctx.HasStoreAccess(c.Request.Context(), storeID) {
		h.Error(c, apperror.NewForbidden("no access to store").WithDetail("store_id", storeID))
		return false
	}
	return true
}
