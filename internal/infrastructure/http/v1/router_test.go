package v1_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invencare/internal/app"
	appctx "invencare/internal/core/context"
	"invencare/internal/domain/auth"
	"invencare/internal/domain/catalog"
	v1 "invencare/internal/infrastructure/http/v1"
	"invencare/internal/infrastructure/http/v1/dto"
	"invencare/internal/infrastructure/http/v1/middleware"
	"invencare/internal/infrastructure/storage"
	"invencare/pkg/logger"
)

type server struct {
	t       *testing.T
	handler http.Handler
	app     *app.App
}

type serverOptions struct {
	jwt         *auth.JWTService
	idempotency bool
}

func newServer(t *testing.T, opts serverOptions) *server {
	t.Helper()
	ctx := context.Background()

	backend, err := storage.Open(ctx, storage.Config{
		Driver:     storage.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(backend.Close)
	require.NoError(t, backend.LoadCatalog(ctx, catalog.DemoStores(), catalog.DemoProducts()))

	a := app.New(backend, app.Options{})
	cfg := v1.RouterConfig{
		Logger:        logger.NewNop(),
		Ledger:        a.Ledger,
		Catalog:       a.Catalog,
		Health:        backend,
		StorageDriver: backend.Driver,
		Version:       "test",
	}
	if opts.jwt != nil {
		cfg.JWTValidator = opts.jwt
	}
	if opts.idempotency {
		cfg.Idempotency = backend.Idempotency
	}
	return &server{t: t, handler: v1.NewRouter(cfg), app: a}
}

func (s *server) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func saleBody(productID, storeID string, qty any) map[string]any {
	return map[string]any{
		"type":      "sale",
		"productId": productID,
		"quantity":  qty,
		"unitPrice": 1.99,
		"storeId":   storeID,
		"userId":    "u-cashier",
		"userName":  "Maria Lopez",
	}
}

func TestRecordSale(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 15), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[dto.RecordTransactionResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.Transaction.ReferenceNumber, "SAL-"), resp.Transaction.ReferenceNumber)
	assert.Equal(t, "Sale", resp.Transaction.Type)
	assert.Equal(t, int64(-15), resp.Transaction.Quantity)
	assert.Equal(t, "29.85", resp.Transaction.TotalAmount)
	assert.Equal(t, "Bananas", resp.Transaction.ProductName)
	require.Len(t, resp.AffectedProducts, 1)
	assert.Equal(t, int64(85), resp.AffectedProducts[0].Quantity)
	assert.Equal(t, "Available", resp.AffectedProducts[0].Status)
	assert.Empty(t, resp.Warnings)
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestRecordValidation(t *testing.T) {
	s := newServer(t, serverOptions{})

	tests := []struct {
		name   string
		body   any
		status int
		code   string
	}{
		{"fractional quantity", saleBody("FV-BAN-001", "store_001", 1.5), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"zero quantity", saleBody("FV-BAN-001", "store_001", 0), http.StatusBadRequest, "INVALID_QUANTITY"},
		{"min int64 restock", `{"type":"Restock","productId":"FV-BAN-001","quantity":-9223372036854775808,` +
			`"unitPrice":"1.20","storeId":"store_001","userId":"u","userName":"n"}`, http.StatusBadRequest, "INVALID_QUANTITY"},
		{"unknown type", map[string]any{"type": "gift", "productId": "FV-BAN-001", "quantity": 1,
			"storeId": "store_001", "userId": "u", "userName": "n"}, http.StatusBadRequest, "INVALID_TRANSACTION_TYPE"},
		{"malformed json", `{"type":`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown product", saleBody("XX-NOP-999", "store_001", 1), http.StatusNotFound, "PRODUCT_NOT_FOUND"},
		{"unknown store", saleBody("FV-BAN-001", "store_404", 1), http.StatusNotFound, "STORE_NOT_FOUND"},
		{"insufficient stock", saleBody("FV-BAN-001", "store_001", 1000), http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
		{"transfer without target", map[string]any{"type": "Transfer", "productId": "DA-CHE-004", "quantity": 1,
			"storeId": "store_002", "userId": "u", "userName": "n"}, http.StatusBadRequest, "INVALID_TRANSFER_TARGET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(http.MethodPost, "/api/v1/transactions", tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			body := decode[dto.ErrorResponse](t, rec)
			assert.Equal(t, tt.code, body.Code)
		})
	}

	p, err := s.app.Catalog.GetProduct(context.Background(), "FV-BAN-001", "store_001")
	require.NoError(t, err)
	assert.Equal(t, int64(100), p.Quantity)
}

func TestRecordTransfer(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodPost, "/api/v1/transactions", map[string]any{
		"type": "Transfer", "productId": "DA-CHE-004", "quantity": 12, "unitPrice": "5.99",
		"storeId": "store_002", "transferToStoreId": "store_001",
		"userId": "u-mgr", "userName": "Sam Patel",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[dto.RecordTransactionResponse](t, rec)
	assert.True(t, strings.HasPrefix(resp.Transaction.ReferenceNumber, "TRF-"))
	assert.Equal(t, "applied", resp.Transaction.ReconciliationStatus)
	require.NotNil(t, resp.Transaction.DestinationProductID)
	assert.Equal(t, "DA-CHE-104", *resp.Transaction.DestinationProductID)

	quantities := map[string]int64{}
	for _, p := range resp.AffectedProducts {
		quantities[p.ID+"@"+p.StoreID] = p.Quantity
	}
	assert.Equal(t, map[string]int64{"DA-CHE-004@store_002": 7, "DA-CHE-104@store_001": 19}, quantities)
}

func TestRecordTransferWithoutDestination(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodPost, "/api/v1/transactions", map[string]any{
		"type": "Transfer", "productId": "FV-APL-002", "quantity": 10, "unitPrice": "3.49",
		"storeId": "store_001", "transferToStoreId": "store_003",
		"userId": "u-mgr", "userName": "Sam Patel",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[dto.RecordTransactionResponse](t, rec)
	assert.Equal(t, "destination_missing", resp.Transaction.ReconciliationStatus)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, "DESTINATION_NOT_FOUND", resp.Warnings[0].Code)
	require.Len(t, resp.AffectedProducts, 1)
	assert.Equal(t, int64(70), resp.AffectedProducts[0].Quantity)
}

func TestListAndSummary(t *testing.T) {
	s := newServer(t, serverOptions{})

	for i := 0; i < 3; i++ {
		rec := s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 5), nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, "/api/v1/transactions", map[string]any{
		"type": "Restock", "productId": "FV-BAN-001", "quantity": 50, "unitPrice": "1.20",
		"storeId": "store_001", "userId": "u-stock", "userName": "Ada Chen",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/transactions?storeId=store_001&limit=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := decode[dto.TransactionListResponse](t, rec)
	require.Len(t, page.Transactions, 2)
	assert.Equal(t, "Restock", page.Transactions[0].Type)
	assert.Equal(t, dto.PaginationResponse{Total: 4, Limit: 2, Offset: 0, HasMore: true}, page.Pagination)

	rec = s.do(http.MethodGet, "/api/v1/transactions?storeId=all&type=sale&search=ADA", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[dto.TransactionListResponse](t, rec)
	assert.Empty(t, page.Transactions)
	assert.False(t, page.Pagination.HasMore)

	rec = s.do(http.MethodGet, "/api/v1/transactions?search=maria&dateRange=today", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = decode[dto.TransactionListResponse](t, rec)
	assert.Equal(t, int64(3), page.Pagination.Total)

	rec = s.do(http.MethodGet, "/api/v1/transactions/summary?storeId=store_001", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := decode[dto.SummaryResponse](t, rec)
	assert.Equal(t, int64(4), summary.TotalTransactions)
	assert.Equal(t, "29.85", summary.TotalSales)
	assert.Equal(t, "60.00", summary.TotalRestockValue)
	assert.Equal(t, int64(3), summary.SalesCount)
	assert.Equal(t, int64(1), summary.RestockCount)

	rec = s.do(http.MethodGet, "/api/v1/transactions?dateRange=decade", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/api/v1/transactions?startDate=yesterday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAndVoid(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 15), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[dto.RecordTransactionResponse](t, rec)
	txnID := created.Transaction.ID

	rec = s.do(http.MethodGet, "/api/v1/transactions/"+txnID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.Transaction.ReferenceNumber, decode[dto.TransactionResponse](t, rec).ReferenceNumber)

	rec = s.do(http.MethodGet, "/api/v1/transactions/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	void := map[string]any{"reason": "scanned twice", "userId": "u-mgr", "userName": "Sam Patel"}
	rec = s.do(http.MethodPost, "/api/v1/transactions/"+txnID+"/void", void, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reversal := decode[dto.RecordTransactionResponse](t, rec)
	require.NotNil(t, reversal.Transaction.ReversalOf)
	assert.Equal(t, txnID, *reversal.Transaction.ReversalOf)
	assert.Equal(t, int64(15), reversal.Transaction.Quantity)
	require.Len(t, reversal.AffectedProducts, 1)
	assert.Equal(t, int64(100), reversal.AffectedProducts[0].Quantity)

	rec = s.do(http.MethodPost, "/api/v1/transactions/"+txnID+"/void", void, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_VOIDED", decode[dto.ErrorResponse](t, rec).Code)

	rec = s.do(http.MethodGet, "/api/v1/transactions/"+txnID+"/history", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"action":"void"`)
}

func TestProducts(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodGet, "/api/v1/products?storeId=store_001", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	list := decode[dto.ProductListResponse](t, rec)
	assert.Equal(t, int64(4), list.Pagination.Total)

	rec = s.do(http.MethodGet, "/api/v1/products/low-stock", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	low := decode[struct {
		Products []dto.ProductResponse `json:"products"`
	}](t, rec)
	statuses := map[string]string{}
	for _, p := range low.Products {
		statuses[p.ID] = p.Status
	}
	assert.Equal(t, "Low Stock", statuses["DA-MLK-003"])
	assert.Equal(t, "Out of Stock", statuses["BV-WAT-020"])
	assert.NotContains(t, statuses, "FV-BAN-001")
}

func TestStores(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	s := newServer(t, serverOptions{jwt: jwtSvc})

	type storeList struct {
		Stores []dto.StoreResponse `json:"stores"`
	}

	admin, _, err := jwtSvc.GenerateAccessToken(appctx.UserContext{UserID: "u-admin", Name: "Admin", IsAdmin: true})
	require.NoError(t, err)
	rec := s.do(http.MethodGet, "/api/v1/stores", nil, map[string]string{"Authorization": "Bearer " + admin})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	all := decode[storeList](t, rec)
	require.Len(t, all.Stores, 3)
	assert.Equal(t, "store_001", all.Stores[0].ID)
	assert.Equal(t, "Downtown Market", all.Stores[0].Name)

	clerk, _, err := jwtSvc.GenerateAccessToken(appctx.UserContext{
		UserID:      "u-7",
		Name:        "Clerk",
		Permissions: []string{middleware.PermProductsRead},
		StoreIDs:    []string{"store_002"},
	})
	require.NoError(t, err)
	rec = s.do(http.MethodGet, "/api/v1/stores", nil, map[string]string{"Authorization": "Bearer " + clerk})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	scoped := decode[storeList](t, rec)
	require.Len(t, scoped.Stores, 1)
	assert.Equal(t, "store_002", scoped.Stores[0].ID)
}

func TestAuthOverridesIdentity(t *testing.T) {
	jwtSvc := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	s := newServer(t, serverOptions{jwt: jwtSvc})

	rec := s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 1), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := jwtSvc.GenerateAccessToken(appctx.UserContext{
		UserID:      "u-42",
		Name:        "Token User",
		Permissions: []string{middleware.PermTransactionsWrite, middleware.PermTransactionsRead},
		StoreIDs:    []string{"store_001"},
	})
	require.NoError(t, err)
	bearer := map[string]string{"Authorization": "Bearer " + token}

	rec = s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 1), bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[dto.RecordTransactionResponse](t, rec)
	assert.Equal(t, "u-42", resp.Transaction.UserID)
	assert.Equal(t, "Token User", resp.Transaction.UserName)

	rec = s.do(http.MethodPost, "/api/v1/transactions", saleBody("DA-CHE-004", "store_002", 1), bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/transactions/"+resp.Transaction.ID+"/void",
		map[string]any{"reason": "x"}, bearer)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), middleware.PermTransactionsVoid)
}

func TestIdempotentRecord(t *testing.T) {
	s := newServer(t, serverOptions{idempotency: true})
	headers := map[string]string{middleware.HeaderIdempotencyKey: "pos-7-receipt-991"}
	body := saleBody("FV-BAN-001", "store_001", 10)

	first := s.do(http.MethodPost, "/api/v1/transactions", body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := s.do(http.MethodPost, "/api/v1/transactions", body, headers)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	p, err := s.app.Catalog.GetProduct(context.Background(), "FV-BAN-001", "store_001")
	require.NoError(t, err)
	assert.Equal(t, int64(90), p.Quantity)

	other := s.do(http.MethodPost, "/api/v1/transactions", saleBody("FV-BAN-001", "store_001", 11), headers)
	assert.Equal(t, http.StatusConflict, other.Code)
}

func TestHealth(t *testing.T) {
	s := newServer(t, serverOptions{})

	rec := s.do(http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = s.do(http.MethodGet, "/health/info", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"storage":"sqlite"`)
}
