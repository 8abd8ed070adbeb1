package handlers

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"invencare/internal/core/apperror"
	"invencare/internal/core/id"
	"invencare/internal/domain/ledger"
	"invencare/internal/infrastructure/http/v1/dto"
)

// TransactionHandler handles /transactions.
type TransactionHandler struct {
	*BaseHandler
	service *ledger.Service
}

// NewTransactionHandler creates a transaction handler.
func NewTransactionHandler(base *BaseHandler, service *ledger.Service) *TransactionHandler {
	return &TransactionHandler{BaseHandler: base, service: service}
}

// Record handles POST /transactions.
func (h *TransactionHandler) Record(c *gin.Context) {
	var req dto.RecordTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if user := h.CurrentUser(c); user != nil {
		req.UserID, req.UserName = user.UserID, user.Name
	}

	recorded, err := h.service.Record(c.Request.Context(), req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRecorded(recorded))
}

// List handles GET /transactions.
func (h *TransactionHandler) List(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPage(page))
}

// Summary handles GET /transactions/summary.
func (h *TransactionHandler) Summary(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	summary, err := h.service.Summarize(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromSummary(summary))
}

// Get handles GET /transactions/:id.
func (h *TransactionHandler) Get(c *gin.Context) {
	txnID, ok := h.parseID(c)
	if !ok {
		return
	}

	txn, err := h.service.Get(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromTransaction(*txn))
}

// History handles GET /transactions/:id/history.
func (h *TransactionHandler) History(c *gin.Context) {
	txnID, ok := h.parseID(c)
	if !ok {
		return
	}

	entries, err := h.service.History(c.Request.Context(), txnID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, gin.H{"entries": entries})
}

// Void handles POST /transactions/:id/void.
func (h *TransactionHandler) Void(c *gin.Context) {
	txnID, ok := h.parseID(c)
	if !ok {
		return
	}

	var req dto.VoidTransactionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	if user := h.CurrentUser(c); user != nil {
		req.UserID, req.UserName = user.UserID, user.Name
	}

	recorded, err := h.service.Void(c.Request.Context(), txnID, req.ToInput())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromRecorded(recorded))
}

func (h *TransactionHandler) parseID(c *gin.Context) (id.ID, bool) {
	raw := c.Param("id")
	txnID, err := id.Parse(raw)
	if err != nil {
		h.Error(c, apperror.NewTransactionNotFound(raw))
		return id.ID{}, false
	}
	return txnID, true
}

func (h *TransactionHandler) bindFilter(c *gin.Context) (ledger.ListFilter, bool) {
	var q dto.TransactionFilter
	if !h.BindQuery(c, &q) {
		return ledger.ListFilter{}, false
	}

	start, err := parseDate(q.StartDate, false)
	if err != nil {
		h.Error(c, apperror.NewInvalidField(apperror.CodeInvalidInput, "startDate", err.Error()))
		return ledger.ListFilter{}, false
	}
	end, err := parseDate(q.EndDate, true)
	if err != nil {
		h.Error(c, apperror.NewInvalidField(apperror.CodeInvalidInput, "endDate", err.Error()))
		return ledger.ListFilter{}, false
	}

	return ledger.ListFilter{
		StoreID:   q.StoreID,
		Type:      q.Type,
		DateRange: q.DateRange,
		Start:     start,
		End:       end,
		Search:    q.Search,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}, true
}

// parseDate accepts RFC 3339 or a bare UTC date. A bare end date is
// extended to the last instant of that day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperror.NewValidation("date must be RFC 3339 or YYYY-MM-DD")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
