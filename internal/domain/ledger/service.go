package ledger

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"invencare/internal/core/apperror"
	appctx "invencare/internal/core/context"
	"invencare/internal/core/id"
	"invencare/internal/core/numerator"
	"invencare/internal/core/tx"
	"invencare/internal/domain/catalog"
	"invencare/pkg/logger"
)

var tracer = otel.Tracer("invencare/ledger")

// Config tunes the service.
type Config struct {
	// ReferenceAttempts bounds the retries on reference-number collisions and
	// lock conflicts (default 5).
	ReferenceAttempts int
	// SummaryTTL is how long computed summaries are cached (0 disables caching).
	SummaryTTL time.Duration
	// Numbering selects the numerator strategy for reference numbers.
	Numbering *numerator.Options
	// Now is the clock; defaults to time.Now in UTC.
	Now func() time.Time
}

// Dependencies are the collaborators of Service. Events, Audit and Cache are optional.
type Dependencies struct {
	TxManager  tx.Manager
	Repo       Repository
	Catalog    catalog.Repository
	Reconciler *Reconciler
	Numerator  numerator.Generator
	Events     EventPublisher
	Audit      AuditLog
	Cache      SummaryCache
}

// Service records, lists and summarizes ledger transactions.
type Service struct {
	deps Dependencies
	cfg  Config
}

// NewService creates the ledger service.
func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.ReferenceAttempts <= 0 {
		cfg.ReferenceAttempts = 5
	}
	if cfg.Numbering == nil {
		cfg.Numbering = numerator.DefaultOptions()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{deps: deps, cfg: cfg}
}

// Recorded is the outcome of Record and Void.
type Recorded struct {
	Transaction Transaction
	Affected    []catalog.Product
	Warnings    []ReconciliationWarning
}

// Record validates in, assigns a reference number and, in one database
// transaction, reconciles stock, inserts the row and queues events.
// Reference collisions and lock conflicts restart the whole unit of work.
func (s *Service) Record(ctx context.Context, in RecordInput) (*Recorded, error) {
	ctx, span := tracer.Start(ctx, "ledger.Record")
	defer span.End()

	d, err := in.normalize()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("ledger.type", string(d.Type)),
		attribute.String("ledger.store_id", d.StoreID),
	)

	if !appctx.HasStoreAccess(ctx, d.StoreID) {
		return nil, apperror.NewForbidden("no access to store").WithDetail("store_id", d.StoreID)
	}

	var out *Recorded
	for attempt := 1; ; attempt++ {
		out, err = s.recordOnce(ctx, d)
		if err == nil {
			break
		}
		if !retryable(err) || attempt >= s.cfg.ReferenceAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		logger.Warn(ctx, "record conflict, retrying",
			"attempt", attempt, "type", d.Type, "error", err)
	}

	s.invalidateSummaries(ctx)

	txn := out.Transaction
	logger.Info(ctx, "transaction recorded",
		"transaction_id", txn.ID,
		"reference_number", txn.ReferenceNumber,
		"type", txn.Type,
		"store_id", txn.StoreID,
		"quantity", txn.Quantity,
		"reconciliation_status", txn.ReconciliationStatus,
	)
	return out, nil
}

func (s *Service) recordOnce(ctx context.Context, d *draft) (*Recorded, error) {
	now := s.cfg.Now()

	// Numbers are taken outside the business transaction so a rollback
	// never holds the sequence row.
	ref, err := s.deps.Numerator.GetNextNumber(ctx, numerator.DefaultConfig(d.Type.Prefix()), s.cfg.Numbering, now)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}

	txn := &Transaction{
		ID:                id.New(),
		ReferenceNumber:   ref,
		Type:              d.Type,
		ProductID:         d.ProductID,
		ProductName:       d.ProductName,
		Category:          d.Category,
		Quantity:          d.Quantity.Int64(),
		UnitPrice:         d.UnitPrice,
		TotalAmount:       TotalFor(d.Quantity, d.UnitPrice),
		StoreID:           d.StoreID,
		TransferToStoreID: d.TransferToStoreID,
		UserID:            d.UserID,
		UserName:          d.UserName,
		Notes:             d.Notes,
		CreatedAt:         now,
	}

	var rec Reconciliation
	err = s.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureStores(ctx, txn.StoreID, txn.TransferToStoreID); err != nil {
			return err
		}

		var err error
		rec, err = s.deps.Reconciler.Apply(ctx, txn)
		if err != nil {
			return err
		}
		if rec.Source != nil {
			// snapshot the catalog's view of the product
			txn.ProductName = rec.Source.Name
			txn.Category = rec.Source.Category
		}
		txn.ReconciliationStatus = rec.Status

		if err := s.deps.Repo.Create(ctx, txn); err != nil {
			return err
		}
		return s.publish(ctx, txn, rec)
	})
	if err != nil {
		return nil, storageError(err)
	}

	return &Recorded{Transaction: *txn, Affected: rec.Affected(), Warnings: rec.Warnings}, nil
}

// Void records a compensating transaction for txnID: same type, opposite
// quantity, linked by reversal_of. Reversals cannot be voided and a
// transaction can be voided once.
func (s *Service) Void(ctx context.Context, txnID id.ID, in VoidInput) (*Recorded, error) {
	ctx, span := tracer.Start(ctx, "ledger.Void")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	original, err := s.deps.Repo.GetByID(ctx, txnID)
	if err != nil {
		return nil, storageError(err)
	}
	if original.IsReversal() {
		return nil, apperror.NewBusinessRule(apperror.CodeBusinessRule, "a reversal cannot be voided").
			WithDetail("id", txnID.String())
	}
	if !appctx.HasStoreAccess(ctx, original.StoreID) {
		return nil, apperror.NewForbidden("no access to store").WithDetail("store_id", original.StoreID)
	}

	var out *Recorded
	for attempt := 1; ; attempt++ {
		out, err = s.voidOnce(ctx, original, in)
		if err == nil {
			break
		}
		if !retryable(err) || attempt >= s.cfg.ReferenceAttempts {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		logger.Warn(ctx, "void conflict, retrying", "attempt", attempt, "error", err)
	}

	s.invalidateSummaries(ctx)
	logger.Info(ctx, "transaction voided",
		"transaction_id", original.ID,
		"reversal_id", out.Transaction.ID,
		"reference_number", out.Transaction.ReferenceNumber,
	)
	return out, nil
}

func (s *Service) voidOnce(ctx context.Context, original *Transaction, in VoidInput) (*Recorded, error) {
	now := s.cfg.Now()
	ref, err := s.deps.Numerator.GetNextNumber(ctx, numerator.DefaultConfig(original.Type.Prefix()), s.cfg.Numbering, now)
	if err != nil {
		return nil, apperror.NewDatabase(err)
	}

	reversal := &Transaction{
		ID:                id.New(),
		ReferenceNumber:   ref,
		Type:              original.Type,
		ProductID:         original.ProductID,
		ProductName:       original.ProductName,
		Category:          original.Category,
		Quantity:          -original.Quantity,
		UnitPrice:         original.UnitPrice,
		TotalAmount:       original.TotalAmount,
		StoreID:           original.StoreID,
		TransferToStoreID: original.TransferToStoreID,
		UserID:            in.UserID,
		UserName:          in.UserName,
		Notes:             optional(in.Reason),
		ReversalOf:        &original.ID,
		CreatedAt:         now,
	}

	var rec Reconciliation
	err = s.deps.TxManager.RunInTransaction(ctx, func(ctx context.Context) error {
		existing, err := s.deps.Repo.FindReversal(ctx, original.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperror.NewAlreadyVoided(original.ID.String()).
				WithDetail("reversal_reference", existing.ReferenceNumber)
		}

		rec, err = s.deps.Reconciler.Reverse(ctx, original, reversal)
		if err != nil {
			return err
		}
		reversal.ReconciliationStatus = rec.Status

		if err := s.deps.Repo.Create(ctx, reversal); err != nil {
			return err
		}

		if s.deps.Audit != nil {
			err := s.deps.Audit.Record(ctx, AuditEntry{
				ID:         id.New(),
				EntityType: "transaction",
				EntityID:   original.ID.String(),
				Action:     "void",
				UserID:     in.UserID,
				Changes: map[string]any{
					"original_reference": original.ReferenceNumber,
					"reversal_reference": reversal.ReferenceNumber,
					"reversal_id":        reversal.ID.String(),
					"quantity":           reversal.Quantity,
					"reason":             in.Reason,
				},
				CreatedAt: now,
			})
			if err != nil {
				return err
			}
		}

		if s.deps.Events == nil {
			return nil
		}
		return s.deps.Events.Publish(ctx, Event{
			AggregateType: "transaction",
			AggregateID:   original.ID.String(),
			EventType:     EventTransactionVoided,
			Payload: map[string]any{
				"id":                 original.ID.String(),
				"reference_number":   original.ReferenceNumber,
				"reversal_id":        reversal.ID.String(),
				"reversal_reference": reversal.ReferenceNumber,
			},
		})
	})
	if err != nil {
		return nil, storageError(err)
	}

	return &Recorded{Transaction: *reversal, Affected: rec.Affected(), Warnings: rec.Warnings}, nil
}

// Get returns one transaction.
func (s *Service) Get(ctx context.Context, txnID id.ID) (*Transaction, error) {
	txn, err := s.deps.Repo.GetByID(ctx, txnID)
	if err != nil {
		return nil, storageError(err)
	}
	if !appctx.HasStoreAccess(ctx, txn.StoreID) &&
		(txn.TransferToStoreID == nil || !appctx.HasStoreAccess(ctx, *txn.TransferToStoreID)) {
		return nil, apperror.NewTransactionNotFound(txnID.String())
	}
	return txn, nil
}

// History returns the audit trail of a transaction.
func (s *Service) History(ctx context.Context, txnID id.ID) ([]AuditEntry, error) {
	if _, err := s.Get(ctx, txnID); err != nil {
		return nil, err
	}
	if s.deps.Audit == nil {
		return []AuditEntry{}, nil
	}
	entries, err := s.deps.Audit.History(ctx, "transaction", txnID.String())
	if err != nil {
		return nil, storageError(err)
	}
	return entries, nil
}

// Page is a listing result.
type Page struct {
	Items  []Transaction
	Total  int64
	Limit  int
	Offset int
}

// HasMore reports whether rows exist past this page.
func (p Page) HasMore() bool {
	return int64(p.Offset+len(p.Items)) < p.Total
}

// List returns transactions newest first.
func (s *Service) List(ctx context.Context, f ListFilter) (*Page, error) {
	q, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}
	items, total, err := s.deps.Repo.List(ctx, q)
	if err != nil {
		return nil, storageError(err)
	}
	if items == nil {
		items = []Transaction{}
	}
	return &Page{Items: items, Total: total, Limit: q.Limit, Offset: q.Offset}, nil
}

// Summarize aggregates the transactions matching f. Limit and offset are ignored.
func (s *Service) Summarize(ctx context.Context, f ListFilter) (*Summary, error) {
	q, err := s.query(ctx, f)
	if err != nil {
		return nil, err
	}

	key := q.cacheKey()
	cacheable := s.cacheEnabled()
	var gen int64
	if cacheable {
		// taken before reading so a write committed meanwhile discards our result
		if gen, err = s.deps.Cache.Generation(ctx); err != nil {
			logger.Warn(ctx, "summary cache generation read failed", "error", err)
			cacheable = false
		}
	}
	if cacheable {
		if cached, ok, err := s.deps.Cache.GetSummary(ctx, key); err != nil {
			logger.Warn(ctx, "summary cache read failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	rows, err := s.deps.Repo.Totals(ctx, q)
	if err != nil {
		return nil, storageError(err)
	}
	summary := summarize(rows)

	if cacheable {
		if err := s.deps.Cache.SetSummary(ctx, key, gen, summary, s.cfg.SummaryTTL); err != nil {
			logger.Warn(ctx, "summary cache write failed", "error", err)
		}
	}
	return summary, nil
}

func (s *Service) query(ctx context.Context, f ListFilter) (Query, error) {
	q, err := f.resolve(s.cfg.Now())
	if err != nil {
		return Query{}, err
	}
	return q.scope(allowedStores(ctx))
}

func (s *Service) ensureStores(ctx context.Context, storeID string, transferTo *string) error {
	if _, err := s.deps.Catalog.GetStore(ctx, storeID); err != nil {
		return err
	}
	if transferTo != nil {
		if _, err := s.deps.Catalog.GetStore(ctx, *transferTo); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) publish(ctx context.Context, txn *Transaction, rec Reconciliation) error {
	if s.deps.Events == nil {
		return nil
	}

	events := []Event{{
		AggregateType: "transaction",
		AggregateID:   txn.ID.String(),
		EventType:     EventTransactionRecorded,
		Payload: map[string]any{
			"id":                    txn.ID.String(),
			"reference_number":      txn.ReferenceNumber,
			"type":                  txn.Type,
			"product_id":            txn.ProductID,
			"store_id":              txn.StoreID,
			"transfer_to_store_id":  txn.TransferToStoreID,
			"quantity":              txn.Quantity,
			"total_amount":          txn.TotalAmount.StringFixed(2),
			"reconciliation_status": txn.ReconciliationStatus,
		},
	}}

	for _, w := range rec.Warnings {
		events = append(events, Event{
			AggregateType: "transaction",
			AggregateID:   txn.ID.String(),
			EventType:     EventReconciliationWarning,
			Payload: map[string]any{
				"transaction_id":   txn.ID.String(),
				"reference_number": txn.ReferenceNumber,
				"warning":          w,
			},
		})
	}

	for _, p := range rec.Affected() {
		if !p.IsLow() {
			continue
		}
		events = append(events, Event{
			AggregateType: "product",
			AggregateID:   p.ID,
			EventType:     EventLowStock,
			Payload: map[string]any{
				"product_id":    p.ID,
				"store_id":      p.StoreID,
				"quantity":      p.Quantity,
				"minimum_stock": p.MinimumStock,
				"status":        p.Status(),
			},
		})
	}

	for _, e := range events {
		if err := s.deps.Events.Publish(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) cacheEnabled() bool {
	return s.deps.Cache != nil && s.cfg.SummaryTTL > 0
}

func (s *Service) invalidateSummaries(ctx context.Context) {
	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.InvalidateSummaries(ctx); err != nil {
		logger.Warn(ctx, "summary cache invalidation failed", "error", err)
	}
}

// allowedStores returns nil for unrestricted callers.
func allowedStores(ctx context.Context) []string {
	u := appctx.GetUser(ctx)
	if u == nil || u.IsAdmin {
		return nil
	}
	return append([]string{}, u.StoreIDs...)
}

// retryable reports whether the unit of work may be repeated from scratch.
func retryable(err error) bool {
	return apperror.IsCode(err, apperror.CodeDuplicateReference) ||
		apperror.IsCode(err, apperror.CodeConcurrentUpdate)
}

// storageError keeps domain errors and wraps everything else as a 5xx.
func storageError(err error) error {
	if apperror.IsAppError(err) {
		return err
	}
	return apperror.NewDatabase(err)
}
