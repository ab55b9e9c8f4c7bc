package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardRow, int, error)
	StockLevels(ctx context.Context, belowAlertOnly bool) ([]StockLevel, error)
}

// TxRepository exposes the transactional operations every apply/reverse needs.
type TxRepository interface {
	GetProductStockForUpdate(ctx context.Context, productID int64) (stock float64, exists bool, err error)
	UpdateProductStock(ctx context.Context, productID int64, stock float64) error
	HasActiveEntries(ctx context.Context, doc DocumentRef) (bool, error)
	ActiveEntries(ctx context.Context, doc DocumentRef) ([]Entry, error)
	InsertEntry(ctx context.Context, entry Entry) (int64, error)
	MarkReversed(ctx context.Context, doc DocumentRef) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// JobsPort enqueues background follow-ups after stock changes.
type JobsPort interface {
	EnqueueLowStockScan(ctx context.Context, productIDs []int64) error
}

// CachePort drops cached read models that a stock mutation made stale.
type CachePort interface {
	Invalidate(ctx context.Context, keys ...string) error
}

// Cache keys for the stock-levels read model served by the handler.
const (
	CacheKeyLevelsAll   = "stock:levels:all"
	CacheKeyLevelsBelow = "stock:levels:below"
)

// Service applies and reverses stock deltas. All product stock writes in the
// system flow through here.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	jobs      JobsPort
	cache     CachePort
	validator Validator
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowBackorder bool
}

// NewService builds Service. audit, jobs and cache may be nil.
func NewService(repo RepositoryPort, audit AuditPort, jobs JobsPort, cache CachePort, cfg ServiceConfig) *Service {
	return &Service{
		repo:      repo,
		audit:     audit,
		jobs:      jobs,
		cache:     cache,
		validator: Validator{AllowBackorder: cfg.AllowBackorder},
	}
}

// Apply writes all deltas for a document as one atomic unit in its own
// transaction. Either every product's stock is updated and an entry recorded
// per line, or nothing is.
func (s *Service) Apply(ctx context.Context, doc DocumentRef, deltas []Delta, actorID int64) (MutationResult, error) {
	var result MutationResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.ApplyTx(ctx, tx, doc, deltas, actorID)
		return err
	})
	if err != nil {
		return MutationResult{}, err
	}
	s.Applied(ctx, doc, deltas, actorID)
	return result, nil
}

// ApplyTx is the transactional core of Apply. Document services call it from
// inside their own transaction so parent rows, line rows and stock deltas
// commit or fail together. The caller must invoke Applied after its commit.
func (s *Service) ApplyTx(ctx context.Context, tx TxRepository, doc DocumentRef, deltas []Delta, actorID int64) (MutationResult, error) {
	if doc.ID <= 0 || doc.Type == "" {
		return MutationResult{}, fmt.Errorf("ledger: document reference required")
	}
	if len(deltas) == 0 {
		return MutationResult{}, fmt.Errorf("ledger: at least one delta required")
	}

	applied, err := tx.HasActiveEntries(ctx, doc)
	if err != nil {
		return MutationResult{}, err
	}
	if applied {
		return MutationResult{}, fmt.Errorf("%w %s:%d", ErrAlreadyApplied, doc.Type, doc.ID)
	}

	// Lock products in a deterministic order so two concurrent batches can
	// never deadlock each other, then validate every line before any write.
	order := make([]int, len(deltas))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return deltas[order[a]].ProductID < deltas[order[b]].ProductID
	})

	initial := make(map[int64]float64, len(deltas))
	running := make(map[int64]float64, len(deltas))
	for _, i := range order {
		d := deltas[i]
		stock, locked := running[d.ProductID]
		if !locked {
			var exists bool
			var err error
			stock, exists, err = tx.GetProductStockForUpdate(ctx, d.ProductID)
			if err != nil {
				return MutationResult{}, &MutationError{Reason: err.Error(), FailingLine: i, ProductID: d.ProductID, Err: err}
			}
			if err := s.validator.Check(d, exists, stock); err != nil {
				return MutationResult{}, err
			}
			initial[d.ProductID] = stock
		} else if err := s.validator.Check(d, true, stock); err != nil {
			return MutationResult{}, err
		}
		running[d.ProductID] = stock + d.Qty
	}

	// All lines validated against locked rows; now write in document order.
	now := time.Now().UTC()
	result := MutationResult{Entries: make([]Entry, 0, len(deltas))}
	balance := make(map[int64]float64, len(initial))
	for pid, stock := range initial {
		balance[pid] = stock
	}
	for i, d := range deltas {
		after := balance[d.ProductID] + d.Qty
		balance[d.ProductID] = after

		entry := Entry{
			DocumentType: doc.Type,
			DocumentID:   doc.ID,
			DocumentCode: doc.Code,
			ProductID:    d.ProductID,
			WarehouseID:  d.WarehouseID,
			Qty:          d.Qty,
			BalanceAfter: after,
			PostedAt:     now,
			ActorID:      actorID,
		}
		id, err := tx.InsertEntry(ctx, entry)
		if err != nil {
			return MutationResult{}, &MutationError{Reason: err.Error(), FailingLine: i, ProductID: d.ProductID, Err: err}
		}
		entry.ID = id
		result.Entries = append(result.Entries, entry)
	}
	for pid, stock := range running {
		if err := tx.UpdateProductStock(ctx, pid, stock); err != nil {
			return MutationResult{}, &MutationError{Reason: err.Error(), ProductID: pid, Err: err}
		}
	}
	return result, nil
}

// Reverse negates every active entry for the document and marks them
// reversed, returning each affected product's stock to its pre-apply value.
// A document with no active entries is a no-op.
func (s *Service) Reverse(ctx context.Context, doc DocumentRef, actorID int64) error {
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reversed, err = s.ReverseTx(ctx, tx, doc)
		return err
	})
	if err != nil {
		return err
	}
	if reversed {
		s.Reversed(ctx, doc, actorID)
	}
	return nil
}

// ReverseTx is the transactional core of Reverse. It reports whether any
// entries were actually reversed.
func (s *Service) ReverseTx(ctx context.Context, tx TxRepository, doc DocumentRef) (bool, error) {
	entries, err := tx.ActiveEntries(ctx, doc)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return false, nil
	}

	totals := make(map[int64]float64)
	pids := make([]int64, 0, len(entries))
	for _, e := range entries {
		if _, ok := totals[e.ProductID]; !ok {
			pids = append(pids, e.ProductID)
		}
		totals[e.ProductID] += e.Qty
	}
	sort.Slice(pids, func(a, b int) bool { return pids[a] < pids[b] })

	for _, pid := range pids {
		stock, exists, err := tx.GetProductStockForUpdate(ctx, pid)
		if err != nil {
			return false, &MutationError{Reason: err.Error(), ProductID: pid, Err: err}
		}
		if !exists {
			return false, &MutationError{Reason: "product missing during reversal", ProductID: pid}
		}
		if err := tx.UpdateProductStock(ctx, pid, stock-totals[pid]); err != nil {
			return false, &MutationError{Reason: err.Error(), ProductID: pid, Err: err}
		}
	}
	if err := tx.MarkReversed(ctx, doc); err != nil {
		return false, err
	}
	return true, nil
}

// Applied runs post-commit bookkeeping: the audit record and, when stock
// decreased, a low-stock scan for the touched products.
func (s *Service) Applied(ctx context.Context, doc DocumentRef, deltas []Delta, actorID int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, CacheKeyLevelsAll, CacheKeyLevelsBelow)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   fmt.Sprintf("ledger:apply:%s", doc.Type),
			Entity:   "stock_entries",
			EntityID: fmt.Sprintf("%s:%d", doc.Type, doc.ID),
			Meta:     map[string]any{"code": doc.Code, "lines": len(deltas)},
		})
	}
	if s.jobs == nil {
		return
	}
	var decreased []int64
	for _, d := range deltas {
		if d.Qty < 0 {
			decreased = append(decreased, d.ProductID)
		}
	}
	if len(decreased) > 0 {
		_ = s.jobs.EnqueueLowStockScan(ctx, decreased)
	}
}

// Reversed drops the stale stock-levels cache and records the audit trail
// for a reversal.
func (s *Service) Reversed(ctx context.Context, doc DocumentRef, actorID int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, CacheKeyLevelsAll, CacheKeyLevelsBelow)
	}
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   fmt.Sprintf("ledger:reverse:%s", doc.Type),
		Entity:   "stock_entries",
		EntityID: fmt.Sprintf("%s:%d", doc.Type, doc.ID),
		Meta:     map[string]any{"code": doc.Code},
	})
}

// StockCard lists ledger entries with display joins.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]StockCardRow, int, error) {
	if filter.Limit <= 0 {
		filter.Limit = shared.DefaultPerPage
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	return s.repo.StockCard(ctx, filter)
}

// StockLevels lists products against their alert thresholds.
func (s *Service) StockLevels(ctx context.Context, belowAlertOnly bool) ([]StockLevel, error) {
	return s.repo.StockLevels(ctx, belowAlertOnly)
}
