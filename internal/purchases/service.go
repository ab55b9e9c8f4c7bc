package purchases

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo   Repository
	ledger *ledger.Service
	codes  shared.CodeIssuer
	idem   *shared.IdempotencyStore
}

// NewService builds the purchase service. idem may be nil, in which case
// Idempotency-Key checks are skipped.
func NewService(repo Repository, ledgerSvc *ledger.Service, codes shared.CodeIssuer, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, codes: codes, idem: idem}
}

// Create records a pending purchase. No stock moves until the document is
// received.
func (s *Service) Create(ctx context.Context, req CreatePurchaseRequest, idemKey string, actorID int64) (PurchaseWithLines, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return PurchaseWithLines{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return PurchaseWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	lines, total, err := buildLines(req.Items)
	if err != nil {
		return PurchaseWithLines{}, err
	}

	if s.idem != nil && idemKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "purchases"); err != nil {
			return PurchaseWithLines{}, err
		}
	}

	code, err := s.codes.Next(ctx, shared.PrefixPurchase)
	if err != nil {
		return PurchaseWithLines{}, err
	}

	result := PurchaseWithLines{
		Purchase: Purchase{
			Code:        code,
			SupplierID:  req.SupplierID,
			WarehouseID: req.WarehouseID,
			Date:        date,
			Status:      StatusPending,
			Notes:       req.Notes,
			Total:       total,
			CreatedBy:   actorID,
			CreatedAt:   time.Now().UTC(),
		},
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertPurchase(ctx, result.Purchase)
		if err != nil {
			return err
		}
		result.ID = id
		for _, line := range lines {
			line.PurchaseID = id
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			result.Lines = append(result.Lines, line)
		}
		return nil
	})
	if err != nil {
		if s.idem != nil && idemKey != "" {
			_ = s.idem.Delete(ctx, idemKey)
		}
		return PurchaseWithLines{}, err
	}
	return result, nil
}

// UpdateStatus moves the purchase through its lifecycle under a row lock.
// Crossing onto received applies the deltas; crossing off reverses them.
// A same-status call is a no-op, so a retried transition changes nothing.
func (s *Service) UpdateStatus(ctx context.Context, id int64, next Status, actorID int64) error {
	if err := shared.ValidateStruct(UpdateStatusRequest{Status: next}); err != nil {
		return err
	}

	var (
		doc      ledger.DocumentRef
		deltas   []ledger.Delta
		applied  bool
		reversed bool
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status == next {
			return nil
		}
		if p.Status == StatusCancelled {
			return fmt.Errorf("%w: purchase %s is cancelled", httpx.ErrInvalidTransition, p.Code)
		}

		doc = ledger.DocumentRef{Type: ledger.DocPurchase, ID: p.ID, Code: p.Code}
		switch {
		case next == StatusReceived:
			lines, err := tx.Lines(ctx, id)
			if err != nil {
				return err
			}
			deltas = receiptDeltas(p.WarehouseID, lines)
			if _, err := s.ledger.ApplyTx(ctx, tx.Ledger(), doc, deltas, actorID); err != nil {
				return err
			}
			applied = true
		case p.Status == StatusReceived:
			reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
			if err != nil {
				return err
			}
		}
		return tx.SetStatus(ctx, id, next)
	})
	if err != nil {
		return err
	}
	if applied {
		s.ledger.Applied(ctx, doc, deltas, actorID)
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}

// Update replaces header and lines. Editing is only allowed while pending;
// a received purchase must be moved back first so its deltas get reversed
// rather than silently re-counted.
func (s *Service) Update(ctx context.Context, id int64, req UpdatePurchaseRequest, actorID int64) error {
	if err := shared.ValidateStruct(req); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	lines, total, err := buildLines(req.Items)
	if err != nil {
		return err
	}

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusPending {
			return fmt.Errorf("%w: purchase %s is %s, only pending purchases can be edited", httpx.ErrInvalidTransition, p.Code, p.Status)
		}

		p.SupplierID = req.SupplierID
		p.WarehouseID = req.WarehouseID
		p.Date = date
		p.Notes = req.Notes
		p.Total = total
		if err := tx.UpdateHeader(ctx, p); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		for _, line := range lines {
			line.PurchaseID = id
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete reverses any applied deltas, then removes lines and parent.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid purchase id", httpx.ErrValidation)
	}
	var doc ledger.DocumentRef
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		doc = ledger.DocumentRef{Type: ledger.DocPurchase, ID: p.ID, Code: p.Code}
		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Purchase, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (PurchaseWithLines, error) {
	if id <= 0 {
		return PurchaseWithLines{}, fmt.Errorf("%w: invalid purchase id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func buildLines(items []LineRequest) ([]Line, decimal.Decimal, error) {
	lines := make([]Line, len(items))
	total := decimal.Zero
	for i, item := range items {
		if item.UnitCost.IsNegative() {
			return nil, decimal.Zero, fmt.Errorf("%w: unit_cost must not be negative", httpx.ErrValidation)
		}
		lineTotal := item.UnitCost.Mul(decimal.NewFromFloat(item.Quantity)).Round(2)
		lines[i] = Line{ProductID: item.ProductID, Qty: item.Quantity, UnitCost: item.UnitCost, Total: lineTotal}
		total = total.Add(lineTotal)
	}
	return lines, total, nil
}

func receiptDeltas(warehouseID int64, lines []Line) []ledger.Delta {
	deltas := make([]ledger.Delta, len(lines))
	for i, l := range lines {
		deltas[i] = ledger.Delta{ProductID: l.ProductID, WarehouseID: warehouseID, Qty: l.Qty}
	}
	return deltas
}
