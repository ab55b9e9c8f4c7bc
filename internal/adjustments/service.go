package adjustments

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo   Repository
	ledger *ledger.Service
	codes  shared.CodeIssuer
}

func NewService(repo Repository, ledgerSvc *ledger.Service, codes shared.CodeIssuer) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, codes: codes}
}

// Create validates the request, writes the document and applies its deltas in
// one transaction. The line type maps to the delta sign: add raises stock,
// subtract lowers it.
func (s *Service) Create(ctx context.Context, req CreateAdjustmentRequest, actorID int64) (AdjustmentWithLines, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return AdjustmentWithLines{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return AdjustmentWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}

	code, err := s.codes.Next(ctx, shared.PrefixAdjustment)
	if err != nil {
		return AdjustmentWithLines{}, err
	}

	deltas := make([]ledger.Delta, len(req.Items))
	for i, item := range req.Items {
		qty := item.Quantity
		if item.Type == "subtract" {
			qty = -qty
		}
		deltas[i] = ledger.Delta{ProductID: item.ProductID, WarehouseID: req.WarehouseID, Qty: qty}
	}

	result := AdjustmentWithLines{
		Adjustment: Adjustment{
			Code:        code,
			WarehouseID: req.WarehouseID,
			Date:        date,
			Notes:       req.Notes,
			CreatedBy:   actorID,
			CreatedAt:   time.Now().UTC(),
		},
	}
	doc := ledger.DocumentRef{Type: ledger.DocAdjustment, Code: code}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertAdjustment(ctx, result.Adjustment)
		if err != nil {
			return err
		}
		result.ID = id
		doc.ID = id

		for i, item := range req.Items {
			line := Line{AdjustmentID: id, ProductID: item.ProductID, Qty: deltas[i].Qty, Notes: item.Notes}
			lineID, err := tx.InsertLine(ctx, line)
			if err != nil {
				return err
			}
			line.ID = lineID
			result.Lines = append(result.Lines, line)
		}

		_, err = s.ledger.ApplyTx(ctx, tx.Ledger(), doc, deltas, actorID)
		return err
	})
	if err != nil {
		return AdjustmentWithLines{}, err
	}
	s.ledger.Applied(ctx, doc, deltas, actorID)
	return result, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Adjustment, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (AdjustmentWithLines, error) {
	if id <= 0 {
		return AdjustmentWithLines{}, fmt.Errorf("%w: invalid adjustment id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Delete reverses the adjustment's deltas, then removes lines and parent in
// the same transaction.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid adjustment id", httpx.ErrValidation)
	}
	var doc ledger.DocumentRef
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		adj, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		doc = ledger.DocumentRef{Type: ledger.DocAdjustment, ID: adj.ID, Code: adj.Code}
		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}
		return tx.DeleteAdjustment(ctx, id)
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}
