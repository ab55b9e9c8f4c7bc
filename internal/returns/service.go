package returns

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

func docTypeFor(kind Kind) (ledger.DocumentType, string) {
	if kind == KindPurchase {
		return ledger.DocPurchaseReturn, shared.PrefixPurchaseReturn
	}
	return ledger.DocSalesReturn, shared.PrefixSalesReturn
}

// Create posts the return and applies its deltas at once. Sales returns add
// stock back; purchase returns deduct, so they are validated against the
// current level like any other decrement.
func (s *Service) Create(ctx context.Context, kind Kind, req CreateReturnRequest, actorID int64) (ReturnWithLines, error) {
	if kind != KindSales && kind != KindPurchase {
		return ReturnWithLines{}, fmt.Errorf("%w: unknown return kind %q", httpx.ErrValidation, kind)
	}
	if err := shared.ValidateStruct(req); err != nil {
		return ReturnWithLines{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return ReturnWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}

	docType, prefix := docTypeFor(kind)
	code, err := s.codes.Next(ctx, prefix)
	if err != nil {
		return ReturnWithLines{}, err
	}

	sign := 1.0
	if kind == KindPurchase {
		sign = -1.0
	}
	deltas := make([]ledger.Delta, len(req.Items))
	for i, item := range req.Items {
		deltas[i] = ledger.Delta{ProductID: item.ProductID, WarehouseID: req.WarehouseID, Qty: sign * item.Quantity}
	}

	result := ReturnWithLines{
		Return: Return{
			Code:        code,
			Kind:        kind,
			DocumentID:  req.DocumentID,
			WarehouseID: req.WarehouseID,
			Date:        date,
			Notes:       req.Notes,
			CreatedBy:   actorID,
			CreatedAt:   time.Now().UTC(),
		},
	}
	doc := ledger.DocumentRef{Type: docType, Code: code}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exists, err := tx.DocumentExists(ctx, kind, req.DocumentID)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: referenced document %d", httpx.ErrNotFound, req.DocumentID)
		}

		id, err := tx.InsertReturn(ctx, result.Return)
		if err != nil {
			return err
		}
		result.ID = id
		doc.ID = id

		for i, item := range req.Items {
			line := Line{ReturnID: id, ProductID: item.ProductID, Qty: deltas[i].Qty, UnitPrice: item.UnitPrice}
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
		return ReturnWithLines{}, err
	}
	s.ledger.Applied(ctx, doc, deltas, actorID)
	return result, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Return, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (ReturnWithLines, error) {
	if id <= 0 {
		return ReturnWithLines{}, fmt.Errorf("%w: invalid return id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid return id", httpx.ErrValidation)
	}
	var doc ledger.DocumentRef
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ret, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		docType, _ := docTypeFor(ret.Kind)
		doc = ledger.DocumentRef{Type: docType, ID: ret.ID, Code: ret.Code}
		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}
		return tx.DeleteReturn(ctx, id)
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}
