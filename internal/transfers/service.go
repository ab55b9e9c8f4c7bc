package transfers

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

// Create posts the transfer immediately. The outbound leg is validated like
// any other decrement, so a transfer cannot pull more than the product holds.
func (s *Service) Create(ctx context.Context, req CreateTransferRequest, actorID int64) (TransferWithLines, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return TransferWithLines{}, err
	}
	if req.SourceWarehouseID == req.DestinationWarehouseID {
		return TransferWithLines{}, fmt.Errorf("%w: source and destination warehouses must differ", httpx.ErrValidation)
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return TransferWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}

	code, err := s.codes.Next(ctx, shared.PrefixTransfer)
	if err != nil {
		return TransferWithLines{}, err
	}

	deltas := make([]ledger.Delta, 0, 2*len(req.Items))
	for _, item := range req.Items {
		deltas = append(deltas,
			ledger.Delta{ProductID: item.ProductID, WarehouseID: req.SourceWarehouseID, Qty: -item.Quantity},
			ledger.Delta{ProductID: item.ProductID, WarehouseID: req.DestinationWarehouseID, Qty: item.Quantity},
		)
	}

	result := TransferWithLines{
		Transfer: Transfer{
			Code:          code,
			SourceID:      req.SourceWarehouseID,
			DestinationID: req.DestinationWarehouseID,
			Date:          date,
			Notes:         req.Notes,
			CreatedBy:     actorID,
			CreatedAt:     time.Now().UTC(),
		},
	}
	doc := ledger.DocumentRef{Type: ledger.DocTransfer, Code: code}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertTransfer(ctx, result.Transfer)
		if err != nil {
			return err
		}
		result.ID = id
		doc.ID = id

		for _, item := range req.Items {
			line := Line{TransferID: id, ProductID: item.ProductID, Qty: item.Quantity}
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
		return TransferWithLines{}, err
	}
	s.ledger.Applied(ctx, doc, deltas, actorID)
	return result, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Transfer, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (TransferWithLines, error) {
	if id <= 0 {
		return TransferWithLines{}, fmt.Errorf("%w: invalid transfer id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid transfer id", httpx.ErrValidation)
	}
	var doc ledger.DocumentRef
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		tr, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		doc = ledger.DocumentRef{Type: ledger.DocTransfer, ID: tr.ID, Code: tr.Code}
		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}
		return tx.DeleteTransfer(ctx, id)
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}
