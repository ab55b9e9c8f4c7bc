package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/sales/money"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

const dateLayout = "2006-01-02"

type Service struct {
	repo   Repository
	ledger *ledger.Service
	codes  shared.CodeIssuer
	idem   *shared.IdempotencyStore
}

// NewService builds the sales service. idem may be nil.
func NewService(repo Repository, ledgerSvc *ledger.Service, codes shared.CodeIssuer, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, ledger: ledgerSvc, codes: codes, idem: idem}
}

// Create posts a completed sale: totals are recomputed from the lines and the
// sold quantities are deducted in the same transaction, so a sale that would
// oversell rolls back entirely.
func (s *Service) Create(ctx context.Context, req CreateSaleRequest, idemKey string, actorID int64) (SaleWithLines, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return SaleWithLines{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return SaleWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	if req.Discount.IsNegative() || req.Shipping.IsNegative() || req.TaxRate.IsNegative() {
		return SaleWithLines{}, fmt.Errorf("%w: tax_rate, discount and shipping must not be negative", httpx.ErrValidation)
	}

	if s.idem != nil && idemKey != "" {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "sales"); err != nil {
			return SaleWithLines{}, err
		}
	}

	code, err := s.codes.Next(ctx, shared.PrefixSale)
	if err != nil {
		return SaleWithLines{}, err
	}

	totals := money.Compute(req.moneyLines(), req.TaxRate, req.Discount, req.Shipping)
	payment := req.PaymentStatus
	if payment == "" {
		payment = PaymentPaid
	}

	deltas := make([]ledger.Delta, len(req.Items))
	for i, item := range req.Items {
		deltas[i] = ledger.Delta{ProductID: item.ProductID, WarehouseID: req.WarehouseID, Qty: -item.Quantity}
	}

	result := SaleWithLines{
		Sale: Sale{
			Code:          code,
			CustomerID:    req.CustomerID,
			WarehouseID:   req.WarehouseID,
			Date:          date,
			Subtotal:      totals.Subtotal,
			TaxRate:       totals.TaxRate,
			TaxAmount:     totals.TaxAmount,
			Discount:      totals.Discount,
			Shipping:      totals.Shipping,
			GrandTotal:    totals.GrandTotal,
			PaymentStatus: payment,
			Notes:         req.Notes,
			CreatedBy:     actorID,
			CreatedAt:     time.Now().UTC(),
		},
	}
	doc := ledger.DocumentRef{Type: ledger.DocSale, Code: code}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertSale(ctx, result.Sale)
		if err != nil {
			return err
		}
		result.ID = id
		doc.ID = id

		for _, item := range req.Items {
			line := Line{
				SaleID:    id,
				ProductID: item.ProductID,
				Qty:       item.Quantity,
				UnitPrice: item.UnitPrice,
				Discount:  item.Discount,
				Tax:       item.Tax,
				Total:     money.LineTotal(money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}),
			}
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
		if s.idem != nil && idemKey != "" {
			_ = s.idem.Delete(ctx, idemKey)
		}
		return SaleWithLines{}, err
	}
	s.ledger.Applied(ctx, doc, deltas, actorID)
	return result, nil
}

// Update edits a posted sale by reversing its deltas and reapplying the new
// ones in one transaction, never re-deltaing in place. Sales with returns
// against them are frozen.
func (s *Service) Update(ctx context.Context, id int64, req UpdateSaleRequest, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid sale id", httpx.ErrValidation)
	}
	if err := shared.ValidateStruct(req); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	if req.Discount.IsNegative() || req.Shipping.IsNegative() || req.TaxRate.IsNegative() {
		return fmt.Errorf("%w: tax_rate, discount and shipping must not be negative", httpx.ErrValidation)
	}

	totals := money.Compute(req.moneyLines(), req.TaxRate, req.Discount, req.Shipping)
	payment := req.PaymentStatus
	if payment == "" {
		payment = PaymentPaid
	}

	deltas := make([]ledger.Delta, len(req.Items))
	for i, item := range req.Items {
		deltas[i] = ledger.Delta{ProductID: item.ProductID, WarehouseID: req.WarehouseID, Qty: -item.Quantity}
	}

	var doc ledger.DocumentRef
	reversed := false
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		hasReturns, err := tx.HasReturns(ctx, id)
		if err != nil {
			return err
		}
		if hasReturns {
			return fmt.Errorf("%w: sale %s has returns against it", httpx.ErrInvalidTransition, sale.Code)
		}
		doc = ledger.DocumentRef{Type: ledger.DocSale, ID: sale.ID, Code: sale.Code}

		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}

		sale.CustomerID = req.CustomerID
		sale.WarehouseID = req.WarehouseID
		sale.Date = date
		sale.Subtotal = totals.Subtotal
		sale.TaxRate = totals.TaxRate
		sale.TaxAmount = totals.TaxAmount
		sale.Discount = totals.Discount
		sale.Shipping = totals.Shipping
		sale.GrandTotal = totals.GrandTotal
		sale.PaymentStatus = payment
		sale.Notes = req.Notes
		if err := tx.UpdateHeader(ctx, sale); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		for _, item := range req.Items {
			line := Line{
				SaleID:    id,
				ProductID: item.ProductID,
				Qty:       item.Quantity,
				UnitPrice: item.UnitPrice,
				Discount:  item.Discount,
				Tax:       item.Tax,
				Total:     money.LineTotal(money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}),
			}
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}

		_, err = s.ledger.ApplyTx(ctx, tx.Ledger(), doc, deltas, actorID)
		return err
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	s.ledger.Applied(ctx, doc, deltas, actorID)
	return nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Sale, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (SaleWithLines, error) {
	if id <= 0 {
		return SaleWithLines{}, fmt.Errorf("%w: invalid sale id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Delete restores the sold stock and removes the document. A sale that
// already has a sales return against it cannot be deleted; the return must
// go first or the reversal would double-count.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid sale id", httpx.ErrValidation)
	}
	var doc ledger.DocumentRef
	reversed := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		hasReturns, err := tx.HasReturns(ctx, id)
		if err != nil {
			return err
		}
		if hasReturns {
			return fmt.Errorf("%w: sale %s has returns against it", httpx.ErrInvalidTransition, sale.Code)
		}
		doc = ledger.DocumentRef{Type: ledger.DocSale, ID: sale.ID, Code: sale.Code}
		reversed, err = s.ledger.ReverseTx(ctx, tx.Ledger(), doc)
		if err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}
	if reversed {
		s.ledger.Reversed(ctx, doc, actorID)
	}
	return nil
}
