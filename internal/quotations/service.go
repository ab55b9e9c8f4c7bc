package quotations

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/sales"
	"github.com/stockroom-erp/stockroom/internal/sales/money"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

const dateLayout = "2006-01-02"

// SalesPort is the slice of the sales service conversion needs.
type SalesPort interface {
	Create(ctx context.Context, req sales.CreateSaleRequest, idemKey string, actorID int64) (sales.SaleWithLines, error)
}

type Service struct {
	repo  Repository
	sales SalesPort
	codes shared.CodeIssuer
}

func NewService(repo Repository, salesSvc SalesPort, codes shared.CodeIssuer) *Service {
	return &Service{repo: repo, sales: salesSvc, codes: codes}
}

func (s *Service) Create(ctx context.Context, req CreateQuotationRequest, actorID int64) (QuotationWithLines, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return QuotationWithLines{}, err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return QuotationWithLines{}, fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}

	code, err := s.codes.Next(ctx, shared.PrefixQuotation)
	if err != nil {
		return QuotationWithLines{}, err
	}

	totals := money.Compute(req.moneyLines(), req.TaxRate, req.Discount, req.Shipping)
	result := QuotationWithLines{
		Quotation: Quotation{
			Code:        code,
			CustomerID:  req.CustomerID,
			WarehouseID: req.WarehouseID,
			Date:        date,
			Status:      StatusOpen,
			Subtotal:    totals.Subtotal,
			TaxRate:     totals.TaxRate,
			TaxAmount:   totals.TaxAmount,
			Discount:    totals.Discount,
			Shipping:    totals.Shipping,
			GrandTotal:  totals.GrandTotal,
			Notes:       req.Notes,
			CreatedBy:   actorID,
			CreatedAt:   time.Now().UTC(),
		},
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertQuotation(ctx, result.Quotation)
		if err != nil {
			return err
		}
		result.ID = id
		for _, item := range req.Items {
			line := Line{
				QuotationID: id,
				ProductID:   item.ProductID,
				Qty:         item.Quantity,
				UnitPrice:   item.UnitPrice,
				Discount:    item.Discount,
				Tax:         item.Tax,
				Total:       money.LineTotal(money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}),
			}
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
		return QuotationWithLines{}, err
	}
	return result, nil
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Quotation, int, error) {
	if filters.Page < 1 {
		filters.Page = 1
	}
	if filters.Limit < 1 || filters.Limit > 100 {
		filters.Limit = 10
	}
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (QuotationWithLines, error) {
	if id <= 0 {
		return QuotationWithLines{}, fmt.Errorf("%w: invalid quotation id", httpx.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Update recomputes totals and replaces the lines. Converted quotations are
// frozen; the sale owns the figures from conversion on.
func (s *Service) Update(ctx context.Context, id int64, req UpdateQuotationRequest, actorID int64) error {
	if err := shared.ValidateStruct(req); err != nil {
		return err
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", httpx.ErrValidation)
	}
	totals := money.Compute(req.moneyLines(), req.TaxRate, req.Discount, req.Shipping)

	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != StatusOpen {
			return fmt.Errorf("%w: quotation %s is %s", httpx.ErrInvalidTransition, q.Code, q.Status)
		}

		q.CustomerID = req.CustomerID
		q.WarehouseID = req.WarehouseID
		q.Date = date
		q.Subtotal = totals.Subtotal
		q.TaxRate = totals.TaxRate
		q.TaxAmount = totals.TaxAmount
		q.Discount = totals.Discount
		q.Shipping = totals.Shipping
		q.GrandTotal = totals.GrandTotal
		q.Notes = req.Notes
		if err := tx.UpdateHeader(ctx, q); err != nil {
			return err
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		for _, item := range req.Items {
			line := Line{
				QuotationID: id,
				ProductID:   item.ProductID,
				Qty:         item.Quantity,
				UnitPrice:   item.UnitPrice,
				Discount:    item.Discount,
				Tax:         item.Tax,
				Total:       money.LineTotal(money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}),
			}
			if _, err := tx.InsertLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: invalid quotation id", httpx.ErrValidation)
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		q, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status == StatusConverted {
			return fmt.Errorf("%w: quotation %s was converted to a sale", httpx.ErrInvalidTransition, q.Code)
		}
		if err := tx.DeleteLines(ctx, id); err != nil {
			return err
		}
		return tx.DeleteQuotation(ctx, id)
	})
}

// Convert turns an open quotation into a completed sale. The quotation is
// marked converted under its row lock before the sale is posted, so a second
// concurrent convert observes converted and fails; if posting the sale then
// fails the status flips back.
func (s *Service) Convert(ctx context.Context, id int64, actorID int64) (sales.SaleWithLines, error) {
	if id <= 0 {
		return sales.SaleWithLines{}, fmt.Errorf("%w: invalid quotation id", httpx.ErrValidation)
	}

	var (
		q     Quotation
		lines []Line
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		q, err = tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != StatusOpen {
			return fmt.Errorf("%w: quotation %s is %s", httpx.ErrInvalidTransition, q.Code, q.Status)
		}
		lines, err = tx.Lines(ctx, id)
		if err != nil {
			return err
		}
		return tx.SetConverted(ctx, id, 0)
	})
	if err != nil {
		return sales.SaleWithLines{}, err
	}

	saleReq := sales.CreateSaleRequest{
		CustomerID:  q.CustomerID,
		WarehouseID: q.WarehouseID,
		Date:        time.Now().UTC().Format(dateLayout),
		TaxRate:     q.TaxRate,
		Discount:    q.Discount,
		Shipping:    q.Shipping,
		Notes:       fmt.Sprintf("converted from quotation %s", q.Code),
		Items:       make([]sales.LineRequest, len(lines)),
	}
	for i, l := range lines {
		saleReq.Items[i] = sales.LineRequest{
			ProductID: l.ProductID,
			Quantity:  l.Qty,
			UnitPrice: l.UnitPrice,
			Discount:  l.Discount,
			Tax:       l.Tax,
		}
	}

	// Deterministic key: a convert retried after a crash between the sale
	// insert and the link update cannot create a second sale.
	convertKey := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("QT:%d", q.ID))).String()

	sale, err := s.sales.Create(ctx, saleReq, convertKey, actorID)
	if err != nil {
		revertErr := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			return tx.SetStatus(ctx, id, StatusOpen)
		})
		if revertErr != nil {
			return sales.SaleWithLines{}, fmt.Errorf("convert failed (%w) and status revert failed: %v", err, revertErr)
		}
		return sales.SaleWithLines{}, err
	}

	if err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.SetConverted(ctx, id, sale.ID)
	}); err != nil {
		return sale, err
	}
	return sale, nil
}
