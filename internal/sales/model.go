// Package sales is the point-of-sale surface. A sale is completed the moment
// it is posted: totals are computed server-side and stock is deducted in the
// same transaction.
package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-erp/stockroom/internal/sales/money"
)

// PaymentStatus tracks settlement, not lifecycle; a sale's stock effect does
// not depend on it.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "paid"
	PaymentUnpaid PaymentStatus = "unpaid"
)

type Sale struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name,omitempty"`
	Date          time.Time       `json:"date"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

type Line struct {
	ID          int64           `json:"id"`
	SaleID      int64           `json:"sale_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         float64         `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type SaleWithLines struct {
	Sale
	Lines []Line `json:"items"`
}

type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  float64         `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
}

type CreateSaleRequest struct {
	CustomerID    int64           `json:"customer_id" validate:"required,gt=0"`
	WarehouseID   int64           `json:"warehouse_id" validate:"required,gt=0"`
	Date          string          `json:"date" validate:"required"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	PaymentStatus PaymentStatus   `json:"payment_status" validate:"omitempty,oneof=paid unpaid"`
	Notes         string          `json:"notes,omitempty"`
	Items         []LineRequest   `json:"items" validate:"required,min=1,dive"`
}

type UpdateSaleRequest = CreateSaleRequest

func (r CreateSaleRequest) moneyLines() []money.LineInput {
	lines := make([]money.LineInput, len(r.Items))
	for i, item := range r.Items {
		lines[i] = money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}
	}
	return lines
}

type ListFilters struct {
	CustomerID  int64
	WarehouseID int64
	Page        int
	Limit       int
}
