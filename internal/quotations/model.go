// Package quotations manages price quotes. Quotations never touch stock; a
// quote becomes binding only when converted into a sale.
package quotations

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockroom-erp/stockroom/internal/sales/money"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusConverted Status = "converted"
)

type Quotation struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	CustomerID    int64           `json:"customer_id"`
	CustomerName  string          `json:"customer_name,omitempty"`
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name,omitempty"`
	Date          time.Time       `json:"date"`
	Status        Status          `json:"status"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	SaleID        int64           `json:"sale_id,omitempty"`
	Notes         string          `json:"notes,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Line struct {
	ID          int64           `json:"id"`
	QuotationID int64           `json:"quotation_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         float64         `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type QuotationWithLines struct {
	Quotation
	Lines []Line `json:"items"`
}

type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  float64         `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	Tax       decimal.Decimal `json:"tax"`
}

type CreateQuotationRequest struct {
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	WarehouseID int64           `json:"warehouse_id" validate:"required,gt=0"`
	Date        string          `json:"date" validate:"required"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Discount    decimal.Decimal `json:"discount"`
	Shipping    decimal.Decimal `json:"shipping"`
	Notes       string          `json:"notes,omitempty"`
	Items       []LineRequest   `json:"items" validate:"required,min=1,dive"`
}

type UpdateQuotationRequest = CreateQuotationRequest

func (r CreateQuotationRequest) moneyLines() []money.LineInput {
	lines := make([]money.LineInput, len(r.Items))
	for i, item := range r.Items {
		lines[i] = money.LineInput{Qty: item.Quantity, UnitPrice: item.UnitPrice, Discount: item.Discount, Tax: item.Tax}
	}
	return lines
}

type ListFilters struct {
	CustomerID int64
	Status     Status
	Page       int
	Limit      int
}
