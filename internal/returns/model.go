// Package returns handles both return flows. A sales return puts sold goods
// back into stock; a purchase return ships received goods back to the
// supplier and deducts them. Both apply their deltas on creation.
package returns

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the two return flows.
type Kind string

const (
	KindSales    Kind = "sales"
	KindPurchase Kind = "purchase"
)

type Return struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	Kind          Kind      `json:"kind"`
	DocumentID    int64     `json:"document_id"`
	WarehouseID   int64     `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name,omitempty"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type Line struct {
	ID          int64           `json:"id"`
	ReturnID    int64           `json:"return_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         float64         `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type ReturnWithLines struct {
	Return
	Lines []Line `json:"items"`
}

type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  float64         `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CreateReturnRequest struct {
	DocumentID  int64         `json:"document_id" validate:"required,gt=0"`
	WarehouseID int64         `json:"warehouse_id" validate:"required,gt=0"`
	Date        string        `json:"date" validate:"required"`
	Notes       string        `json:"notes,omitempty"`
	Items       []LineRequest `json:"items" validate:"required,min=1,dive"`
}

type ListFilters struct {
	Kind        Kind
	WarehouseID int64
	Page        int
	Limit       int
}
