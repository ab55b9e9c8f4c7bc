// Package purchases manages supplier purchase documents. A purchase is
// created pending and only touches stock when it transitions to received;
// moving back off received reverses the applied deltas.
package purchases

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the purchase lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

type Purchase struct {
	ID            int64           `json:"id"`
	Code          string          `json:"code"`
	SupplierID    int64           `json:"supplier_id"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	WarehouseID   int64           `json:"warehouse_id"`
	WarehouseName string          `json:"warehouse_name,omitempty"`
	Date          time.Time       `json:"date"`
	Status        Status          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	Total         decimal.Decimal `json:"total"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Line struct {
	ID          int64           `json:"id"`
	PurchaseID  int64           `json:"purchase_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name,omitempty"`
	Qty         float64         `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Total       decimal.Decimal `json:"total"`
}

type PurchaseWithLines struct {
	Purchase
	Lines []Line `json:"items"`
}

type LineRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  float64         `json:"quantity" validate:"required,gt=0"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type CreatePurchaseRequest struct {
	SupplierID  int64         `json:"supplier_id" validate:"required,gt=0"`
	WarehouseID int64         `json:"warehouse_id" validate:"required,gt=0"`
	Date        string        `json:"date" validate:"required"`
	Notes       string        `json:"notes,omitempty"`
	Items       []LineRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdatePurchaseRequest replaces the header fields and lines of a pending
// purchase.
type UpdatePurchaseRequest = CreatePurchaseRequest

type UpdateStatusRequest struct {
	Status Status `json:"status" validate:"required,oneof=pending received cancelled"`
}

type ListFilters struct {
	SupplierID  int64
	WarehouseID int64
	Status      Status
	Page        int
	Limit       int
}
