// Package adjustments posts manual stock corrections. An adjustment applies
// its deltas the moment it is created; deleting one reverses them first.
package adjustments

import "time"

type Adjustment struct {
	ID            int64     `json:"id"`
	Code          string    `json:"code"`
	WarehouseID   int64     `json:"warehouse_id"`
	WarehouseName string    `json:"warehouse_name,omitempty"`
	Date          time.Time `json:"date"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     int64     `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type Line struct {
	ID           int64   `json:"id"`
	AdjustmentID int64   `json:"adjustment_id"`
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name,omitempty"`
	Qty          float64 `json:"qty"`
	Notes        string  `json:"notes,omitempty"`
}

// AdjustmentWithLines is the detail view.
type AdjustmentWithLines struct {
	Adjustment
	Lines []Line `json:"items"`
}

type CreateLineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
	Type      string  `json:"type" validate:"required,oneof=add subtract"`
	Notes     string  `json:"notes,omitempty"`
}

type CreateAdjustmentRequest struct {
	WarehouseID int64               `json:"warehouse_id" validate:"required,gt=0"`
	Date        string              `json:"date" validate:"required"`
	Notes       string              `json:"notes,omitempty"`
	Items       []CreateLineRequest `json:"items" validate:"required,min=1,dive"`
}

// ListFilters narrows adjustment listings.
type ListFilters struct {
	WarehouseID int64
	Date        time.Time
	Page        int
	Limit       int
}
