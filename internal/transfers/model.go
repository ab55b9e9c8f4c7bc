// Package transfers moves stock between warehouses. Each line posts two
// ledger legs, a decrement at the source and an increment at the destination,
// so the product's net stock is unchanged while the movement stays auditable.
package transfers

import "time"

type Transfer struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	SourceID        int64     `json:"source_warehouse_id"`
	SourceName      string    `json:"source_warehouse_name,omitempty"`
	DestinationID   int64     `json:"destination_warehouse_id"`
	DestinationName string    `json:"destination_warehouse_name,omitempty"`
	Date            time.Time `json:"date"`
	Notes           string    `json:"notes,omitempty"`
	CreatedBy       int64     `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

type Line struct {
	ID          int64   `json:"id"`
	TransferID  int64   `json:"transfer_id"`
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name,omitempty"`
	Qty         float64 `json:"qty"`
}

type TransferWithLines struct {
	Transfer
	Lines []Line `json:"items"`
}

type LineRequest struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	Quantity  float64 `json:"quantity" validate:"required,gt=0"`
}

type CreateTransferRequest struct {
	SourceWarehouseID      int64         `json:"source_warehouse_id" validate:"required,gt=0"`
	DestinationWarehouseID int64         `json:"destination_warehouse_id" validate:"required,gt=0"`
	Date                   string        `json:"date" validate:"required"`
	Notes                  string        `json:"notes,omitempty"`
	Items                  []LineRequest `json:"items" validate:"required,min=1,dive"`
}

type ListFilters struct {
	WarehouseID int64
	Page        int
	Limit       int
}
