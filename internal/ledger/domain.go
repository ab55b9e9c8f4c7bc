// Package ledger owns every write to product stock. Stock is a denormalized
// running total; the append-only stock_entries records are the source of truth
// that makes the total auditable and reversible.
package ledger

import (
	"fmt"
	"time"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
)

// DocumentType identifies the business document behind a stock mutation.
type DocumentType string

const (
	DocAdjustment     DocumentType = "ADJUSTMENT"
	DocPurchase       DocumentType = "PURCHASE"
	DocTransfer       DocumentType = "TRANSFER"
	DocSalesReturn    DocumentType = "SALES_RETURN"
	DocPurchaseReturn DocumentType = "PURCHASE_RETURN"
	DocSale           DocumentType = "SALE"
)

// DocumentRef names the document a batch of deltas belongs to.
type DocumentRef struct {
	Type DocumentType
	ID   int64
	Code string
}

// Delta is one signed stock change for a product. Positive increases stock.
type Delta struct {
	ProductID   int64
	WarehouseID int64
	Qty         float64
}

// Entry is an applied delta as persisted in stock_entries.
type Entry struct {
	ID           int64
	DocumentType DocumentType
	DocumentID   int64
	DocumentCode string
	ProductID    int64
	WarehouseID  int64
	Qty          float64
	BalanceAfter float64
	Reversed     bool
	PostedAt     time.Time
	ActorID      int64
}

// MutationResult reports the entries written by one Apply call.
type MutationResult struct {
	Entries []Entry
}

// StockCardRow is a ledger read joined with display fields.
type StockCardRow struct {
	EntryID       int64        `json:"entry_id"`
	DocumentType  DocumentType `json:"document_type"`
	DocumentCode  string       `json:"document_code"`
	ProductID     int64        `json:"product_id"`
	ProductName   string       `json:"product_name"`
	WarehouseID   int64        `json:"warehouse_id"`
	WarehouseName string       `json:"warehouse_name"`
	Qty           float64      `json:"qty"`
	BalanceAfter  float64      `json:"balance_after"`
	Reversed      bool         `json:"reversed"`
	PostedAt      time.Time    `json:"posted_at"`
}

// StockCardFilter filters card entries.
type StockCardFilter struct {
	ProductID   int64
	WarehouseID int64
	From        time.Time
	To          time.Time
	Page        int
	Limit       int
}

// StockLevel summarises a product's position against its alert threshold.
type StockLevel struct {
	ProductID     int64   `json:"product_id"`
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Stock         float64 `json:"stock"`
	AlertQuantity float64 `json:"alert_quantity"`
}

// ErrAlreadyApplied rejects a repeated apply for the same document.
var ErrAlreadyApplied = fmt.Errorf("%w: deltas already applied for document", httpx.ErrDuplicate)

// ErrInsufficientStock triggered when a decrement would drive stock negative.
var ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", httpx.ErrValidation)

// ErrProductMissing indicates a delta references an unknown product.
var ErrProductMissing = fmt.Errorf("%w: product does not exist", httpx.ErrValidation)

// MutationError reports which line broke an atomic batch. The whole batch is
// rolled back before this is returned.
type MutationError struct {
	Reason      string
	FailingLine int
	ProductID   int64
	Err         error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("ledger: batch failed at line %d (product %d): %s", e.FailingLine, e.ProductID, e.Reason)
}

func (e *MutationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return httpx.ErrMutationFailed
}
