// Package jobs defines the background task types and the Asynq worker that
// runs them: low-stock alerting, ledger integrity checking and housekeeping.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue every task runs on.
	QueueDefault = "default"

	// TaskLowStockScan checks products against their alert thresholds.
	TaskLowStockScan = "stock:low_scan"
	// TaskLedgerIntegrity recomputes per-product entry sums against stock.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskIdempotencyCleanup expires old idempotency keys.
	TaskIdempotencyCleanup = "housekeeping:idempotency"
)

// LowStockPayload limits a scan to specific products. Empty means scan all.
type LowStockPayload struct {
	ProductIDs []int64 `json:"product_ids,omitempty"`
}

// NewLowStockScanTask constructs the scan task.
func NewLowStockScanTask(payload LowStockPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// NewLedgerIntegrityTask constructs the integrity check task.
func NewLedgerIntegrityTask() *asynq.Task {
	return asynq.NewTask(TaskLedgerIntegrity, nil)
}

// NewIdempotencyCleanupTask constructs the housekeeping task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}
