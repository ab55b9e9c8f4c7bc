package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom-erp/stockroom/internal/shared"
)

// idempotencyRetention is how long processed keys stay queryable. Retried
// requests older than this are treated as new.
const idempotencyRetention = 48 * time.Hour

// NewIdempotencyCleanupHandler returns the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if err := store.Cleanup(ctx, idempotencyRetention); err != nil {
			return err
		}
		logger.Info("idempotency cleanup finished")
		return nil
	}
}
