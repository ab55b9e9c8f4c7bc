package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewLowStockHandler returns the handler for TaskLowStockScan. It logs a
// warning per product at or below its alert threshold; alert delivery beyond
// the log is left to whatever tails it.
func NewLowStockHandler(pool *pgxpool.Pool, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload LowStockPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}

		query := `SELECT id, code, name, stock, alert_quantity FROM products
			WHERE is_active AND alert_quantity > 0 AND stock <= alert_quantity`
		args := []any{}
		if len(payload.ProductIDs) > 0 {
			query += ` AND id = ANY($1)`
			args = append(args, payload.ProductIDs)
		}

		rows, err := pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		flagged := 0
		for rows.Next() {
			var (
				id           int64
				code, name   string
				stock, alert float64
			)
			if err := rows.Scan(&id, &code, &name, &stock, &alert); err != nil {
				return err
			}
			flagged++
			logger.Warn("product below alert threshold",
				slog.Int64("product_id", id),
				slog.String("code", code),
				slog.String("name", name),
				slog.Float64("stock", stock),
				slog.Float64("alert_quantity", alert))
		}
		if err := rows.Err(); err != nil {
			return err
		}
		logger.Info("low stock scan finished", slog.Int("flagged", flagged))
		return nil
	}
}
