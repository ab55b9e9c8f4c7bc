package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-erp/stockroom/internal/platform/cache"
	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

// Handler exposes read-only ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	levels  *cache.JSONCache
}

// NewHandler constructs the ledger handler. levels may be nil to disable the
// stock-levels cache.
func NewHandler(logger *slog.Logger, service *Service, levels *cache.JSONCache) *Handler {
	return &Handler{logger: logger, service: service, levels: levels}
}

// MountRoutes registers ledger routes under /stock.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/card", h.handleStockCard)
	r.Get("/levels", h.handleStockLevels)
}

func (h *Handler) handleStockCard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := StockCardFilter{}
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "validation_failed", "product_id must be an integer")
			return
		}
		filter.ProductID = id
	}
	if v := q.Get("warehouse_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "validation_failed", "warehouse_id must be an integer")
			return
		}
		filter.WarehouseID = id
	}
	for param, dst := range map[string]*time.Time{"from": &filter.From, "to": &filter.To} {
		if v := q.Get(param); v != "" {
			t, err := time.Parse("2006-01-02", v)
			if err != nil {
				httpx.Error(w, http.StatusBadRequest, "validation_failed", param+" must be YYYY-MM-DD")
				return
			}
			if param == "to" {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			*dst = t
		}
	}
	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.Limit, _ = strconv.Atoi(q.Get("limit"))

	rowsOut, total, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		h.logger.Error("stock card query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       rowsOut,
		"pagination": shared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) handleStockLevels(w http.ResponseWriter, r *http.Request) {
	belowOnly := r.URL.Query().Get("below_alert") == "1"

	key := CacheKeyLevelsAll
	if belowOnly {
		key = CacheKeyLevelsBelow
	}
	var levels []StockLevel
	err := h.levels.Fetch(r.Context(), key, &levels, func(ctx context.Context) (any, error) {
		return h.service.StockLevels(ctx, belowOnly)
	})
	if err != nil {
		h.logger.Error("stock levels query failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": levels})
}
