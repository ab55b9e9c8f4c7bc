package returns

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/stockroom-erp/stockroom/internal/platform/httpx"
	"github.com/stockroom-erp/stockroom/internal/shared"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes wires both flows under a shared prefix: /sales and /purchases
// subtrees share list, show and delete behavior.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/sales", func(r chi.Router) {
		r.Get("/", h.listKind(KindSales))
		r.Post("/", h.createKind(KindSales))
	})
	r.Route("/purchases", func(r chi.Router) {
		r.Get("/", h.listKind(KindPurchase))
		r.Post("/", h.createKind(KindPurchase))
	})
	r.Get("/{id}", h.Show)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) createKind(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReturnRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
		created, err := h.service.Create(r.Context(), kind, req, httpx.ActorID(r))
		if err != nil {
			h.logger.Error("create return failed", slog.Any("error", err), slog.String("kind", string(kind)))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, map[string]any{
			"success":   true,
			"id":        created.ID,
			"reference": created.Code,
		})
	}
}

func (h *Handler) listKind(kind Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		warehouseID, _ := strconv.ParseInt(q.Get("warehouse_id"), 10, 64)
		filters := ListFilters{Kind: kind, Page: page, Limit: limit, WarehouseID: warehouseID}

		items, total, err := h.service.List(r.Context(), filters)
		if err != nil {
			h.logger.Error("list returns failed", slog.Any("error", err), slog.String("kind", string(kind)))
			httpx.RespondError(w, err)
			return
		}
		if filters.Page < 1 {
			filters.Page = 1
		}
		if filters.Limit < 1 || filters.Limit > 100 {
			filters.Limit = 10
		}
		httpx.JSON(w, http.StatusOK, map[string]any{
			"data":       items,
			"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
		})
	}
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_failed", "invalid return id")
		return
	}
	ret, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "validation_failed", "invalid return id")
		return
	}
	if err := h.service.Delete(r.Context(), id, httpx.ActorID(r)); err != nil {
		h.logger.Error("delete return failed", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true})
}
