package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/stockroom-erp/stockroom/internal/adjustments"
	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/masterdata/categories"
	"github.com/stockroom-erp/stockroom/internal/masterdata/customers"
	"github.com/stockroom-erp/stockroom/internal/masterdata/products"
	"github.com/stockroom-erp/stockroom/internal/masterdata/suppliers"
	"github.com/stockroom-erp/stockroom/internal/masterdata/units"
	"github.com/stockroom-erp/stockroom/internal/masterdata/warehouses"
	"github.com/stockroom-erp/stockroom/internal/purchases"
	"github.com/stockroom-erp/stockroom/internal/quotations"
	"github.com/stockroom-erp/stockroom/internal/returns"
	"github.com/stockroom-erp/stockroom/internal/sales"
	"github.com/stockroom-erp/stockroom/internal/transfers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AdjustmentHandler *adjustments.Handler
	PurchaseHandler   *purchases.Handler
	TransferHandler   *transfers.Handler
	ReturnHandler     *returns.Handler
	SaleHandler       *sales.Handler
	QuotationHandler  *quotations.Handler
	StockHandler      *ledger.Handler

	ProductHandler   *products.Handler
	WarehouseHandler *warehouses.Handler
	SupplierHandler  *suppliers.Handler
	CustomerHandler  *customers.Handler
	CategoryHandler  *categories.Handler
	UnitHandler      *units.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(params.Config) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/adjustments", params.AdjustmentHandler.MountRoutes)
	r.Route("/purchases", params.PurchaseHandler.MountRoutes)
	r.Route("/transfers", params.TransferHandler.MountRoutes)
	r.Route("/returns", params.ReturnHandler.MountRoutes)
	r.Route("/quotations", params.QuotationHandler.MountRoutes)
	r.Route("/pos/sales", params.SaleHandler.MountRoutes)
	r.Route("/stock", params.StockHandler.MountRoutes)

	r.Route("/products", params.ProductHandler.MountRoutes)
	r.Route("/warehouses", params.WarehouseHandler.MountRoutes)
	r.Route("/suppliers", params.SupplierHandler.MountRoutes)
	r.Route("/customers", params.CustomerHandler.MountRoutes)
	r.Route("/categories", params.CategoryHandler.MountRoutes)
	r.Route("/units", params.UnitHandler.MountRoutes)

	return r
}
