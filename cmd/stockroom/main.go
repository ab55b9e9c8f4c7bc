package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stockroom-erp/stockroom/internal/adjustments"
	"github.com/stockroom-erp/stockroom/internal/app"
	"github.com/stockroom-erp/stockroom/internal/ledger"
	"github.com/stockroom-erp/stockroom/internal/masterdata/categories"
	"github.com/stockroom-erp/stockroom/internal/masterdata/customers"
	"github.com/stockroom-erp/stockroom/internal/masterdata/products"
	"github.com/stockroom-erp/stockroom/internal/masterdata/suppliers"
	"github.com/stockroom-erp/stockroom/internal/masterdata/units"
	"github.com/stockroom-erp/stockroom/internal/masterdata/warehouses"
	"github.com/stockroom-erp/stockroom/internal/platform/cache"
	"github.com/stockroom-erp/stockroom/internal/platform/db"
	"github.com/stockroom-erp/stockroom/internal/purchases"
	"github.com/stockroom-erp/stockroom/internal/quotations"
	"github.com/stockroom-erp/stockroom/internal/returns"
	"github.com/stockroom-erp/stockroom/internal/sales"
	"github.com/stockroom-erp/stockroom/internal/shared"
	"github.com/stockroom-erp/stockroom/internal/transfers"
	"github.com/stockroom-erp/stockroom/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, stock level caching disabled", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	jobClient := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		_ = jobClient.Close()
	}()

	codes := shared.NewRefCodes(pool)
	idem := shared.NewIdempotencyStore(pool)
	audit := shared.NewAuditLogger(pool)

	ledgerRepo := ledger.NewRepository(pool)
	levelsCache := cache.NewJSONCache(redisClient, cfg.StockLevelsCacheTTL)
	ledgerSvc := ledger.NewService(ledgerRepo, audit, jobClient, levelsCache, ledger.ServiceConfig{AllowBackorder: cfg.AllowBackorder})

	adjustmentSvc := adjustments.NewService(adjustments.NewRepository(pool), ledgerSvc, codes)
	purchaseSvc := purchases.NewService(purchases.NewRepository(pool), ledgerSvc, codes, idem)
	transferSvc := transfers.NewService(transfers.NewRepository(pool), ledgerSvc, codes)
	returnSvc := returns.NewService(returns.NewRepository(pool), ledgerSvc, codes)
	saleSvc := sales.NewService(sales.NewRepository(pool), ledgerSvc, codes, idem)
	quotationSvc := quotations.NewService(quotations.NewRepository(pool), saleSvc, codes)

	router := app.NewRouter(app.RouterParams{
		Logger: logger,
		Config: cfg,

		AdjustmentHandler: adjustments.NewHandler(logger, adjustmentSvc),
		PurchaseHandler:   purchases.NewHandler(logger, purchaseSvc),
		TransferHandler:   transfers.NewHandler(logger, transferSvc),
		ReturnHandler:     returns.NewHandler(logger, returnSvc),
		SaleHandler:       sales.NewHandler(logger, saleSvc),
		QuotationHandler:  quotations.NewHandler(logger, quotationSvc),
		StockHandler:      ledger.NewHandler(logger, ledgerSvc, levelsCache),

		ProductHandler:   products.NewHandler(logger, products.NewService(products.NewRepository(pool))),
		WarehouseHandler: warehouses.NewHandler(logger, warehouses.NewService(warehouses.NewRepository(pool))),
		SupplierHandler:  suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool))),
		CustomerHandler:  customers.NewHandler(logger, customers.NewService(customers.NewRepository(pool))),
		CategoryHandler:  categories.NewHandler(logger, categories.NewService(categories.NewRepository(pool))),
		UnitHandler:      units.NewHandler(logger, units.NewService(units.NewRepository(pool))),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
