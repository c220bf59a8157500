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

	"github.com/bulkmart/fulfillment/internal/app"
	"github.com/bulkmart/fulfillment/internal/customers"
	"github.com/bulkmart/fulfillment/internal/delivery"
	"github.com/bulkmart/fulfillment/internal/documents"
	"github.com/bulkmart/fulfillment/internal/inventory"
	"github.com/bulkmart/fulfillment/internal/observability"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/payments"
	"github.com/bulkmart/fulfillment/internal/platform/cache"
	"github.com/bulkmart/fulfillment/internal/platform/db"
	"github.com/bulkmart/fulfillment/internal/pricing"
	"github.com/bulkmart/fulfillment/jobs"
	"github.com/bulkmart/fulfillment/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	svc := app.NewServices(cfg, logger, dbpool, redisClient, jobsClient)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          metrics,
		OrdersHandler:    orders.NewHandler(logger, svc.Orders),
		DocumentsHandler: documents.NewHandler(logger, svc.Orchestrator, svc.Outbox, jobsClient),
		PaymentsHandler:  payments.NewHandler(logger, svc.Payments, svc.Orders, svc.Idempotency),
		DeliveryHandler:  delivery.NewHandler(logger, svc.Delivery),
		CustomersHandler: customers.NewHandler(logger, svc.Customers),
		InventoryHandler: inventory.NewHandler(logger, svc.Inventory),
		PricingHandler:   pricing.NewHandler(logger, svc.Pricing),
		ReportHandler:    report.NewHandler(svc.Renderer, logger),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
