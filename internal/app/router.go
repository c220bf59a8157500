package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/customers"
	"github.com/bulkmart/fulfillment/internal/delivery"
	"github.com/bulkmart/fulfillment/internal/documents"
	"github.com/bulkmart/fulfillment/internal/inventory"
	"github.com/bulkmart/fulfillment/internal/observability"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/payments"
	"github.com/bulkmart/fulfillment/internal/pricing"
	"github.com/bulkmart/fulfillment/jobs"
	"github.com/bulkmart/fulfillment/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	OrdersHandler    *orders.Handler
	DocumentsHandler *documents.Handler
	PaymentsHandler  *payments.Handler
	DeliveryHandler  *delivery.Handler
	CustomersHandler *customers.Handler
	InventoryHandler *inventory.Handler
	PricingHandler   *pricing.Handler
	ReportHandler    *report.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.OrdersHandler != nil {
		r.Route("/orders", func(r chi.Router) {
			params.OrdersHandler.MountRoutes(r)
			if params.DocumentsHandler != nil {
				r.Post("/{leadID}/documents/{kind}", params.DocumentsHandler.Generate)
			}
		})
	}
	if params.DocumentsHandler != nil {
		r.Route("/documents", params.DocumentsHandler.MountRoutes)
	}
	if params.PaymentsHandler != nil {
		r.Route("/payments", params.PaymentsHandler.MountRoutes)
	}
	if params.DeliveryHandler != nil {
		r.Route("/deliveries", params.DeliveryHandler.MountRoutes)
	}
	if params.CustomersHandler != nil {
		r.Route("/customers", params.CustomersHandler.MountRoutes)
	}
	if params.InventoryHandler != nil {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
	}
	if params.PricingHandler != nil {
		r.Route("/delivery", params.PricingHandler.MountRoutes)
	}
	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	return r
}
