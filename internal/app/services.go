package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/bulkmart/fulfillment/internal/accounting"
	"github.com/bulkmart/fulfillment/internal/customers"
	"github.com/bulkmart/fulfillment/internal/delivery"
	"github.com/bulkmart/fulfillment/internal/documents"
	"github.com/bulkmart/fulfillment/internal/geo"
	"github.com/bulkmart/fulfillment/internal/inventory"
	"github.com/bulkmart/fulfillment/internal/notify"
	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
	"github.com/bulkmart/fulfillment/internal/payments"
	"github.com/bulkmart/fulfillment/internal/pricing"
	"github.com/bulkmart/fulfillment/internal/shared"
	"github.com/bulkmart/fulfillment/jobs"
	"github.com/bulkmart/fulfillment/report"
)

// Services is the domain object graph shared by the API and worker binaries.
type Services struct {
	Idempotency  *shared.IdempotencyStore
	Outbox       *outbox.Store
	Inventory    *inventory.Service
	Pricing      *pricing.Engine
	Orders       *orders.Service
	Customers    *customers.Service
	Payments     *payments.Reconciler
	Delivery     *delivery.Service
	Accounting   *accounting.Client
	Renderer     *report.Client
	Orchestrator *documents.Orchestrator
}

// NewServices wires repositories, outbound clients and services. The jobs client
// dispatches document work and queues notification mail.
func NewServices(cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, queue *jobs.Client) *Services {
	s := &Services{
		Idempotency: shared.NewIdempotencyStore(pool),
		Outbox:      outbox.NewStore(pool, cfg.OutboxLease),
		Renderer:    report.NewClient(cfg.GotenbergURL),
	}

	s.Inventory = inventory.NewService(inventory.NewRepository(pool), s.Idempotency, logger)

	geocoder := geo.NewCachedGeocoder(
		geo.NewHTTPGeocoder(cfg.GeocoderURL, cfg.ExternalCallTimeout),
		rdb, cfg.GeocodeCacheTTL, logger,
	)
	s.Pricing = pricing.NewEngine(s.Inventory, geocoder)

	s.Orders = orders.NewService(orders.NewRepository(pool), s.Inventory, s.Pricing, logger)
	s.Orders.SetChangeWindow(cfg.OrderPolicyWindow)
	if queue != nil {
		s.Orders.SetDispatcher(queue)
	}

	s.Customers = customers.NewService(customers.NewRepository(pool))
	s.Payments = payments.NewReconciler(payments.NewRepository(pool), s.Orders, logger)
	s.Delivery = delivery.NewService(delivery.NewRepository(pool), logger)

	s.Accounting = accounting.NewClient(accounting.Config{
		BaseURL:        cfg.AccountingBaseURL,
		AuthURL:        cfg.AccountingAuthURL,
		ClientID:       cfg.AccountingClientID,
		ClientSecret:   cfg.AccountingClientSecret,
		RefreshToken:   cfg.AccountingRefreshToken,
		OrganizationID: cfg.AccountingOrgID,
		Timeout:        cfg.ExternalCallTimeout,
	}, rdb, logger)

	s.Orchestrator = documents.NewOrchestrator(s.Accounting, s.Orders, s.Customers, s.Payments, logger, documents.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		CallTimeout:   cfg.ExternalCallTimeout,
	})
	s.Orchestrator.SetEntries(s.Outbox)
	s.Orchestrator.SetRenderer(s.Renderer)
	if queue != nil {
		s.Orchestrator.SetNotifier(notify.NewNotifier(queue, cfg.NotifyLocale))
	}
	return s
}

// Backoff is the outbox retry schedule with the configured attempt budget.
func (c *Config) Backoff() outbox.Backoff {
	b := outbox.DefaultBackoff
	if c != nil && c.OutboxMaxAttempts > 0 {
		b.MaxAttempts = c.OutboxMaxAttempts
	}
	return b
}
