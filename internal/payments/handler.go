package payments

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/platform/httpx"
	"github.com/bulkmart/fulfillment/internal/shared"
)

const idempotencyModule = "payments"

// IdempotencyGuard rejects replays of the same Idempotency-Key.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// OrderTransitioner moves the paid order forward.
type OrderTransitioner interface {
	Get(ctx context.Context, leadID string) (*orders.Order, error)
	Transition(ctx context.Context, leadID string, target orders.Status, actor, remarks string) (orders.Transition, error)
}

// Handler manages payment HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	reconciler  *Reconciler
	transitions OrderTransitioner
	idempotency IdempotencyGuard
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, reconciler *Reconciler, transitions OrderTransitioner, idempotency IdempotencyGuard) *Handler {
	return &Handler{logger: logger, reconciler: reconciler, transitions: transitions, idempotency: idempotency}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.record)
	r.Route("/{invoiceNumber}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Post("/success", h.markSuccessful)
		r.Post("/failure", h.markFailed)
		r.Post("/refund", h.refund)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound},
	{Err: ErrInvalidPaymentAmount, Status: http.StatusUnprocessableEntity},
	{Err: ErrInvalidRefund, Status: http.StatusUnprocessableEntity},
	{Err: ErrInvalidState, Status: http.StatusConflict},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict},
	{Err: orders.ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: orders.ErrInvalidTransition, Status: http.StatusConflict},
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Warn(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondDomainError(w, err, errorMappings...)
}

// record handles POST /payments
func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ctx := r.Context()
	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(ctx, key, idempotencyModule); err != nil {
			h.fail(w, r, "record payment", err)
			return
		}
	}
	rec, err := h.reconciler.RecordPayment(ctx, req)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if delErr := h.idempotency.Delete(ctx, key); delErr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		h.fail(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

// show handles GET /payments/{invoiceNumber}
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reconciler.Get(r.Context(), chi.URLParam(r, "invoiceNumber"))
	if err != nil {
		h.fail(w, r, "get payment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// markSuccessful handles POST /payments/{invoiceNumber}/success. A confirmed payment
// moves an order that has not reached payment_done yet forward, which queues the sales order.
func (h *Handler) markSuccessful(w http.ResponseWriter, r *http.Request) {
	var req MarkSuccessfulRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	var at time.Time
	if req.PaidAt != nil {
		at = *req.PaidAt
	}
	ctx := r.Context()
	rec, err := h.reconciler.MarkSuccessful(ctx, chi.URLParam(r, "invoiceNumber"), req.UTRNumber, at)
	if err != nil {
		h.fail(w, r, "mark payment successful", err)
		return
	}
	if h.transitions != nil {
		if err := h.advanceOrder(ctx, rec, req.Actor); err != nil {
			h.fail(w, r, "advance order after payment", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) advanceOrder(ctx context.Context, rec *Record, actor string) error {
	order, err := h.transitions.Get(ctx, rec.LeadID)
	if err != nil {
		return err
	}
	if order.Status.Rank() >= orders.StatusPaymentDone.Rank() {
		return nil
	}
	_, err = h.transitions.Transition(ctx, rec.LeadID, orders.StatusPaymentDone, actor, "payment "+rec.TransactionID+" reconciled")
	return err
}

// markFailed handles POST /payments/{invoiceNumber}/failure
func (h *Handler) markFailed(w http.ResponseWriter, r *http.Request) {
	var req MarkFailedRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.reconciler.MarkFailed(r.Context(), chi.URLParam(r, "invoiceNumber"), req.Reason)
	if err != nil {
		h.fail(w, r, "mark payment failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// refund handles POST /payments/{invoiceNumber}/refund
func (h *Handler) refund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.reconciler.Refund(r.Context(), chi.URLParam(r, "invoiceNumber"), req.Amount, req.Reason)
	if err != nil {
		h.fail(w, r, "refund", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}
