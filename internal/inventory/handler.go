package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/platform/httpx"
	"github.com/bulkmart/fulfillment/internal/shared"
)

// Handler manages catalogue endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/items/{itemRef}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Put("/", h.upsertItem)
		r.Put("/offers/{warehouseID}", h.upsertOffer)
		r.Post("/offers/{warehouseID}/adjustments", h.adjust)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: ErrInvalidQuantity, Status: http.StatusUnprocessableEntity},
	{Err: ErrNegativeStock, Status: http.StatusConflict},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict},
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Warn(op+" failed", slog.String("item_ref", chi.URLParam(r, "itemRef")), slog.Any("error", err))
	httpx.RespondDomainError(w, err, errorMappings...)
}

func warehouseParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "warehouseID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid warehouse id", httpx.ErrValidation)
	}
	return id, nil
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	item, offers, err := h.service.Item(r.Context(), chi.URLParam(r, "itemRef"))
	if err != nil {
		h.fail(w, r, "get item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": item, "offers": offers})
}

func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	item, err := h.service.UpsertItem(r.Context(), chi.URLParam(r, "itemRef"), req)
	if err != nil {
		h.fail(w, r, "upsert item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) upsertOffer(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := warehouseParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req UpsertOfferRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	offer, err := h.service.UpsertOffer(r.Context(), chi.URLParam(r, "itemRef"), warehouseID, req)
	if err != nil {
		h.fail(w, r, "upsert offer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) adjust(w http.ResponseWriter, r *http.Request) {
	warehouseID, err := warehouseParam(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req AdjustStockRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	offer, err := h.service.AdjustStock(r.Context(), chi.URLParam(r, "itemRef"), warehouseID, req)
	if err != nil {
		h.fail(w, r, "adjust stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}
