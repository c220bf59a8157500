package orders

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/geo"
	"github.com/bulkmart/fulfillment/internal/platform/httpx"
)

// Handler manages order HTTP endpoints.
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
	r.Post("/cart/items", h.addToCart)
	r.Route("/{leadID}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Delete("/", h.removeCart)
		r.Delete("/items/{itemRef}", h.removeItem)
		r.Post("/place", h.place)
		r.Patch("/address", h.changeAddress)
		r.Patch("/expected-date", h.changeExpectedDate)
		r.Post("/status", h.transition)
		r.Get("/history", h.history)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: ErrItemNotFound, Status: http.StatusNotFound},
	{Err: ErrInvalidTransition, Status: http.StatusConflict},
	{Err: ErrNotEditable, Status: http.StatusConflict},
	{Err: ErrInactiveOrder, Status: http.StatusConflict},
	{Err: ErrPolicyWindowClosed, Status: http.StatusConflict},
	{Err: ErrInvalidItem, Status: http.StatusUnprocessableEntity},
	{Err: ErrInvalidDetails, Status: http.StatusUnprocessableEntity},
	{Err: ErrEmptyOrder, Status: http.StatusUnprocessableEntity},
	{Err: ErrDeliveryUnavailable, Status: http.StatusUnprocessableEntity},
	{Err: geo.ErrInvalidPostalCode, Status: http.StatusUnprocessableEntity},
	{Err: geo.ErrExternalFailure, Status: http.StatusBadGateway},
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Warn(op+" failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondDomainError(w, err, errorMappings...)
}

// addToCart handles POST /orders/cart/items
func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.AddToCart(r.Context(), AddToCartInput{
		CustomerID: req.CustomerID,
		ItemRef:    req.ItemRef,
		Quantity:   req.Quantity,
		Pincode:    req.Pincode,
	})
	if err != nil {
		h.fail(w, r, "add to cart", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// show handles GET /orders/{leadID}
func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// removeCart handles DELETE /orders/{leadID}
func (h *Handler) removeCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveCart(r.Context(), chi.URLParam(r, "leadID")); err != nil {
		h.fail(w, r, "remove cart", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// removeItem handles DELETE /orders/{leadID}/items/{itemRef}
func (h *Handler) removeItem(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.RemoveFromCart(r.Context(), chi.URLParam(r, "leadID"), chi.URLParam(r, "itemRef"))
	if err != nil {
		h.fail(w, r, "remove item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// place handles POST /orders/{leadID}/place
func (h *Handler) place(w http.ResponseWriter, r *http.Request) {
	var req PlaceRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.Place(r.Context(), chi.URLParam(r, "leadID"), req.ToDetails(), req.Actor)
	if err != nil {
		h.fail(w, r, "place order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// changeAddress handles PATCH /orders/{leadID}/address
func (h *Handler) changeAddress(w http.ResponseWriter, r *http.Request) {
	var req ChangeAddressRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.ChangeAddress(r.Context(), chi.URLParam(r, "leadID"), req.Address, req.Pincode, req.Actor, req.Reason)
	if err != nil {
		h.fail(w, r, "change address", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// changeExpectedDate handles PATCH /orders/{leadID}/expected-date
func (h *Handler) changeExpectedDate(w http.ResponseWriter, r *http.Request) {
	var req ChangeExpectedDateRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	order, err := h.service.ChangeExpectedDate(r.Context(), chi.URLParam(r, "leadID"), req.ExpectedDate, req.Actor, req.Reason)
	if err != nil {
		h.fail(w, r, "change expected date", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// transition handles POST /orders/{leadID}/status
func (h *Handler) transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	target, err := ParseStatus(req.Status)
	if err != nil {
		h.fail(w, r, "transition", err)
		return
	}
	tr, err := h.service.Transition(r.Context(), chi.URLParam(r, "leadID"), target, req.Actor, req.Remarks)
	if err != nil {
		h.fail(w, r, "transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, TransitionResponse{From: tr.From, To: tr.To, Event: tr.Event, Effects: tr.Effects})
}

// history handles GET /orders/{leadID}/history
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		h.fail(w, r, "history", err)
		return
	}
	if events == nil {
		events = []StatusEvent{}
	}
	httpx.JSON(w, http.StatusOK, events)
}
