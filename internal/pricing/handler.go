package pricing

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/geo"
	"github.com/bulkmart/fulfillment/internal/platform/httpx"
)

// Handler exposes delivery quotes.
type Handler struct {
	logger *slog.Logger
	engine *Engine
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{logger: logger, engine: engine}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/quote", h.quoteItem)
	r.Post("/quote", h.quoteCart)
}

var errorMappings = []httpx.Mapping{
	{Err: geo.ErrInvalidPostalCode, Status: http.StatusUnprocessableEntity},
	{Err: geo.ErrInvalidCoordinate, Status: http.StatusUnprocessableEntity},
	{Err: geo.ErrExternalFailure, Status: http.StatusBadGateway},
}

// CartQuoteRequest prices a set of lines to one pincode.
type CartQuoteRequest struct {
	Pincode string `json:"pincode" validate:"required,len=6,numeric"`
	Lines   []struct {
		ItemRef string  `json:"item_ref" validate:"required"`
		Amount  float64 `json:"amount" validate:"gte=0"`
	} `json:"lines" validate:"required,min=1,dive"`
}

// quoteItem handles GET /delivery/quote?item=&pincode=&amount=
func (h *Handler) quoteItem(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	item, pincode := q.Get("item"), q.Get("pincode")
	if item == "" || pincode == "" {
		httpx.RespondError(w, fmt.Errorf("%w: item and pincode are required", httpx.ErrValidation))
		return
	}
	var amount float64
	if raw := q.Get("amount"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			httpx.RespondError(w, fmt.Errorf("%w: invalid amount %q", httpx.ErrValidation, raw))
			return
		}
		amount = v
	}
	quote, err := h.engine.QuoteItem(r.Context(), item, pincode, amount)
	if err != nil {
		h.logger.Warn("delivery quote failed", slog.String("item", item), slog.String("pincode", pincode), slog.Any("error", err))
		httpx.RespondDomainError(w, err, errorMappings...)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// quoteCart handles POST /delivery/quote
func (h *Handler) quoteCart(w http.ResponseWriter, r *http.Request) {
	var req CartQuoteRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	lines := make([]CartLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, CartLine{ItemRef: l.ItemRef, Amount: l.Amount})
	}
	quote, err := h.engine.QuoteCart(r.Context(), req.Pincode, lines)
	if err != nil {
		h.logger.Warn("cart quote failed", slog.String("pincode", req.Pincode), slog.Any("error", err))
		httpx.RespondDomainError(w, err, errorMappings...)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}
