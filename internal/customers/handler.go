package customers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/platform/httpx"
)

// Handler exposes profile endpoints.
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
	r.Put("/", h.upsert)
	r.Get("/{id}", h.show)
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertProfileRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Upsert(r.Context(), req)
	if err != nil {
		h.logger.Error("upsert customer failed", slog.Int64("customer_id", req.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	p, err := h.service.Profile(r.Context(), id)
	if err != nil {
		httpx.RespondDomainError(w, err, httpx.Mapping{Err: ErrNotFound, Status: http.StatusNotFound})
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}
