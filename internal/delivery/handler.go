package delivery

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/platform/httpx"
)

// Handler manages delivery record endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers delivery routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.schedule)
	r.Route("/{leadID}", func(r chi.Router) {
		r.Get("/", h.show)
		r.Patch("/", h.assign)
		r.Post("/dispatch", h.dispatch)
		r.Post("/in-transit", h.inTransit)
		r.Post("/delivered", h.delivered)
		r.Post("/failed", h.failed)
		r.Post("/cancel", h.cancel)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound},
	{Err: ErrAlreadyExists, Status: http.StatusConflict},
	{Err: ErrCannotDispatch, Status: http.StatusConflict},
	{Err: ErrCannotTransit, Status: http.StatusConflict},
	{Err: ErrCannotDeliver, Status: http.StatusConflict},
	{Err: ErrCannotFail, Status: http.StatusConflict},
	{Err: ErrCannotCancel, Status: http.StatusConflict},
	{Err: ErrCannotEdit, Status: http.StatusConflict},
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, op string, rec *Record, err error) {
	if err != nil {
		h.logger.Warn(op+" failed", slog.String("lead_id", chi.URLParam(r, "leadID")), slog.Any("error", err))
		httpx.RespondDomainError(w, err, errorMappings...)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// schedule handles POST /deliveries
func (h *Handler) schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Schedule(r.Context(), req)
	if err != nil {
		h.respond(w, r, "schedule delivery", nil, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.Get(r.Context(), chi.URLParam(r, "leadID"))
	h.respond(w, r, "get delivery", rec, err)
}

func (h *Handler) assign(w http.ResponseWriter, r *http.Request) {
	var req Assignment
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Assign(r.Context(), chi.URLParam(r, "leadID"), req)
	h.respond(w, r, "assign delivery", rec, err)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	var req Assignment
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	rec, err := h.service.Dispatch(r.Context(), chi.URLParam(r, "leadID"), req)
	h.respond(w, r, "dispatch delivery", rec, err)
}

func (h *Handler) inTransit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.service.MarkInTransit(r.Context(), chi.URLParam(r, "leadID"))
	h.respond(w, r, "mark in transit", rec, err)
}

func (h *Handler) delivered(w http.ResponseWriter, r *http.Request) {
	var req DeliverRequest
	if r.ContentLength > 0 {
		if err := httpx.Bind(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	rec, err := h.service.MarkDelivered(r.Context(), chi.URLParam(r, "leadID"), req.ReceivedBy)
	h.respond(w, r, "mark delivered", rec, err)
}

func (h *Handler) failed(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.MarkFailed(r.Context(), chi.URLParam(r, "leadID"), req.Reason)
	h.respond(w, r, "mark failed", rec, err)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	var req ReasonRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rec, err := h.service.Cancel(r.Context(), chi.URLParam(r, "leadID"), req.Reason)
	h.respond(w, r, "cancel delivery", rec, err)
}
