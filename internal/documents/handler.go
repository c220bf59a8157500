package documents

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bulkmart/fulfillment/internal/orders"
	"github.com/bulkmart/fulfillment/internal/outbox"
	"github.com/bulkmart/fulfillment/internal/platform/httpx"
)

// Queue records on-demand sync requests.
type Queue interface {
	Enqueue(ctx context.Context, leadID, effect string, now time.Time) (outbox.Entry, error)
}

// Handler manages document endpoints.
type Handler struct {
	logger     *slog.Logger
	orch       *Orchestrator
	queue      Queue
	dispatcher orders.Dispatcher
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, orch *Orchestrator, queue Queue, dispatcher orders.Dispatcher) *Handler {
	return &Handler{logger: logger, orch: orch, queue: queue, dispatcher: dispatcher}
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/{leadID}/{kind}", func(r chi.Router) {
		r.Get("/", h.status)
		r.Post("/", h.Generate)
		r.Get("/pdf", h.pdf)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: orders.ErrOrderNotFound, Status: http.StatusNotFound},
	{Err: ErrUnknownKind, Status: http.StatusNotFound},
	{Err: ErrDocumentNotReady, Status: http.StatusConflict},
	{Err: ErrExternalFailure, Status: http.StatusBadGateway},
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Warn(op+" failed",
		slog.String("lead_id", chi.URLParam(r, "leadID")),
		slog.String("kind", chi.URLParam(r, "kind")),
		slog.Any("error", err))
	httpx.RespondDomainError(w, err, errorMappings...)
}

func kindParam(r *http.Request) (orders.DocumentKind, bool) {
	return orders.ParseDocumentKind(chi.URLParam(r, "kind"))
}

// status handles GET /documents/{leadID}/{kind}
func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		h.fail(w, r, "document status", ErrUnknownKind)
		return
	}
	st, err := h.orch.Status(r.Context(), chi.URLParam(r, "leadID"), kind)
	if err != nil {
		h.fail(w, r, "document status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

// Generate queues an immediate sync of one document. It answers 200 when the
// document already exists and 202 once the request is queued.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		h.fail(w, r, "generate document", ErrUnknownKind)
		return
	}
	leadID := chi.URLParam(r, "leadID")
	st, err := h.orch.Status(r.Context(), leadID, kind)
	if err != nil {
		h.fail(w, r, "generate document", err)
		return
	}
	if st.State == StateReady {
		httpx.JSON(w, http.StatusOK, st)
		return
	}
	entry, err := h.queue.Enqueue(r.Context(), leadID, string(kind), time.Now())
	if err != nil {
		h.fail(w, r, "generate document", err)
		return
	}
	if h.dispatcher != nil {
		if err := h.dispatcher.Kick(r.Context()); err != nil {
			h.logger.Warn("dispatch kick failed", slog.String("lead_id", leadID), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusAccepted, DocStatus{
		LeadID:   leadID,
		Kind:     kind,
		State:    StatePending,
		Attempts: entry.Attempts,
	})
}

// pdf handles GET /documents/{leadID}/{kind}/pdf
func (h *Handler) pdf(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindParam(r)
	if !ok {
		h.fail(w, r, "document pdf", ErrUnknownKind)
		return
	}
	leadID := chi.URLParam(r, "leadID")
	data, err := h.orch.PDF(r.Context(), leadID, kind)
	if err != nil {
		h.fail(w, r, "document pdf", err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline; filename=\""+leadID+"-"+string(kind)+".pdf\"")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
