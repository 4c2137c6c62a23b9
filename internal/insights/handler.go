package insights

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// Handler serves the insight projections.
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
	r.Get("/alerts", h.alerts)
	r.Get("/stats", h.stats)
	r.Get("/dashboard", h.board)
	r.Get("/search", h.search)
	r.Get("/calendar", h.calendar)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed",
			slog.Any("error", err),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	}
	httpx.RespondError(w, err)
}

// alerts handles GET /alerts
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.service.Alerts(r.Context())
	if err != nil {
		h.fail(w, r, "list alerts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, alerts)
}

// stats handles GET /stats
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "load stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// board handles GET /dashboard
func (h *Handler) board(w http.ResponseWriter, r *http.Request) {
	board, err := h.service.Board(r.Context())
	if err != nil {
		h.fail(w, r, "load dashboard", err)
		return
	}
	httpx.JSON(w, http.StatusOK, board)
}

// search handles GET /search?q=
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.fail(w, r, "search", err)
		return
	}
	httpx.JSON(w, http.StatusOK, results)
}

// calendar handles GET /calendar?start=&end=
func (h *Handler) calendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cal, err := h.service.Calendar(r.Context(), q.Get("start"), q.Get("end"))
	if err != nil {
		h.fail(w, r, "load calendar", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cal)
}
