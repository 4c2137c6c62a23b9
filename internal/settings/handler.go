package settings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/settings", h.Get)
	r.Post("/settings", h.Upsert)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

// Get handles GET /settings
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	values, err := h.service.GetAll(r.Context())
	if err != nil {
		h.fail(w, "get settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, values)
}

// Upsert handles POST /settings
func (h *Handler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req map[string]string
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, "save settings", err)
		return
	}
	values, err := h.service.Upsert(r.Context(), req)
	if err != nil {
		h.fail(w, "save settings", err)
		return
	}
	httpx.JSON(w, http.StatusOK, values)
}
