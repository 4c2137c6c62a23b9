package extraction

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// AnalyzeRequest is the body of POST /ai/analyze.
type AnalyzeRequest struct {
	Request string `json:"request" validate:"required"`
}

// Handler exposes request analysis over HTTP.
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
	r.Post("/ai/analyze", h.analyze)
}

// analyze handles POST /ai/analyze
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Analyze(r.Context(), req.Request)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("analyze request failed",
				slog.Any("error", err),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}
