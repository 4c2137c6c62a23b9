package mailer

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
	r.Post("/email", h.Send)
}

// Send handles POST /email
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	receipt, err := h.service.Send(r.Context(), req)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("send email failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusAccepted
	if receipt.Status == StatusSimulated {
		status = http.StatusOK
	}
	httpx.JSON(w, status, receipt)
}
