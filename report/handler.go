package report

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// Pinger checks the PDF converter.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves printable documents.
type Handler struct {
	docs   *Documents
	pinger Pinger
	logger *slog.Logger
}

// NewHandler creates a report handler. pinger may be nil when no converter
// is configured.
func NewHandler(docs *Documents, pinger Pinger, logger *slog.Logger) *Handler {
	return &Handler{docs: docs, pinger: pinger, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/pdf/ping", h.ping)
	r.Get("/pdf/{type}/{id}", h.document)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if h.pinger == nil {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	if err := h.pinger.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// document handles GET /pdf/{type}/{id}
func (h *Handler) document(w http.ResponseWriter, r *http.Request) {
	kind, err := ParseKind(chi.URLParam(r, "type"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	doc, err := h.docs.Build(r.Context(), kind, id)
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			h.logger.Error("load document failed",
				slog.Any("error", err),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
		}
		httpx.RespondError(w, err)
		return
	}

	if r.URL.Query().Get("format") == "html" || !h.docs.CanRenderPDF() {
		html, err := h.docs.HTML(doc)
		if err != nil {
			h.logger.Error("render document html", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(html))
		return
	}

	pdf, err := h.docs.PDF(r.Context(), doc)
	if err != nil {
		h.logger.Error("render document pdf",
			slog.Any("error", err),
			slog.String("number", doc.Number),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
		http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `inline; filename="`+doc.Number+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
