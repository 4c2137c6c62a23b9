package sales

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// Handler manages quote, order and invoice HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	exporter http.Handler
}

// NewHandler creates a new handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// SetInvoiceExporter mounts an invoice export under /invoices/export.xlsx.
func (h *Handler) SetInvoiceExporter(exporter http.Handler) {
	h.exporter = exporter
}

// MountRoutes registers routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/quotes", func(r chi.Router) {
		r.Get("/", h.listQuotes)
		r.Post("/", h.createQuote)
		r.Get("/{id}", h.getQuote)
		r.Patch("/{id}", h.updateQuote)
		r.Delete("/{id}", h.deleteQuote)
	})
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Get("/{id}", h.getOrder)
		r.Patch("/{id}", h.updateOrder)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		if h.exporter != nil {
			r.Method(http.MethodGet, "/export.xlsx", h.exporter)
		}
		r.Get("/{id}", h.getInvoice)
		r.Patch("/{id}", h.updateInvoice)
	})
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

// ============================================================================
// QUOTES
// ============================================================================

// listQuotes handles GET /quotes
func (h *Handler) listQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.service.ListQuotes(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, "list quotes", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quotes)
}

// createQuote handles POST /quotes
func (h *Handler) createQuote(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	quote, err := h.service.CreateQuote(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create quote", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, quote)
}

// getQuote handles GET /quotes/{id}
func (h *Handler) getQuote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "get quote", err)
		return
	}
	quote, err := h.service.GetQuote(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// updateQuote handles PATCH /quotes/{id}
func (h *Handler) updateQuote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "update quote", err)
		return
	}
	var req UpdateQuoteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "update quote", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, "update quote", err)
		return
	}
	quote, err := h.service.UpdateQuote(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update quote", err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

// deleteQuote handles DELETE /quotes/{id}
func (h *Handler) deleteQuote(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "delete quote", err)
		return
	}
	if err := h.service.DeleteQuote(r.Context(), id); err != nil {
		h.fail(w, r, "delete quote", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ============================================================================
// ORDERS
// ============================================================================

// listOrders handles GET /orders
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.service.ListOrders(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, "list orders", err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

// getOrder handles GET /orders/{id}
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// updateOrder handles PATCH /orders/{id}
func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "update order", err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "update order", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, "update order", err)
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

// ============================================================================
// INVOICES
// ============================================================================

// listInvoices handles GET /invoices
func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

// getInvoice handles GET /invoices/{id}
func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	invoice, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}

// updateInvoice handles PATCH /invoices/{id}
func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.PathUUID(r, "id")
	if err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	var req UpdateInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	if err := httpx.Validate(req); err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	invoice, err := h.service.UpdateInvoice(r.Context(), id, req)
	if err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoice)
}
