package sales

import (
	"fmt"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

// Domain errors for quotes, orders and invoices.
var (
	ErrQuoteNotFound   = fmt.Errorf("quote: %w", httpx.ErrNotFound)
	ErrOrderNotFound   = fmt.Errorf("order: %w", httpx.ErrNotFound)
	ErrInvoiceNotFound = fmt.Errorf("invoice: %w", httpx.ErrNotFound)

	// ErrInvalidTransition is returned when a target status is not reachable
	// from the current one.
	ErrInvalidTransition = fmt.Errorf("invalid status transition: %w", httpx.ErrConflict)
	// ErrQuoteNotDraft is returned when deleting a quote that left draft.
	ErrQuoteNotDraft = fmt.Errorf("only draft quotes can be deleted: %w", httpx.ErrConflict)

	ErrEmptyUpdate  = fmt.Errorf("nothing to update: %w", httpx.ErrValidation)
	ErrUnknownState = fmt.Errorf("unknown status: %w", httpx.ErrValidation)
	ErrNoClient     = fmt.Errorf("client id or client name is required: %w", httpx.ErrValidation)
)
