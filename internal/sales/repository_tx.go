package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rapid-pub/backoffice/internal/numbering"
	"github.com/rapid-pub/backoffice/internal/platform/db"
)

var numberedTables = map[numbering.Kind]string{
	numbering.KindQuote:   "quotes",
	numbering.KindOrder:   "orders",
	numbering.KindInvoice: "invoices",
}

var updatableColumns = map[string]map[string]bool{
	"quotes": {
		"title": true, "description": true, "product_type": true, "quantity": true,
		"format": true, "paper": true, "finishing": true, "double_sided": true,
		"unit_price": true, "total_price": true, "status": true, "sent_at": true,
		"valid_until": true, "responded_at": true, "reminder_count": true, "last_reminder_at": true,
	},
	"orders": {
		"status": true, "delivered_at": true, "production_notes": true,
	},
	"invoices": {
		"status": true, "paid_at": true,
	},
}

// lastSequenceExpr extracts the highest sequence among the numbers matching
// the year pattern bound to the given placeholder.
const lastSequenceExpr = `COALESCE(MAX(SUBSTRING(number FROM '[0-9]+$')::int), 0) FROM %s WHERE number LIKE %s`

// LastSequence returns the highest sequence of kind ever issued in year: the
// larger of the stored numbers and the high-water mark left by inserts, so a
// deleted document keeps its number.
func (t *txRepository) LastSequence(ctx context.Context, kind numbering.Kind, year int) (int, error) {
	table, ok := numberedTables[kind]
	if !ok {
		return 0, numbering.ErrUnknownKind
	}
	query := fmt.Sprintf(`
		SELECT GREATEST(
			(SELECT %s),
			COALESCE((SELECT last_value FROM document_sequences WHERE kind = $2 AND year = $3), 0)
		)
	`, fmt.Sprintf(lastSequenceExpr, table, "$1"))
	var last int
	err := t.tx.QueryRow(ctx, query, numbering.Pattern(kind, year), string(kind), year).Scan(&last)
	return last, err
}

// markIssued raises the high-water mark of the number's kind and year.
func (t *txRepository) markIssued(ctx context.Context, number string) error {
	kind, year, seq, err := numbering.Parse(number)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO document_sequences (kind, year, last_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, year) DO UPDATE
		SET last_value = GREATEST(document_sequences.last_value, EXCLUDED.last_value)
	`, string(kind), year, seq)
	if err != nil {
		return fmt.Errorf("mark %s issued: %w", number, err)
	}
	return nil
}

// IncrementSequence bumps the per kind and year counter. A fresh counter
// starts after the highest number already issued that year.
func (t *txRepository) IncrementSequence(ctx context.Context, kind numbering.Kind, year int) (int, error) {
	table, ok := numberedTables[kind]
	if !ok {
		return 0, numbering.ErrUnknownKind
	}
	query := fmt.Sprintf(`
		INSERT INTO document_sequences (kind, year, last_value)
		VALUES ($1, $2, (SELECT %s) + 1)
		ON CONFLICT (kind, year) DO UPDATE
		SET last_value = document_sequences.last_value + 1
		RETURNING last_value
	`, fmt.Sprintf(lastSequenceExpr, table, "$3"))
	var value int
	err := t.tx.QueryRow(ctx, query, string(kind), year, numbering.Pattern(kind, year)).Scan(&value)
	return value, err
}

// insertErr maps unique violations on number columns to numbering conflicts.
func insertErr(err error) error {
	if constraint, ok := db.IsUniqueViolation(err); ok && strings.HasSuffix(constraint, "_number_key") {
		return fmt.Errorf("%w: %s", numbering.ErrConflict, constraint)
	}
	return err
}

// updateColumns builds a dynamic UPDATE from a column map. Increment values
// add to the stored value.
func updateColumns(ctx context.Context, q querier, table string, id uuid.UUID, updates map[string]any, notFound error) error {
	if len(updates) == 0 {
		return nil
	}
	allowed := updatableColumns[table]

	fields := make([]string, 0, len(updates))
	for field := range updates {
		if !allowed[field] {
			return fmt.Errorf("update %s: column %q is not updatable", table, field)
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var setClauses []string
	var args []any
	argPos := 1
	for _, field := range fields {
		if inc, ok := updates[field].(Increment); ok {
			setClauses = append(setClauses, fmt.Sprintf("%s = %s + $%d", field, field, argPos))
			args = append(args, int(inc))
		} else {
			setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
			args = append(args, updates[field])
		}
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE %s
		SET %s
		WHERE id = $%d
	`, table, strings.Join(setClauses, ", "), argPos)

	cmdTag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

// ============================================================================
// QUOTES
// ============================================================================

// GetQuoteForUpdate reads a quote and locks its row until commit.
func (t *txRepository) GetQuoteForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return getOne(ctx, t.tx, quoteSelect+` WHERE q.id = $1 FOR UPDATE OF q`, id, scanQuote, ErrQuoteNotFound)
}

// InsertQuote creates a quote and returns the stored record.
func (t *txRepository) InsertQuote(ctx context.Context, q Quote) (*Quote, error) {
	query := `
		INSERT INTO quotes (
			number, client_id, raw_request, title, description, product_type,
			quantity, format, paper, finishing, double_sided, unit_price,
			total_price, status, sent_at, valid_until
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, query,
		q.Number, q.ClientID, q.RawRequest, q.Title, q.Description, q.ProductType,
		q.Quantity, q.Format, q.Paper, q.Finishing, q.DoubleSided, q.UnitPrice,
		q.TotalPrice, q.Status, q.SentAt, q.ValidUntil,
	).Scan(&id)
	if err != nil {
		return nil, insertErr(err)
	}
	if err := t.markIssued(ctx, q.Number); err != nil {
		return nil, err
	}
	return getOne(ctx, t.tx, quoteSelect+` WHERE q.id = $1`, id, scanQuote, ErrQuoteNotFound)
}

// UpdateQuote updates quote columns.
func (t *txRepository) UpdateQuote(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return updateColumns(ctx, t.tx, "quotes", id, updates, ErrQuoteNotFound)
}

// DeleteQuote removes a quote. Its number is never reissued by the counter.
func (t *txRepository) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	cmdTag, err := t.tx.Exec(ctx, `DELETE FROM quotes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// ============================================================================
// ORDERS
// ============================================================================

// GetOrderForUpdate reads an order and locks its row until commit.
func (t *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOne(ctx, t.tx, orderSelect+` WHERE o.id = $1 FOR UPDATE OF o`, id, scanOrder, ErrOrderNotFound)
}

// FindOrderByQuote returns the oldest order spawned from a quote.
func (t *txRepository) FindOrderByQuote(ctx context.Context, quoteID uuid.UUID) (*Order, error) {
	return getOne(ctx, t.tx, orderSelect+` WHERE o.quote_id = $1 ORDER BY o.created_at LIMIT 1`, quoteID, scanOrder, ErrOrderNotFound)
}

// InsertOrder creates an order and returns the stored record.
func (t *txRepository) InsertOrder(ctx context.Context, o Order) (*Order, error) {
	query := `
		INSERT INTO orders (
			number, quote_id, client_id, title, description, total_price,
			status, planned_delivery_at, production_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, query,
		o.Number, o.QuoteID, o.ClientID, o.Title, o.Description, o.TotalPrice,
		o.Status, o.PlannedDeliveryAt, o.ProductionNotes,
	).Scan(&id)
	if err != nil {
		return nil, insertErr(err)
	}
	if err := t.markIssued(ctx, o.Number); err != nil {
		return nil, err
	}
	return getOne(ctx, t.tx, orderSelect+` WHERE o.id = $1`, id, scanOrder, ErrOrderNotFound)
}

// UpdateOrder updates order columns.
func (t *txRepository) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return updateColumns(ctx, t.tx, "orders", id, updates, ErrOrderNotFound)
}

// ============================================================================
// INVOICES
// ============================================================================

// GetInvoiceForUpdate reads an invoice and locks its row until commit.
func (t *txRepository) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return getOne(ctx, t.tx, invoiceSelect+` WHERE i.id = $1 FOR UPDATE OF i`, id, scanInvoice, ErrInvoiceNotFound)
}

// FindInvoiceByOrder returns the oldest invoice billing an order.
func (t *txRepository) FindInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	return getOne(ctx, t.tx, invoiceSelect+` WHERE i.order_id = $1 ORDER BY i.created_at LIMIT 1`, orderID, scanInvoice, ErrInvoiceNotFound)
}

// InsertInvoice creates an invoice and returns the stored record.
func (t *txRepository) InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	query := `
		INSERT INTO invoices (
			number, order_id, client_id, amount_ht, tax_amount, amount_ttc,
			status, issued_at, due_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var id uuid.UUID
	err := t.tx.QueryRow(ctx, query,
		inv.Number, inv.OrderID, inv.ClientID, inv.AmountHT, inv.TaxAmount, inv.AmountTTC,
		inv.Status, inv.IssuedAt, inv.DueAt,
	).Scan(&id)
	if err != nil {
		return nil, insertErr(err)
	}
	if err := t.markIssued(ctx, inv.Number); err != nil {
		return nil, err
	}
	return getOne(ctx, t.tx, invoiceSelect+` WHERE i.id = $1`, id, scanInvoice, ErrInvoiceNotFound)
}

// UpdateInvoice updates invoice columns.
func (t *txRepository) UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return updateColumns(ctx, t.tx, "invoices", id, updates, ErrInvoiceNotFound)
}

// MarkOverdue reclassifies issued invoices past their due date.
func (t *txRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	cmdTag, err := t.tx.Exec(ctx, `
		UPDATE invoices
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'issued' AND due_at < $1
	`, asOf)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

// ListInvoices returns invoices, most recently issued first.
func (t *txRepository) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	rows, err := t.tx.Query(ctx, invoiceSelect+`
		WHERE ($1::text = '' OR i.status = $1)
		ORDER BY i.issued_at DESC
	`, filter.Status)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanInvoice)
}

// GetInvoice retrieves an invoice by ID.
func (t *txRepository) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return getOne(ctx, t.tx, invoiceSelect+` WHERE i.id = $1`, id, scanInvoice, ErrInvoiceNotFound)
}
