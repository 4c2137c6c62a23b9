package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rapid-pub/backoffice/internal/numbering"
	"github.com/rapid-pub/backoffice/internal/platform/db"
)

// Repository defines the persistence of quotes, orders and invoices.
type Repository interface {
	// Read operations
	ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error)
	GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)

	// Write operations (transactional)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the operations that run inside a transaction. It
// doubles as the numbering store so numbers are allocated in the same
// transaction as the document insert.
type TxRepository interface {
	numbering.Store

	GetQuoteForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error)
	InsertQuote(ctx context.Context, q Quote) (*Quote, error)
	UpdateQuote(ctx context.Context, id uuid.UUID, updates map[string]any) error
	DeleteQuote(ctx context.Context, id uuid.UUID) error

	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	FindOrderByQuote(ctx context.Context, quoteID uuid.UUID) (*Order, error)
	InsertOrder(ctx context.Context, o Order) (*Order, error)
	UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error

	GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error)
	InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error)
	UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error

	// MarkOverdue reclassifies issued invoices whose due date is before asOf.
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
	ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// repository implements Repository using pgxpool.
type repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// txRepository implements TxRepository.
type txRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. Serialization
// failures surface as numbering conflicts so the unit of work is retried.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if db.IsSerializationFailure(err) {
		return fmt.Errorf("%w: %v", numbering.ErrConflict, err)
	}
	return err
}

const quoteSelect = `
	SELECT q.id, q.number, q.client_id, q.raw_request, q.title, q.description,
	       q.product_type, q.quantity, q.format, q.paper, q.finishing, q.double_sided,
	       q.unit_price, q.total_price, q.status, q.sent_at, q.responded_at,
	       q.valid_until, q.reminder_count, q.last_reminder_at, q.created_at, q.updated_at,
	       c.name, c.email, c.phone, c.company
	FROM quotes q
	LEFT JOIN clients c ON c.id = q.client_id
`

const orderSelect = `
	SELECT o.id, o.number, o.quote_id, o.client_id, o.title, o.description,
	       o.total_price, o.status, o.planned_delivery_at, o.delivered_at,
	       o.production_notes, o.created_at, o.updated_at,
	       c.name, c.email, c.phone, c.company
	FROM orders o
	LEFT JOIN clients c ON c.id = o.client_id
`

const invoiceSelect = `
	SELECT i.id, i.number, i.order_id, i.client_id, i.amount_ht, i.tax_amount,
	       i.amount_ttc, i.status, i.issued_at, i.due_at, i.paid_at,
	       i.created_at, i.updated_at, o.number,
	       c.name, c.email, c.phone, c.company
	FROM invoices i
	LEFT JOIN clients c ON c.id = i.client_id
	LEFT JOIN orders o ON o.id = i.order_id
`

type clientColumns struct {
	name, email, phone, company *string
}

func (c clientColumns) summary() *ClientSummary {
	if c.name == nil {
		return nil
	}
	return &ClientSummary{Name: *c.name, Email: c.email, Phone: c.phone, Company: c.company}
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var q Quote
	var cc clientColumns
	err := row.Scan(
		&q.ID, &q.Number, &q.ClientID, &q.RawRequest, &q.Title, &q.Description,
		&q.ProductType, &q.Quantity, &q.Format, &q.Paper, &q.Finishing, &q.DoubleSided,
		&q.UnitPrice, &q.TotalPrice, &q.Status, &q.SentAt, &q.RespondedAt,
		&q.ValidUntil, &q.ReminderCount, &q.LastReminderAt, &q.CreatedAt, &q.UpdatedAt,
		&cc.name, &cc.email, &cc.phone, &cc.company,
	)
	if err != nil {
		return nil, err
	}
	q.Client = cc.summary()
	return &q, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var cc clientColumns
	err := row.Scan(
		&o.ID, &o.Number, &o.QuoteID, &o.ClientID, &o.Title, &o.Description,
		&o.TotalPrice, &o.Status, &o.PlannedDeliveryAt, &o.DeliveredAt,
		&o.ProductionNotes, &o.CreatedAt, &o.UpdatedAt,
		&cc.name, &cc.email, &cc.phone, &cc.company,
	)
	if err != nil {
		return nil, err
	}
	o.Client = cc.summary()
	return &o, nil
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var cc clientColumns
	err := row.Scan(
		&inv.ID, &inv.Number, &inv.OrderID, &inv.ClientID, &inv.AmountHT, &inv.TaxAmount,
		&inv.AmountTTC, &inv.Status, &inv.IssuedAt, &inv.DueAt, &inv.PaidAt,
		&inv.CreatedAt, &inv.UpdatedAt, &inv.OrderNumber,
		&cc.name, &cc.email, &cc.phone, &cc.company,
	)
	if err != nil {
		return nil, err
	}
	inv.Client = cc.summary()
	return &inv, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]T, error) {
	defer rows.Close()
	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func getOne[T any](ctx context.Context, q querier, query string, id uuid.UUID, scan func(pgx.Row) (*T, error), notFound error) (*T, error) {
	item, err := scan(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, notFound
		}
		return nil, err
	}
	return item, nil
}

// ============================================================================
// QUOTES
// ============================================================================

// ListQuotes returns quotes, newest first.
func (r *repository) ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, quoteSelect+`
		WHERE ($1::text = '' OR q.status = $1)
		ORDER BY q.created_at DESC
	`, filter.Status)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanQuote)
}

// GetQuote retrieves a quote by ID.
func (r *repository) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return getOne(ctx, r.pool, quoteSelect+` WHERE q.id = $1`, id, scanQuote, ErrQuoteNotFound)
}

// ============================================================================
// ORDERS
// ============================================================================

// ListOrders returns orders still to produce first, then by planned delivery.
func (r *repository) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	rows, err := r.pool.Query(ctx, orderSelect+`
		WHERE ($1::text = '' OR o.status = $1)
		ORDER BY
			CASE o.status
				WHEN 'new' THEN 1
				WHEN 'in_production' THEN 2
				WHEN 'ready' THEN 3
				ELSE 4
			END,
			o.planned_delivery_at ASC NULLS LAST,
			o.created_at DESC
	`, filter.Status)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanOrder)
}

// GetOrder retrieves an order by ID.
func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOne(ctx, r.pool, orderSelect+` WHERE o.id = $1`, id, scanOrder, ErrOrderNotFound)
}
