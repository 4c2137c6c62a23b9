package insights

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the read-only queries behind every projection.
type Repository interface {
	SentQuotes(ctx context.Context) ([]SentQuote, error)
	OpenInvoices(ctx context.Context) ([]OpenInvoice, error)
	ReadyOrders(ctx context.Context) ([]ReadyOrder, error)

	RevenueByMonth(ctx context.Context, since time.Time) ([]MonthRevenue, error)
	QuoteCounts(ctx context.Context) (QuoteCounts, error)
	TopClients(ctx context.Context, limit int) ([]ClientRevenue, error)
	ProductMix(ctx context.Context) ([]ProductShare, error)
	Totals(ctx context.Context, monthStart time.Time) (Totals, error)
	OrdersByStatus(ctx context.Context) (map[string]int, error)
	Activity(ctx context.Context, since time.Time) ([]DayCount, error)

	QuoteCards(ctx context.Context, status string) ([]Card, error)
	ProductionCards(ctx context.Context) ([]Card, error)
	DoneCards(ctx context.Context, since time.Time) ([]Card, error)

	Search(ctx context.Context, pattern string, limit int) ([]SearchHit, error)
	Deliveries(ctx context.Context, from, to time.Time) ([]Delivery, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func queryAll[T any](ctx context.Context, pool *pgxpool.Pool, scan func(pgx.Rows) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ============================================================================
// ALERT SOURCES
// ============================================================================

func (r *repository) SentQuotes(ctx context.Context) ([]SentQuote, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (SentQuote, error) {
		var q SentQuote
		err := rows.Scan(&q.ID, &q.Number, &q.ClientName, &q.SentAt, &q.ReminderCount)
		return q, err
	}, `
		SELECT q.id, q.number, c.name, q.sent_at, q.reminder_count
		FROM quotes q
		LEFT JOIN clients c ON c.id = q.client_id
		WHERE q.status = 'sent' AND q.sent_at IS NOT NULL
		ORDER BY q.sent_at
	`)
}

func (r *repository) OpenInvoices(ctx context.Context) ([]OpenInvoice, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (OpenInvoice, error) {
		var i OpenInvoice
		err := rows.Scan(&i.ID, &i.Number, &i.ClientName, &i.AmountTTC, &i.Status, &i.DueAt)
		return i, err
	}, `
		SELECT i.id, i.number, c.name, i.amount_ttc, i.status, i.due_at
		FROM invoices i
		LEFT JOIN clients c ON c.id = i.client_id
		WHERE i.status IN ('issued', 'overdue')
		ORDER BY i.due_at
	`)
}

func (r *repository) ReadyOrders(ctx context.Context) ([]ReadyOrder, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (ReadyOrder, error) {
		var o ReadyOrder
		err := rows.Scan(&o.ID, &o.Number, &o.ClientName, &o.Title, &o.UpdatedAt)
		return o, err
	}, `
		SELECT o.id, o.number, c.name, o.title, o.updated_at
		FROM orders o
		LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.status = 'ready'
		ORDER BY o.updated_at
	`)
}

// ============================================================================
// STATS
// ============================================================================

func (r *repository) RevenueByMonth(ctx context.Context, since time.Time) ([]MonthRevenue, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (MonthRevenue, error) {
		var m MonthRevenue
		err := rows.Scan(&m.Month, &m.Revenue)
		return m, err
	}, `
		SELECT TO_CHAR(issued_at, 'YYYY-MM') AS month, SUM(amount_ttc)
		FROM invoices
		WHERE status IN ('issued', 'paid') AND issued_at >= $1
		GROUP BY month
		ORDER BY month
	`, since)
}

func (r *repository) QuoteCounts(ctx context.Context) (QuoteCounts, error) {
	var c QuoteCounts
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE status = 'accepted'),
		       COUNT(*) FILTER (WHERE status <> 'draft')
		FROM quotes
	`).Scan(&c.Accepted, &c.NonDraft)
	return c, err
}

func (r *repository) TopClients(ctx context.Context, limit int) ([]ClientRevenue, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (ClientRevenue, error) {
		var c ClientRevenue
		err := rows.Scan(&c.Name, &c.Company, &c.Revenue, &c.Orders)
		return c, err
	}, `
		SELECT c.name, c.company,
		       COALESCE(SUM(i.amount_ttc), 0),
		       COUNT(DISTINCT o.id)
		FROM clients c
		LEFT JOIN orders o ON o.client_id = c.id
		LEFT JOIN invoices i ON i.order_id = o.id AND i.status IN ('issued', 'paid')
		GROUP BY c.id, c.name, c.company
		ORDER BY 3 DESC, c.name
		LIMIT $1
	`, limit)
}

func (r *repository) ProductMix(ctx context.Context) ([]ProductShare, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (ProductShare, error) {
		var p ProductShare
		err := rows.Scan(&p.Type, &p.Count, &p.Amount)
		return p, err
	}, `
		SELECT COALESCE(product_type, 'other') AS type, COUNT(*), COALESCE(SUM(total_price), 0)
		FROM quotes
		WHERE status = 'accepted'
		GROUP BY 1
		ORDER BY 3 DESC
	`)
}

func (r *repository) Totals(ctx context.Context, monthStart time.Time) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM clients),
			(SELECT COUNT(*) FROM quotes WHERE status = 'draft'),
			(SELECT COUNT(*) FROM quotes WHERE status = 'sent'),
			(SELECT COUNT(*) FROM orders WHERE status IN ('new', 'in_production')),
			(SELECT COALESCE(SUM(amount_ttc), 0) FROM invoices WHERE status = 'issued'),
			(SELECT COALESCE(SUM(amount_ttc), 0) FROM invoices WHERE status = 'overdue'),
			(SELECT COALESCE(SUM(amount_ttc), 0) FROM invoices WHERE status = 'paid' AND paid_at >= $1)
	`, monthStart).Scan(
		&t.Clients, &t.DraftQuotes, &t.SentQuotes, &t.OrdersInProgress,
		&t.PendingAmount, &t.OverdueAmount, &t.PaidThisMonth,
	)
	return t, err
}

func (r *repository) OrdersByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *repository) Activity(ctx context.Context, since time.Time) ([]DayCount, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (DayCount, error) {
		var d DayCount
		err := rows.Scan(&d.Day, &d.Count)
		return d, err
	}, `
		SELECT TO_CHAR(created_at, 'YYYY-MM-DD') AS day, COUNT(*)
		FROM (
			SELECT created_at FROM quotes WHERE created_at >= $1
			UNION ALL
			SELECT created_at FROM orders WHERE created_at >= $1
		) activity
		GROUP BY day
		ORDER BY day
	`, since)
}

// ============================================================================
// DASHBOARD
// ============================================================================

func scanCard(kind string) func(pgx.Rows) (Card, error) {
	return func(rows pgx.Rows) (Card, error) {
		c := Card{Kind: kind}
		var client, title *string
		err := rows.Scan(&c.ID, &c.Number, &client, &title, &c.Price, &c.Status,
			&c.CreatedAt, &c.SentAt, &c.ReminderCount, &c.PlannedDelivery)
		if client != nil {
			c.ClientName = *client
		}
		if title != nil {
			c.Title = *title
		}
		return c, err
	}
}

func (r *repository) QuoteCards(ctx context.Context, status string) ([]Card, error) {
	return queryAll(ctx, r.pool, scanCard("quote"), `
		SELECT q.id, q.number, c.name, q.title, q.total_price, q.status,
		       q.created_at, q.sent_at, q.reminder_count, NULL::timestamptz
		FROM quotes q
		LEFT JOIN clients c ON c.id = q.client_id
		WHERE q.status = $1
		ORDER BY CASE WHEN q.status = 'sent' THEN q.sent_at END ASC NULLS LAST,
		         q.created_at DESC
	`, status)
}

func (r *repository) ProductionCards(ctx context.Context) ([]Card, error) {
	return queryAll(ctx, r.pool, scanCard("order"), `
		SELECT o.id, o.number, c.name, o.title, o.total_price, o.status,
		       o.created_at, NULL::timestamptz, NULL::int, o.planned_delivery_at
		FROM orders o
		LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.status IN ('new', 'in_production')
		ORDER BY o.planned_delivery_at ASC NULLS LAST
	`)
}

func (r *repository) DoneCards(ctx context.Context, since time.Time) ([]Card, error) {
	return queryAll(ctx, r.pool, scanCard("order"), `
		SELECT o.id, o.number, c.name, o.title, o.total_price, o.status,
		       o.created_at, NULL::timestamptz, NULL::int, o.planned_delivery_at
		FROM orders o
		LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.status IN ('ready', 'delivered') AND o.updated_at > $1
		ORDER BY o.updated_at DESC
	`, since)
}

// ============================================================================
// SEARCH & CALENDAR
// ============================================================================

func (r *repository) Search(ctx context.Context, pattern string, limit int) ([]SearchHit, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (SearchHit, error) {
		var h SearchHit
		var ord int
		err := rows.Scan(&ord, &h.ID, &h.Kind, &h.Label, &h.Title, &h.ClientName, &h.Company, &h.Email, &h.Amount)
		return h, err
	}, `
		(SELECT 0, id, 'client', name, NULL::text, name, company, email, NULL::numeric
		 FROM clients
		 WHERE name ILIKE $1 OR company ILIKE $1 OR email ILIKE $1
		 ORDER BY name LIMIT $2)
		UNION ALL
		(SELECT 1, q.id, 'quote', q.number, q.title, c.name, c.company, c.email, q.total_price
		 FROM quotes q LEFT JOIN clients c ON c.id = q.client_id
		 WHERE q.number ILIKE $1 OR q.title ILIKE $1 OR c.name ILIKE $1
		 ORDER BY q.created_at DESC LIMIT $2)
		UNION ALL
		(SELECT 2, o.id, 'order', o.number, o.title, c.name, c.company, c.email, o.total_price
		 FROM orders o LEFT JOIN clients c ON c.id = o.client_id
		 WHERE o.number ILIKE $1 OR o.title ILIKE $1 OR c.name ILIKE $1
		 ORDER BY o.created_at DESC LIMIT $2)
		UNION ALL
		(SELECT 3, i.id, 'invoice', i.number, NULL::text, c.name, c.company, c.email, i.amount_ttc
		 FROM invoices i LEFT JOIN clients c ON c.id = i.client_id
		 WHERE i.number ILIKE $1 OR c.name ILIKE $1
		 ORDER BY i.created_at DESC LIMIT $2)
		ORDER BY 1
	`, pattern, limit)
}

func (r *repository) Deliveries(ctx context.Context, from, to time.Time) ([]Delivery, error) {
	return queryAll(ctx, r.pool, func(rows pgx.Rows) (Delivery, error) {
		var d Delivery
		err := rows.Scan(&d.ID, &d.Number, &d.Title, &d.Status, &d.PlannedDeliveryAt, &d.TotalPrice, &d.ClientName)
		return d, err
	}, `
		SELECT o.id, o.number, o.title, o.status, o.planned_delivery_at, o.total_price, c.name
		FROM orders o
		LEFT JOIN clients c ON c.id = o.client_id
		WHERE o.planned_delivery_at >= $1 AND o.planned_delivery_at < $2
		  AND o.status NOT IN ('delivered', 'cancelled')
		ORDER BY o.planned_delivery_at
	`, from, to)
}
