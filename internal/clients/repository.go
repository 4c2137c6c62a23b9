package clients

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rapid-pub/backoffice/internal/platform/db"
	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

var ErrNotFound = fmt.Errorf("client: %w", httpx.ErrNotFound)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id uuid.UUID) (*Client, error)
	FindByEmail(ctx context.Context, email string) (*Client, error)
	FindByName(ctx context.Context, name string) (*Client, error)
	List(ctx context.Context) ([]WithStats, error)
	Create(ctx context.Context, client Client) (*Client, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const clientColumns = `id, name, email, phone, address, company, notes, status, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Company, &c.Notes, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id))
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE lower(email) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`, email))
}

func (r *repository) FindByName(ctx context.Context, name string) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx, `
		SELECT `+clientColumns+`
		FROM clients
		WHERE lower(name) = lower($1)
		ORDER BY created_at
		LIMIT 1
	`, name))
}

func (r *repository) List(ctx context.Context) ([]WithStats, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.name, c.email, c.phone, c.address, c.company, c.notes, c.status,
		       c.created_at, c.updated_at,
		       COALESCE(s.orders_count, 0), COALESCE(s.revenue_total, 0), s.last_order_at
		FROM clients c
		LEFT JOIN (
			SELECT client_id,
			       COUNT(*) AS orders_count,
			       SUM(total_price) AS revenue_total,
			       MAX(created_at) AS last_order_at
			FROM orders
			WHERE status <> 'cancelled'
			GROUP BY client_id
		) s ON s.client_id = c.id
		ORDER BY c.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]WithStats, 0)
	for rows.Next() {
		var c WithStats
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.Company, &c.Notes, &c.Status,
			&c.CreatedAt, &c.UpdatedAt,
			&c.OrdersCount, &c.RevenueTotal, &c.LastOrderAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, client Client) (*Client, error) {
	return scanClient(r.db.QueryRow(ctx, `
		INSERT INTO clients (name, email, phone, address, company, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+clientColumns,
		client.Name, client.Email, client.Phone, client.Address, client.Company, client.Notes, client.Status,
	))
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	fields := make([]string, 0, len(updates))
	for field := range updates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var setClauses []string
	var args []any
	argPos := 1
	for _, field := range fields {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", field, argPos))
		args = append(args, updates[field])
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), argPos)
	cmdTag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
