package clients

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Client is a customer of the shop.
type Client struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     *string   `json:"email"`
	Phone     *string   `json:"phone"`
	Address   *string   `json:"address"`
	Company   *string   `json:"company"`
	Notes     *string   `json:"notes"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WithStats is a client with its order history, cancelled orders excluded.
type WithStats struct {
	Client
	OrdersCount  int             `json:"orders_count"`
	RevenueTotal decimal.Decimal `json:"revenue_total"`
	LastOrderAt  *time.Time      `json:"last_order_at"`
}

// Reference describes the client of a new document. Email is matched
// first, then the exact name ignoring case.
type Reference struct {
	Name    string
	Email   *string
	Phone   *string
	Company *string
}
