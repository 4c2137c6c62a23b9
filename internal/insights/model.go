// Package insights serves read-only projections over quotes, orders and
// invoices: alerts, statistics, the dashboard board, search and the
// delivery calendar.
package insights

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AlertLevel string

const (
	LevelDanger  AlertLevel = "danger"
	LevelWarning AlertLevel = "warning"
	LevelInfo    AlertLevel = "info"
)

var levelRank = map[AlertLevel]int{LevelDanger: 0, LevelWarning: 1, LevelInfo: 2}

// Alert is one actionable item on the dashboard.
type Alert struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Level       AlertLevel `json:"level"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Link        string     `json:"link"`
	Date        time.Time  `json:"date"`
}

// ============================================================================
// SOURCE ROWS
// ============================================================================

type SentQuote struct {
	ID            uuid.UUID
	Number        string
	ClientName    *string
	SentAt        time.Time
	ReminderCount int
}

type OpenInvoice struct {
	ID         uuid.UUID
	Number     string
	ClientName *string
	AmountTTC  decimal.Decimal
	Status     string
	DueAt      time.Time
}

type ReadyOrder struct {
	ID         uuid.UUID
	Number     string
	ClientName *string
	Title      *string
	UpdatedAt  time.Time
}

// ============================================================================
// STATS
// ============================================================================

type MonthRevenue struct {
	Month   string          `json:"month"`
	Revenue decimal.Decimal `json:"revenue"`
}

type ClientRevenue struct {
	Name    string          `json:"name"`
	Company *string         `json:"company"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

type ProductShare struct {
	Type   string          `json:"type"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

type Totals struct {
	Clients          int             `json:"clients"`
	DraftQuotes      int             `json:"draft_quotes"`
	SentQuotes       int             `json:"sent_quotes"`
	OrdersInProgress int             `json:"orders_in_progress"`
	PendingAmount    decimal.Decimal `json:"pending_amount"`
	OverdueAmount    decimal.Decimal `json:"overdue_amount"`
	PaidThisMonth    decimal.Decimal `json:"paid_this_month"`
}

type QuoteCounts struct {
	Accepted int
	NonDraft int
}

type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

type Stats struct {
	RevenueByMonth []MonthRevenue  `json:"revenue_by_month"`
	ConversionRate int             `json:"conversion_rate"`
	TopClients     []ClientRevenue `json:"top_clients"`
	ProductMix     []ProductShare  `json:"product_mix"`
	Totals         Totals          `json:"totals"`
	OrdersByStatus map[string]int  `json:"orders_by_status"`
	Activity       []DayCount      `json:"activity"`
}

// ============================================================================
// DASHBOARD
// ============================================================================

// Card is one item of the dashboard board.
type Card struct {
	ID              uuid.UUID           `json:"id"`
	Kind            string              `json:"kind"`
	Number          string              `json:"number"`
	ClientName      string              `json:"client_name"`
	Title           string              `json:"title"`
	Price           decimal.NullDecimal `json:"price"`
	Status          string              `json:"status"`
	CreatedAt       time.Time           `json:"created_at"`
	SentAt          *time.Time          `json:"sent_at,omitempty"`
	DaysSinceSent   *int                `json:"days_since_sent,omitempty"`
	ReminderCount   *int                `json:"reminder_count,omitempty"`
	PlannedDelivery *time.Time          `json:"planned_delivery_at,omitempty"`
}

type Board struct {
	ToProcess    []Card `json:"to_process"`
	QuotesSent   []Card `json:"quotes_sent"`
	InProduction []Card `json:"in_production"`
	Done         []Card `json:"done"`
}

// ============================================================================
// SEARCH & CALENDAR
// ============================================================================

// SearchHit is a raw match; the service renders it into a SearchResult.
type SearchHit struct {
	ID         uuid.UUID
	Kind       string
	Label      string
	Title      *string
	ClientName *string
	Company    *string
	Email      *string
	Amount     decimal.NullDecimal
}

type SearchResult struct {
	ID       uuid.UUID `json:"id"`
	Kind     string    `json:"kind"`
	Title    string    `json:"title"`
	Subtitle string    `json:"subtitle"`
	Link     string    `json:"link"`
}

type Delivery struct {
	ID                uuid.UUID           `json:"id"`
	Number            string              `json:"number"`
	Title             *string             `json:"title"`
	Status            string              `json:"status"`
	PlannedDeliveryAt time.Time           `json:"planned_delivery_at"`
	TotalPrice        decimal.NullDecimal `json:"total_price"`
	ClientName        *string             `json:"client_name"`
}

type Calendar struct {
	Start  string                `json:"start"`
	End    string                `json:"end"`
	Orders []Delivery            `json:"orders"`
	ByDay  map[string][]Delivery `json:"by_day"`
}
