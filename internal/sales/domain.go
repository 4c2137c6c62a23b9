package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Entity names one of the three document families handled here.
type Entity string

const (
	EntityQuote   Entity = "quote"
	EntityOrder   Entity = "order"
	EntityInvoice Entity = "invoice"
)

// ============================================================================
// QUOTE
// ============================================================================

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRefused  QuoteStatus = "refused"
	QuoteStatusExpired  QuoteStatus = "expired"
)

// TargetReminder is the pseudo status that records a client reminder on a
// sent quote. It is never stored. TargetRelance is its French alias.
const (
	TargetReminder = "reminder"
	TargetRelance  = "relance"
)

// IsReminder reports whether target names the reminder pseudo status.
func IsReminder(target string) bool {
	return target == TargetReminder || target == TargetRelance
}

// ProductType classifies the print job of a quote.
type ProductType string

const (
	ProductFlyers        ProductType = "flyers"
	ProductBusinessCards ProductType = "business_cards"
	ProductPosters       ProductType = "posters"
	ProductLeaflets      ProductType = "leaflets"
	ProductRollupBanner  ProductType = "rollup_banner"
	ProductStickers      ProductType = "stickers"
	ProductBrochures     ProductType = "brochures"
	ProductOther         ProductType = "other"
)

// Valid reports whether p is a known product type.
func (p ProductType) Valid() bool {
	switch p {
	case ProductFlyers, ProductBusinessCards, ProductPosters, ProductLeaflets,
		ProductRollupBanner, ProductStickers, ProductBrochures, ProductOther:
		return true
	}
	return false
}

// Quote is a priced proposal for a print job.
type Quote struct {
	ID             uuid.UUID           `json:"id"`
	Number         string              `json:"number"`
	ClientID       *uuid.UUID          `json:"client_id"`
	RawRequest     *string             `json:"raw_request"`
	Title          *string             `json:"title"`
	Description    *string             `json:"description"`
	ProductType    *ProductType        `json:"product_type"`
	Quantity       *int                `json:"quantity"`
	Format         *string             `json:"format"`
	Paper          *string             `json:"paper"`
	Finishing      *string             `json:"finishing"`
	DoubleSided    bool                `json:"double_sided"`
	UnitPrice      decimal.NullDecimal `json:"unit_price"`
	TotalPrice     decimal.NullDecimal `json:"total_price"`
	Status         QuoteStatus         `json:"status"`
	SentAt         *time.Time          `json:"sent_at"`
	RespondedAt    *time.Time          `json:"responded_at"`
	ValidUntil     *time.Time          `json:"valid_until"`
	ReminderCount  int                 `json:"reminder_count"`
	LastReminderAt *time.Time          `json:"last_reminder_at"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`

	Client *ClientSummary `json:"client,omitempty"`
}

// ClientSummary is the client projection joined onto documents.
type ClientSummary struct {
	Name    string  `json:"name"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Company *string `json:"company,omitempty"`
}

// QuoteClient identifies or describes the client of a new quote. Either ID or
// Name must be given; an unknown name creates the client.
type QuoteClient struct {
	ID      *uuid.UUID `json:"id,omitempty"`
	Name    string     `json:"name,omitempty" validate:"omitempty,max=200"`
	Email   *string    `json:"email,omitempty" validate:"omitempty,email"`
	Phone   *string    `json:"phone,omitempty" validate:"omitempty,max=50"`
	Company *string    `json:"company,omitempty" validate:"omitempty,max=200"`
}

type CreateQuoteRequest struct {
	ClientID    *uuid.UUID       `json:"client_id,omitempty"`
	Client      *QuoteClient     `json:"client,omitempty"`
	RawRequest  *string          `json:"raw_request,omitempty"`
	Title       *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	ProductType *ProductType     `json:"product_type,omitempty" validate:"omitempty,oneof=flyers business_cards posters leaflets rollup_banner stickers brochures other"`
	Quantity    *int             `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Format      *string          `json:"format,omitempty" validate:"omitempty,max=50"`
	Paper       *string          `json:"paper,omitempty" validate:"omitempty,max=50"`
	Finishing   *string          `json:"finishing,omitempty" validate:"omitempty,max=200"`
	DoubleSided *bool            `json:"double_sided,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	TotalPrice  *decimal.Decimal `json:"total_price,omitempty"`
	Status      QuoteStatus      `json:"status,omitempty" validate:"omitempty,oneof=draft sent"`
}

// UpdateQuoteRequest carries a status target and/or field updates. Nil
// fields keep their stored value.
type UpdateQuoteRequest struct {
	Status      *string          `json:"status,omitempty" validate:"omitempty,max=32"`
	Title       *string          `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string          `json:"description,omitempty"`
	ProductType *ProductType     `json:"product_type,omitempty" validate:"omitempty,oneof=flyers business_cards posters leaflets rollup_banner stickers brochures other"`
	Quantity    *int             `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Format      *string          `json:"format,omitempty" validate:"omitempty,max=50"`
	Paper       *string          `json:"paper,omitempty" validate:"omitempty,max=50"`
	Finishing   *string          `json:"finishing,omitempty" validate:"omitempty,max=200"`
	DoubleSided *bool            `json:"double_sided,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	TotalPrice  *decimal.Decimal `json:"total_price,omitempty"`
}

// Fields returns the column updates carried by the request.
func (r UpdateQuoteRequest) Fields() map[string]any {
	fields := make(map[string]any)
	if r.Title != nil {
		fields["title"] = *r.Title
	}
	if r.Description != nil {
		fields["description"] = *r.Description
	}
	if r.ProductType != nil {
		fields["product_type"] = string(*r.ProductType)
	}
	if r.Quantity != nil {
		fields["quantity"] = *r.Quantity
	}
	if r.Format != nil {
		fields["format"] = *r.Format
	}
	if r.Paper != nil {
		fields["paper"] = *r.Paper
	}
	if r.Finishing != nil {
		fields["finishing"] = *r.Finishing
	}
	if r.DoubleSided != nil {
		fields["double_sided"] = *r.DoubleSided
	}
	if r.UnitPrice != nil {
		fields["unit_price"] = *r.UnitPrice
	}
	if r.TotalPrice != nil {
		fields["total_price"] = *r.TotalPrice
	}
	return fields
}

// ============================================================================
// ORDER
// ============================================================================

type OrderStatus string

const (
	OrderStatusNew          OrderStatus = "new"
	OrderStatusInProduction OrderStatus = "in_production"
	OrderStatusReady        OrderStatus = "ready"
	OrderStatusDelivered    OrderStatus = "delivered"
	OrderStatusCancelled    OrderStatus = "cancelled"
)

// Order is a confirmed production job.
type Order struct {
	ID                uuid.UUID           `json:"id"`
	Number            string              `json:"number"`
	QuoteID           *uuid.UUID          `json:"quote_id"`
	ClientID          *uuid.UUID          `json:"client_id"`
	Title             *string             `json:"title"`
	Description       *string             `json:"description"`
	TotalPrice        decimal.NullDecimal `json:"total_price"`
	Status            OrderStatus         `json:"status"`
	PlannedDeliveryAt *time.Time          `json:"planned_delivery_at"`
	DeliveredAt       *time.Time          `json:"delivered_at"`
	ProductionNotes   *string             `json:"production_notes"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`

	Client *ClientSummary `json:"client,omitempty"`
}

type UpdateOrderRequest struct {
	Status          *string `json:"status,omitempty" validate:"omitempty,max=32"`
	ProductionNotes *string `json:"production_notes,omitempty"`
}

// ============================================================================
// INVOICE
// ============================================================================

type InvoiceStatus string

const (
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Invoice bills a delivered order.
type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	Number      string          `json:"number"`
	OrderID     *uuid.UUID      `json:"order_id"`
	ClientID    *uuid.UUID      `json:"client_id"`
	AmountHT    decimal.Decimal `json:"amount_ht"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	AmountTTC   decimal.Decimal `json:"amount_ttc"`
	Status      InvoiceStatus   `json:"status"`
	IssuedAt    time.Time       `json:"issued_at"`
	DueAt       time.Time       `json:"due_at"`
	PaidAt      *time.Time      `json:"paid_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	OrderNumber *string         `json:"order_number,omitempty"`

	Client *ClientSummary `json:"client,omitempty"`
}

type UpdateInvoiceRequest struct {
	Status *string `json:"status,omitempty" validate:"omitempty,max=32"`
}

// ============================================================================
// LISTING
// ============================================================================

// ListFilter narrows list queries. An empty Status lists everything.
type ListFilter struct {
	Status string
}

// Durations of the chain.
const (
	QuoteValidity = 30 * 24 * time.Hour
	DeliveryLead  = 7 * 24 * time.Hour
	PaymentTerm   = 30 * 24 * time.Hour
)
