package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rapid-pub/backoffice/internal/numbering"
)

// DefaultTaxRate applies when no rate is configured.
var DefaultTaxRate = decimal.RequireFromString("0.20")

// Chain creates the downstream documents of the quote, order and invoice
// lifecycle. It always runs inside the transaction of the triggering
// transition.
type Chain struct {
	numbers *numbering.Service
	guard   bool
}

// NewChain builds a Chain. With guard set, a second spawn for the same
// originating document returns the existing one instead of inserting.
func NewChain(numbers *numbering.Service, guard bool) *Chain {
	return &Chain{numbers: numbers, guard: guard}
}

// SpawnOrder creates the production order of an accepted quote. The boolean
// is false when the guard returned an existing order.
func (c *Chain) SpawnOrder(ctx context.Context, tx TxRepository, quote *Quote, now time.Time) (*Order, bool, error) {
	if c.guard {
		existing, err := tx.FindOrderByQuote(ctx, quote.ID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, false, fmt.Errorf("find order of quote %s: %w", quote.Number, err)
		}
	}

	number, err := c.numbers.Next(ctx, tx, numbering.KindOrder)
	if err != nil {
		return nil, false, err
	}
	planned := now.Add(DeliveryLead)
	quoteID := quote.ID
	order, err := tx.InsertOrder(ctx, Order{
		Number:            number,
		QuoteID:           &quoteID,
		ClientID:          quote.ClientID,
		Title:             quote.Title,
		Description:       quote.Description,
		TotalPrice:        quote.TotalPrice,
		Status:            OrderStatusNew,
		PlannedDeliveryAt: &planned,
	})
	if err != nil {
		return nil, false, fmt.Errorf("insert order %s: %w", number, err)
	}
	return order, true, nil
}

// SpawnInvoice bills a delivered order at the given tax rate.
func (c *Chain) SpawnInvoice(ctx context.Context, tx TxRepository, order *Order, rate decimal.Decimal, now time.Time) (*Invoice, bool, error) {
	if c.guard {
		existing, err := tx.FindInvoiceByOrder(ctx, order.ID)
		if err == nil {
			return existing, false, nil
		}
		if !errors.Is(err, ErrInvoiceNotFound) {
			return nil, false, fmt.Errorf("find invoice of order %s: %w", order.Number, err)
		}
	}

	number, err := c.numbers.Next(ctx, tx, numbering.KindInvoice)
	if err != nil {
		return nil, false, err
	}
	ht, tax, ttc := InvoiceAmounts(order.TotalPrice, rate)
	orderID := order.ID
	invoice, err := tx.InsertInvoice(ctx, Invoice{
		Number:    number,
		OrderID:   &orderID,
		ClientID:  order.ClientID,
		AmountHT:  ht,
		TaxAmount: tax,
		AmountTTC: ttc,
		Status:    InvoiceStatusIssued,
		IssuedAt:  now,
		DueAt:     now.Add(PaymentTerm),
	})
	if err != nil {
		return nil, false, fmt.Errorf("insert invoice %s: %w", number, err)
	}
	return invoice, true, nil
}

// InvoiceAmounts computes pre-tax, tax and total amounts from an order
// total. A missing total bills zero.
func InvoiceAmounts(total decimal.NullDecimal, rate decimal.Decimal) (ht, tax, ttc decimal.Decimal) {
	if total.Valid {
		ht = total.Decimal
	}
	tax = ht.Mul(rate).Round(2)
	ttc = ht.Add(tax)
	return ht, tax, ttc
}
