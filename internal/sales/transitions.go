package sales

import (
	"fmt"
	"time"
)

// Spawn names the downstream document created by a transition.
type Spawn uint8

const (
	SpawnNone Spawn = iota
	SpawnOrder
	SpawnInvoice
)

// Increment is a column update adding its value to the stored one.
type Increment int

// Stamp sets Column to the transition instant shifted by Offset.
type Stamp struct {
	Column string
	Offset time.Duration
}

// Plan describes how a status change is applied to a stored document.
type Plan struct {
	Entity Entity
	From   string
	Target string
	// StoreStatus is false for pseudo targets such as the quote reminder.
	StoreStatus bool
	Stamps      []Stamp
	Reminder    bool
	Spawn       Spawn
}

// Columns renders the plan as column updates at instant now.
func (p Plan) Columns(now time.Time) map[string]any {
	cols := make(map[string]any, len(p.Stamps)+2)
	if p.StoreStatus {
		cols["status"] = p.Target
	}
	for _, s := range p.Stamps {
		cols[s.Column] = now.Add(s.Offset)
	}
	if p.Reminder {
		cols["reminder_count"] = Increment(1)
	}
	return cols
}

// Transitioner decides whether a status change is allowed and what it does.
type Transitioner interface {
	Plan(entity Entity, current, target string) (Plan, error)
}

// NewTransitioner returns the strict state machine when strict is set and
// the permissive one otherwise.
func NewTransitioner(strict bool) Transitioner {
	if strict {
		return StrictTransitions{}
	}
	return PermissiveTransitions{}
}

var alphabets = map[Entity]map[string]bool{
	EntityQuote: {
		string(QuoteStatusDraft): true, string(QuoteStatusSent): true, string(QuoteStatusAccepted): true,
		string(QuoteStatusRefused): true, string(QuoteStatusExpired): true,
	},
	EntityOrder: {
		string(OrderStatusNew): true, string(OrderStatusInProduction): true, string(OrderStatusReady): true,
		string(OrderStatusDelivered): true, string(OrderStatusCancelled): true,
	},
	EntityInvoice: {
		string(InvoiceStatusIssued): true, string(InvoiceStatusPaid): true, string(InvoiceStatusOverdue): true,
	},
}

// ValidStatus reports whether status belongs to the entity's alphabet.
func ValidStatus(entity Entity, status string) bool {
	return alphabets[entity][status]
}

// PermissiveTransitions accepts any known status from any current status.
// Only the quote reminder is guarded, since it is meaningless unless the
// quote is waiting for an answer.
type PermissiveTransitions struct{}

func (PermissiveTransitions) Plan(entity Entity, current, target string) (Plan, error) {
	return basePlan(entity, current, target)
}

// StrictTransitions only accepts the edges of the document lifecycles.
type StrictTransitions struct{}

var edges = map[Entity]map[string][]string{
	EntityQuote: {
		string(QuoteStatusDraft):   {string(QuoteStatusSent), string(QuoteStatusExpired)},
		string(QuoteStatusSent):    {string(QuoteStatusAccepted), string(QuoteStatusRefused), string(QuoteStatusExpired)},
		string(QuoteStatusExpired): {string(QuoteStatusSent)},
	},
	EntityOrder: {
		string(OrderStatusNew):          {string(OrderStatusInProduction), string(OrderStatusCancelled)},
		string(OrderStatusInProduction): {string(OrderStatusReady), string(OrderStatusCancelled)},
		string(OrderStatusReady):        {string(OrderStatusDelivered), string(OrderStatusCancelled)},
	},
	EntityInvoice: {
		string(InvoiceStatusIssued):  {string(InvoiceStatusPaid), string(InvoiceStatusOverdue)},
		string(InvoiceStatusOverdue): {string(InvoiceStatusPaid)},
	},
}

func (StrictTransitions) Plan(entity Entity, current, target string) (Plan, error) {
	plan, err := basePlan(entity, current, target)
	if err != nil || !plan.StoreStatus {
		return plan, err
	}
	for _, next := range edges[entity][current] {
		if next == target {
			return plan, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, entity, current, target)
}

func basePlan(entity Entity, current, target string) (Plan, error) {
	plan := Plan{Entity: entity, From: current, Target: target, StoreStatus: true}

	if entity == EntityQuote && IsReminder(target) {
		plan.Target = TargetReminder
		if current != string(QuoteStatusSent) {
			return Plan{}, fmt.Errorf("%w: reminder on a %s quote", ErrInvalidTransition, current)
		}
		plan.StoreStatus = false
		plan.Reminder = true
		plan.Stamps = []Stamp{{Column: "last_reminder_at"}}
		return plan, nil
	}
	if !ValidStatus(entity, target) {
		return Plan{}, fmt.Errorf("%w: %s %q", ErrUnknownState, entity, target)
	}

	switch entity {
	case EntityQuote:
		switch QuoteStatus(target) {
		case QuoteStatusSent:
			plan.Stamps = []Stamp{{Column: "sent_at"}, {Column: "valid_until", Offset: QuoteValidity}}
		case QuoteStatusAccepted:
			plan.Stamps = []Stamp{{Column: "responded_at"}}
			plan.Spawn = SpawnOrder
		case QuoteStatusRefused:
			plan.Stamps = []Stamp{{Column: "responded_at"}}
		}
	case EntityOrder:
		if OrderStatus(target) == OrderStatusDelivered {
			plan.Stamps = []Stamp{{Column: "delivered_at"}}
			plan.Spawn = SpawnInvoice
		}
	case EntityInvoice:
		if InvoiceStatus(target) == InvoiceStatusPaid {
			plan.Stamps = []Stamp{{Column: "paid_at"}}
		}
	}
	return plan, nil
}

// SpawnFor returns the document a transition to target creates, without
// consulting the current status.
func SpawnFor(entity Entity, target string) Spawn {
	switch {
	case entity == EntityQuote && target == string(QuoteStatusAccepted):
		return SpawnOrder
	case entity == EntityOrder && target == string(OrderStatusDelivered):
		return SpawnInvoice
	}
	return SpawnNone
}
