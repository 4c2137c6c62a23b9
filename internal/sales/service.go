package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rapid-pub/backoffice/internal/clients"
	"github.com/rapid-pub/backoffice/internal/numbering"
)

// ClientResolver finds or creates the client named on a new quote.
type ClientResolver interface {
	Resolve(ctx context.Context, ref clients.Reference) (*clients.Client, error)
}

// TaxRateSource returns the configured tax rate, or fallback when none is set.
type TaxRateSource interface {
	TaxRate(ctx context.Context, fallback decimal.Decimal) (decimal.Decimal, error)
}

// Recorder receives document lifecycle events for metrics.
type Recorder interface {
	DocumentCreated(kind string)
	TransitionApplied(entity, target string)
}

// Invalidator drops cached projections after a write.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service provides business logic for quotes, orders and invoices.
type Service struct {
	repo        Repository
	numbers     *numbering.Service
	transitions Transitioner
	chain       *Chain
	clients     ClientResolver
	taxRates    TaxRateSource
	recorder    Recorder
	cache       Invalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a new service with permissive transitions and no
// spawn guard.
func NewService(repo Repository, numbers *numbering.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        repo,
		numbers:     numbers,
		transitions: PermissiveTransitions{},
		chain:       NewChain(numbers, false),
		logger:      logger,
		now:         time.Now,
	}
}

// SetTransitioner replaces the transition rules.
func (s *Service) SetTransitioner(t Transitioner) {
	s.transitions = t
}

// SetSpawnGuard toggles the duplicate spawn guard of the document chain.
func (s *Service) SetSpawnGuard(enabled bool) {
	s.chain = NewChain(s.numbers, enabled)
}

// SetClientResolver sets the resolver used for implicit clients.
func (s *Service) SetClientResolver(r ClientResolver) {
	s.clients = r
}

// SetTaxRates sets the tax rate source used when billing.
func (s *Service) SetTaxRates(src TaxRateSource) {
	s.taxRates = src
}

// SetRecorder sets the metrics recorder.
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// SetInvalidator sets the cache invalidated after writes.
func (s *Service) SetInvalidator(c Invalidator) {
	s.cache = c
}

// ============================================================================
// QUOTES
// ============================================================================

// ListQuotes lists quotes, optionally filtered by status.
func (s *Service) ListQuotes(ctx context.Context, status string) ([]Quote, error) {
	if err := checkFilter(EntityQuote, status); err != nil {
		return nil, err
	}
	return s.repo.ListQuotes(ctx, ListFilter{Status: status})
}

// GetQuote returns a quote.
func (s *Service) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	return s.repo.GetQuote(ctx, id)
}

// CreateQuote numbers and stores a new quote. A quote created as sent gets
// its send and validity dates immediately.
func (s *Service) CreateQuote(ctx context.Context, req CreateQuoteRequest) (*Quote, error) {
	clientID, err := s.resolveClient(ctx, req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	quote := Quote{
		ClientID:    clientID,
		RawRequest:  req.RawRequest,
		Title:       req.Title,
		Description: req.Description,
		ProductType: req.ProductType,
		Quantity:    req.Quantity,
		Format:      req.Format,
		Paper:       req.Paper,
		Finishing:   req.Finishing,
		Status:      req.Status,
	}
	if quote.Status == "" {
		quote.Status = QuoteStatusDraft
	}
	if req.DoubleSided != nil {
		quote.DoubleSided = *req.DoubleSided
	}
	if req.UnitPrice != nil {
		quote.UnitPrice = decimal.NewNullDecimal(*req.UnitPrice)
	}
	if req.TotalPrice != nil {
		quote.TotalPrice = decimal.NewNullDecimal(*req.TotalPrice)
	}
	if quote.Status == QuoteStatusSent {
		validUntil := now.Add(QuoteValidity)
		quote.SentAt = &now
		quote.ValidUntil = &validUntil
	}

	var created *Quote
	err = s.numbers.Run(ctx, numbering.KindQuote, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			number, err := s.numbers.Next(ctx, tx, numbering.KindQuote)
			if err != nil {
				return err
			}
			quote.Number = number
			created, err = tx.InsertQuote(ctx, quote)
			if err != nil {
				return fmt.Errorf("insert quote %s: %w", number, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.documentCreated(numbering.KindQuote)
	s.invalidate(ctx)
	s.logger.Info("quote created", slog.String("number", created.Number), slog.String("status", string(created.Status)))
	return created, nil
}

func (s *Service) resolveClient(ctx context.Context, req CreateQuoteRequest) (*uuid.UUID, error) {
	if req.ClientID != nil {
		return req.ClientID, nil
	}
	if req.Client == nil {
		return nil, nil
	}
	if req.Client.ID != nil {
		return req.Client.ID, nil
	}
	if req.Client.Name == "" {
		return nil, ErrNoClient
	}
	if s.clients == nil {
		return nil, fmt.Errorf("resolve client: no resolver configured")
	}
	client, err := s.clients.Resolve(ctx, clients.Reference{
		Name:    req.Client.Name,
		Email:   req.Client.Email,
		Phone:   req.Client.Phone,
		Company: req.Client.Company,
	})
	if err != nil {
		return nil, fmt.Errorf("resolve client: %w", err)
	}
	return &client.ID, nil
}

// UpdateQuote applies a status target and/or field updates in one
// transaction. The status is applied first, so an order spawned on
// acceptance copies the quote as it was before the field updates.
func (s *Service) UpdateQuote(ctx context.Context, id uuid.UUID, req UpdateQuoteRequest) (*Quote, error) {
	fields := req.Fields()
	if req.Status == nil && len(fields) == 0 {
		return nil, ErrEmptyUpdate
	}

	var plan Plan
	var spawned spawnEvent
	now := s.now()
	work := func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			plan, spawned = Plan{}, spawnEvent{}
			quote, err := tx.GetQuoteForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if req.Status != nil {
				plan, err = s.transitions.Plan(EntityQuote, string(quote.Status), *req.Status)
				if err != nil {
					return err
				}
				if err := tx.UpdateQuote(ctx, id, plan.Columns(now)); err != nil {
					return fmt.Errorf("update quote %s status: %w", quote.Number, err)
				}
				if plan.Spawn == SpawnOrder {
					order, created, err := s.chain.SpawnOrder(ctx, tx, quote, now)
					if err != nil {
						return err
					}
					spawned = spawnEvent{entity: EntityOrder, from: quote.Number, number: order.Number, created: created}
				}
			}
			if len(fields) > 0 {
				if err := tx.UpdateQuote(ctx, id, fields); err != nil {
					return fmt.Errorf("update quote %s: %w", quote.Number, err)
				}
			}
			return nil
		})
	}
	if err := s.runTransition(ctx, EntityQuote, req.Status, work); err != nil {
		return nil, err
	}

	s.transitionApplied(plan)
	s.logSpawn(spawned)
	s.invalidate(ctx)
	return s.repo.GetQuote(ctx, id)
}

// RemindQuote records a client reminder on a sent quote.
func (s *Service) RemindQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	target := TargetReminder
	return s.UpdateQuote(ctx, id, UpdateQuoteRequest{Status: &target})
}

// DeleteQuote removes a draft quote.
func (s *Service) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		quote, err := tx.GetQuoteForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if quote.Status != QuoteStatusDraft {
			return fmt.Errorf("%w: %s is %s", ErrQuoteNotDraft, quote.Number, quote.Status)
		}
		return tx.DeleteQuote(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ============================================================================
// ORDERS
// ============================================================================

// ListOrders lists orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status string) ([]Order, error) {
	if err := checkFilter(EntityOrder, status); err != nil {
		return nil, err
	}
	return s.repo.ListOrders(ctx, ListFilter{Status: status})
}

// GetOrder returns an order.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// UpdateOrder applies a status target and/or production notes. Delivering
// an order bills it.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, req UpdateOrderRequest) (*Order, error) {
	if req.Status == nil && req.ProductionNotes == nil {
		return nil, ErrEmptyUpdate
	}

	rate := DefaultTaxRate
	if req.Status != nil && SpawnFor(EntityOrder, *req.Status) == SpawnInvoice {
		rate = s.taxRate(ctx)
	}

	var plan Plan
	var spawned spawnEvent
	now := s.now()
	work := func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			plan, spawned = Plan{}, spawnEvent{}
			order, err := tx.GetOrderForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if req.Status != nil {
				plan, err = s.transitions.Plan(EntityOrder, string(order.Status), *req.Status)
				if err != nil {
					return err
				}
				if err := tx.UpdateOrder(ctx, id, plan.Columns(now)); err != nil {
					return fmt.Errorf("update order %s status: %w", order.Number, err)
				}
				if plan.Spawn == SpawnInvoice {
					invoice, created, err := s.chain.SpawnInvoice(ctx, tx, order, rate, now)
					if err != nil {
						return err
					}
					spawned = spawnEvent{entity: EntityInvoice, from: order.Number, number: invoice.Number, created: created}
				}
			}
			if req.ProductionNotes != nil {
				if err := tx.UpdateOrder(ctx, id, map[string]any{"production_notes": *req.ProductionNotes}); err != nil {
					return fmt.Errorf("update order %s notes: %w", order.Number, err)
				}
			}
			return nil
		})
	}
	if err := s.runTransition(ctx, EntityOrder, req.Status, work); err != nil {
		return nil, err
	}

	s.transitionApplied(plan)
	s.logSpawn(spawned)
	s.invalidate(ctx)
	return s.repo.GetOrder(ctx, id)
}

// ============================================================================
// INVOICES
// ============================================================================

// ListInvoices lists invoices after reclassifying overdue ones, so the
// returned statuses already reflect the reclassification.
func (s *Service) ListInvoices(ctx context.Context, status string) ([]Invoice, error) {
	if err := checkFilter(EntityInvoice, status); err != nil {
		return nil, err
	}
	var invoices []Invoice
	var reclassified int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if reclassified, err = s.markOverdue(ctx, tx); err != nil {
			return err
		}
		invoices, err = tx.ListInvoices(ctx, ListFilter{Status: status})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.overdueReclassified(ctx, reclassified)
	return invoices, nil
}

// GetInvoice returns an invoice after the same lazy reclassification.
func (s *Service) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	var invoice *Invoice
	var reclassified int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		if reclassified, err = s.markOverdue(ctx, tx); err != nil {
			return err
		}
		invoice, err = tx.GetInvoice(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.overdueReclassified(ctx, reclassified)
	return invoice, nil
}

// UpdateInvoice applies a status target. Paying stamps the payment date.
func (s *Service) UpdateInvoice(ctx context.Context, id uuid.UUID, req UpdateInvoiceRequest) (*Invoice, error) {
	if req.Status == nil {
		return nil, ErrEmptyUpdate
	}

	var plan Plan
	now := s.now()
	var updated *Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		plan, err = s.transitions.Plan(EntityInvoice, string(invoice.Status), *req.Status)
		if err != nil {
			return err
		}
		if err := tx.UpdateInvoice(ctx, id, plan.Columns(now)); err != nil {
			return fmt.Errorf("update invoice %s status: %w", invoice.Number, err)
		}
		updated, err = tx.GetInvoice(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.transitionApplied(plan)
	s.invalidate(ctx)
	return updated, nil
}

// MarkOverdue runs the overdue reclassification on its own, for readers that
// aggregate invoices without listing them.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	var reclassified int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		reclassified, err = s.markOverdue(ctx, tx)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.overdueReclassified(ctx, reclassified)
	return reclassified, nil
}

func (s *Service) markOverdue(ctx context.Context, tx TxRepository) (int64, error) {
	n, err := tx.MarkOverdue(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	return n, nil
}

func (s *Service) overdueReclassified(ctx context.Context, n int64) {
	if n == 0 {
		return
	}
	s.logger.Info("invoices reclassified overdue", slog.Int64("count", n))
	s.invalidate(ctx)
}

// ============================================================================
// HELPERS
// ============================================================================

// runTransition runs work directly, or under the numbering service when the
// target spawns a numbered document.
func (s *Service) runTransition(ctx context.Context, entity Entity, target *string, work func(context.Context) error) error {
	if target == nil {
		return work(ctx)
	}
	switch SpawnFor(entity, *target) {
	case SpawnOrder:
		return s.numbers.Run(ctx, numbering.KindOrder, work)
	case SpawnInvoice:
		return s.numbers.Run(ctx, numbering.KindInvoice, work)
	}
	return work(ctx)
}

func (s *Service) taxRate(ctx context.Context) decimal.Decimal {
	if s.taxRates == nil {
		return DefaultTaxRate
	}
	rate, err := s.taxRates.TaxRate(ctx, DefaultTaxRate)
	if err != nil {
		s.logger.Warn("tax rate lookup failed, using default", slog.Any("error", err))
		return DefaultTaxRate
	}
	return rate
}

type spawnEvent struct {
	entity  Entity
	from    string
	number  string
	created bool
}

func (s *Service) logSpawn(ev spawnEvent) {
	if ev.number == "" {
		return
	}
	attrs := []any{
		slog.String("entity", string(ev.entity)),
		slog.String("from", ev.from),
		slog.String("number", ev.number),
	}
	if !ev.created {
		s.logger.Info("spawn guard returned existing document", attrs...)
		return
	}
	s.logger.Info("document spawned", attrs...)
	switch ev.entity {
	case EntityOrder:
		s.documentCreated(numbering.KindOrder)
	case EntityInvoice:
		s.documentCreated(numbering.KindInvoice)
	}
}

func (s *Service) documentCreated(kind numbering.Kind) {
	if s.recorder != nil {
		s.recorder.DocumentCreated(string(kind))
	}
}

func (s *Service) transitionApplied(plan Plan) {
	if s.recorder != nil && plan.Target != "" {
		s.recorder.TransitionApplied(string(plan.Entity), plan.Target)
	}
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("cache invalidation failed", slog.Any("error", err))
	}
}

func checkFilter(entity Entity, status string) error {
	if status != "" && !ValidStatus(entity, status) {
		return fmt.Errorf("%w: %s %q", ErrUnknownState, entity, status)
	}
	return nil
}
