package sales

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/rapid-pub/backoffice/internal/numbering"
)

// ============================================================================
// IN-MEMORY REPOSITORY
// ============================================================================

type memState struct {
	quotes    map[uuid.UUID]Quote
	orders    map[uuid.UUID]Order
	invoices  map[uuid.UUID]Invoice
	sequences map[string]int
}

func (s memState) clone() memState {
	c := memState{
		quotes:    make(map[uuid.UUID]Quote, len(s.quotes)),
		orders:    make(map[uuid.UUID]Order, len(s.orders)),
		invoices:  make(map[uuid.UUID]Invoice, len(s.invoices)),
		sequences: make(map[string]int, len(s.sequences)),
	}
	for k, v := range s.quotes {
		c.quotes[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = v
	}
	for k, v := range s.sequences {
		c.sequences[k] = v
	}
	return c
}

type memRepo struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time

	// insertFailures makes the next n document inserts fail with a
	// numbering conflict.
	insertFailures int
	commits        int
	rollbacks      int
}

func newMemRepo(now func() time.Time) *memRepo {
	return &memRepo{
		state: memState{
			quotes:    map[uuid.UUID]Quote{},
			orders:    map[uuid.UUID]Order{},
			invoices:  map[uuid.UUID]Invoice{},
			sequences: map[string]int{},
		},
		now: now,
	}
}

func (m *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.state.clone()
	if err := fn(ctx, &memTx{repo: m}); err != nil {
		m.state = snapshot
		m.rollbacks++
		return err
	}
	m.commits++
	return nil
}

func (m *memRepo) ListQuotes(ctx context.Context, filter ListFilter) ([]Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Quote, 0)
	for _, q := range m.state.quotes {
		if filter.Status == "" || string(q.Status) == filter.Status {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (m *memRepo) GetQuote(ctx context.Context, id uuid.UUID) (*Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.state.quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return &q, nil
}

func (m *memRepo) ListOrders(ctx context.Context, filter ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range m.state.orders {
		if filter.Status == "" || string(o.Status) == filter.Status {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (m *memRepo) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.state.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (m *memRepo) ordersOfQuote(quoteID uuid.UUID) []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.state.orders {
		if o.QuoteID != nil && *o.QuoteID == quoteID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (m *memRepo) invoicesOfOrder(orderID uuid.UUID) []Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Invoice
	for _, inv := range m.state.invoices {
		if inv.OrderID != nil && *inv.OrderID == orderID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// memTx runs with the repository lock held by WithTx.
type memTx struct {
	repo *memRepo
}

func (t *memTx) st() *memState { return &t.repo.state }

func (t *memTx) LastSequence(ctx context.Context, kind numbering.Kind, year int) (int, error) {
	var numbers []string
	switch kind {
	case numbering.KindQuote:
		for _, q := range t.st().quotes {
			numbers = append(numbers, q.Number)
		}
	case numbering.KindOrder:
		for _, o := range t.st().orders {
			numbers = append(numbers, o.Number)
		}
	case numbering.KindInvoice:
		for _, inv := range t.st().invoices {
			numbers = append(numbers, inv.Number)
		}
	}
	last := t.st().sequences[fmt.Sprintf("%s/%d", kind, year)]
	for _, n := range numbers {
		k, y, seq, err := numbering.Parse(n)
		if err == nil && k == kind && y == year && seq > last {
			last = seq
		}
	}
	return last, nil
}

func (t *memTx) markIssued(number string) {
	kind, year, seq, err := numbering.Parse(number)
	if err != nil {
		return
	}
	key := fmt.Sprintf("%s/%d", kind, year)
	if seq > t.st().sequences[key] {
		t.st().sequences[key] = seq
	}
}

func (t *memTx) IncrementSequence(ctx context.Context, kind numbering.Kind, year int) (int, error) {
	key := fmt.Sprintf("%s/%d", kind, year)
	t.st().sequences[key]++
	return t.st().sequences[key], nil
}

func (t *memTx) conflict() error {
	if t.repo.insertFailures > 0 {
		t.repo.insertFailures--
		return fmt.Errorf("%w: simulated", numbering.ErrConflict)
	}
	return nil
}

func (t *memTx) GetQuoteForUpdate(ctx context.Context, id uuid.UUID) (*Quote, error) {
	q, ok := t.st().quotes[id]
	if !ok {
		return nil, ErrQuoteNotFound
	}
	return &q, nil
}

func (t *memTx) InsertQuote(ctx context.Context, q Quote) (*Quote, error) {
	if err := t.conflict(); err != nil {
		return nil, err
	}
	for _, existing := range t.st().quotes {
		if existing.Number == q.Number {
			return nil, fmt.Errorf("%w: quotes_number_key", numbering.ErrConflict)
		}
	}
	q.ID = uuid.New()
	q.CreatedAt = t.repo.now()
	q.UpdatedAt = q.CreatedAt
	t.st().quotes[q.ID] = q
	t.markIssued(q.Number)
	return &q, nil
}

func (t *memTx) UpdateQuote(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	q, ok := t.st().quotes[id]
	if !ok {
		return ErrQuoteNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			q.Status = QuoteStatus(v.(string))
		case "title":
			q.Title = strPtr(v.(string))
		case "description":
			q.Description = strPtr(v.(string))
		case "product_type":
			pt := ProductType(v.(string))
			q.ProductType = &pt
		case "quantity":
			n := v.(int)
			q.Quantity = &n
		case "format":
			q.Format = strPtr(v.(string))
		case "paper":
			q.Paper = strPtr(v.(string))
		case "finishing":
			q.Finishing = strPtr(v.(string))
		case "double_sided":
			q.DoubleSided = v.(bool)
		case "unit_price":
			q.UnitPrice = decimal.NewNullDecimal(v.(decimal.Decimal))
		case "total_price":
			q.TotalPrice = decimal.NewNullDecimal(v.(decimal.Decimal))
		case "sent_at":
			q.SentAt = timePtr(v.(time.Time))
		case "valid_until":
			q.ValidUntil = timePtr(v.(time.Time))
		case "responded_at":
			q.RespondedAt = timePtr(v.(time.Time))
		case "last_reminder_at":
			q.LastReminderAt = timePtr(v.(time.Time))
		case "reminder_count":
			q.ReminderCount += int(v.(Increment))
		default:
			return fmt.Errorf("column %q is not updatable", col)
		}
	}
	q.UpdatedAt = t.repo.now()
	t.st().quotes[id] = q
	return nil
}

func (t *memTx) DeleteQuote(ctx context.Context, id uuid.UUID) error {
	if _, ok := t.st().quotes[id]; !ok {
		return ErrQuoteNotFound
	}
	delete(t.st().quotes, id)
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*Order, error) {
	o, ok := t.st().orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &o, nil
}

func (t *memTx) FindOrderByQuote(ctx context.Context, quoteID uuid.UUID) (*Order, error) {
	for _, o := range t.st().orders {
		if o.QuoteID != nil && *o.QuoteID == quoteID {
			return &o, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (t *memTx) InsertOrder(ctx context.Context, o Order) (*Order, error) {
	if err := t.conflict(); err != nil {
		return nil, err
	}
	o.ID = uuid.New()
	o.CreatedAt = t.repo.now()
	o.UpdatedAt = o.CreatedAt
	t.st().orders[o.ID] = o
	t.markIssued(o.Number)
	return &o, nil
}

func (t *memTx) UpdateOrder(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	o, ok := t.st().orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			o.Status = OrderStatus(v.(string))
		case "delivered_at":
			o.DeliveredAt = timePtr(v.(time.Time))
		case "production_notes":
			o.ProductionNotes = strPtr(v.(string))
		default:
			return fmt.Errorf("column %q is not updatable", col)
		}
	}
	o.UpdatedAt = t.repo.now()
	t.st().orders[id] = o
	return nil
}

func (t *memTx) GetInvoiceForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return t.GetInvoice(ctx, id)
}

func (t *memTx) FindInvoiceByOrder(ctx context.Context, orderID uuid.UUID) (*Invoice, error) {
	for _, inv := range t.st().invoices {
		if inv.OrderID != nil && *inv.OrderID == orderID {
			return &inv, nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (t *memTx) InsertInvoice(ctx context.Context, inv Invoice) (*Invoice, error) {
	if err := t.conflict(); err != nil {
		return nil, err
	}
	inv.ID = uuid.New()
	inv.CreatedAt = t.repo.now()
	inv.UpdatedAt = inv.CreatedAt
	t.st().invoices[inv.ID] = inv
	t.markIssued(inv.Number)
	return &inv, nil
}

func (t *memTx) UpdateInvoice(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	inv, ok := t.st().invoices[id]
	if !ok {
		return ErrInvoiceNotFound
	}
	for col, v := range updates {
		switch col {
		case "status":
			inv.Status = InvoiceStatus(v.(string))
		case "paid_at":
			inv.PaidAt = timePtr(v.(time.Time))
		default:
			return fmt.Errorf("column %q is not updatable", col)
		}
	}
	inv.UpdatedAt = t.repo.now()
	t.st().invoices[id] = inv
	return nil
}

func (t *memTx) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var n int64
	for id, inv := range t.st().invoices {
		if inv.Status == InvoiceStatusIssued && inv.DueAt.Before(asOf) {
			inv.Status = InvoiceStatusOverdue
			t.st().invoices[id] = inv
			n++
		}
	}
	return n, nil
}

func (t *memTx) ListInvoices(ctx context.Context, filter ListFilter) ([]Invoice, error) {
	out := make([]Invoice, 0)
	for _, inv := range t.st().invoices {
		if filter.Status == "" || string(inv.Status) == filter.Status {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (t *memTx) GetInvoice(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := t.st().invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return &inv, nil
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

// ============================================================================
// FIXTURES
// ============================================================================

type fakeRecorder struct {
	created     map[string]int
	transitions []string
}

func (r *fakeRecorder) DocumentCreated(kind string) {
	if r.created == nil {
		r.created = map[string]int{}
	}
	r.created[kind]++
}

func (r *fakeRecorder) TransitionApplied(entity, target string) {
	r.transitions = append(r.transitions, entity+":"+target)
}

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) TaxRate(ctx context.Context, fallback decimal.Decimal) (decimal.Decimal, error) {
	return f.rate, f.err
}

type fixture struct {
	repo     *memRepo
	numbers  *numbering.Service
	service  *Service
	recorder *fakeRecorder
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStrategy(t, numbering.StrategyCounter)
}

func newFixtureWithStrategy(t *testing.T, strategy numbering.Strategy) *fixture {
	t.Helper()
	now := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	numbers, err := numbering.NewService(numbering.Config{Strategy: strategy}, nil, logger)
	require.NoError(t, err)

	repo := newMemRepo(clock)
	svc := NewService(repo, numbers, logger)
	svc.now = clock
	recorder := &fakeRecorder{}
	svc.SetRecorder(recorder)

	return &fixture{repo: repo, numbers: numbers, service: svc, recorder: recorder, now: now}
}

func (f *fixture) number(kind numbering.Kind, seq int) string {
	return numbering.Format(kind, f.numbers.Year(), seq)
}

func (f *fixture) createQuote(t *testing.T, status QuoteStatus, total string) *Quote {
	t.Helper()
	price := decimal.RequireFromString(total)
	qty := 500
	pt := ProductFlyers
	q, err := f.service.CreateQuote(context.Background(), CreateQuoteRequest{
		Title:       strPtr("Flyers A5 salon"),
		Description: strPtr("500 flyers A5 recto-verso"),
		ProductType: &pt,
		Quantity:    &qty,
		Format:      strPtr("A5"),
		Paper:       strPtr("350g"),
		TotalPrice:  &price,
		Status:      status,
	})
	require.NoError(t, err)
	return q
}
