package insights

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/rapid-pub/backoffice/internal/platform/cache"
	"github.com/rapid-pub/backoffice/internal/platform/httpx"
)

const (
	quoteStaleAfter  = 3 * 24 * time.Hour
	quoteDangerDays  = 7
	invoiceDueWithin = 3 * 24 * time.Hour
	statsMonths      = 6
	activityDays     = 7
	topClientsLimit  = 5
	doneWindow       = 7 * 24 * time.Hour
	searchMinLength  = 2
	searchLimit      = 5
	calendarSpanDays = 30
	dayLayout        = "2006-01-02"
	unknownClient    = "Unknown client"
	untitled         = "Untitled"
)

var ErrInvalidRange = fmt.Errorf("insights: %w", httpx.ErrValidation)

// OverdueMarker reclassifies issued invoices past their due date.
type OverdueMarker interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

// Service builds the projections. Stats are cached and concurrent loads
// of the same key collapse into one.
type Service struct {
	repo    Repository
	cache   *cache.JSONCache
	overdue OverdueMarker
	group   singleflight.Group
	loc     *time.Location
	logger  *slog.Logger
	now     func() time.Time
}

// NewService wires the repository with an optional stats cache.
func NewService(repo Repository, statsCache *cache.JSONCache, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		cache:  statsCache,
		loc:    time.Local,
		logger: logger,
		now:    time.Now,
	}
}

// SetOverdueMarker sets the reclassification run before stats are read, so
// invoice totals split pending and overdue amounts the way invoice reads do.
func (s *Service) SetOverdueMarker(m OverdueMarker) {
	s.overdue = m
}

// SetLocation sets the zone used for day boundaries.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.loc = loc
	}
}

// ============================================================================
// ALERTS
// ============================================================================

// Alerts lists stale quotes, late and soon due invoices and orders ready
// for delivery, most severe first then oldest first.
func (s *Service) Alerts(ctx context.Context) ([]Alert, error) {
	var (
		quotes   []SentQuote
		invoices []OpenInvoice
		orders   []ReadyOrder
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		quotes, err = s.repo.SentQuotes(gctx)
		return err
	})
	g.Go(func() (err error) {
		invoices, err = s.repo.OpenInvoices(gctx)
		return err
	})
	g.Go(func() (err error) {
		orders, err = s.repo.ReadyOrders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("insights: alerts: %w", err)
	}

	now := s.now()
	alerts := make([]Alert, 0)
	for _, q := range quotes {
		if !q.SentAt.Before(now.Add(-quoteStaleAfter)) {
			continue
		}
		days := daysBetween(q.SentAt, now)
		level := LevelWarning
		if days >= quoteDangerDays {
			level = LevelDanger
		}
		alerts = append(alerts, Alert{
			ID:          "quote-" + q.ID.String(),
			Kind:        "quote",
			Level:       level,
			Title:       fmt.Sprintf("Quote %s unanswered", q.Number),
			Description: fmt.Sprintf("%s - %d days without reply", nameOr(q.ClientName, "Client"), days),
			Link:        "/quotes/" + q.ID.String(),
			Date:        q.SentAt,
		})
	}
	for _, inv := range invoices {
		switch {
		case inv.Status == "overdue" || inv.DueAt.Before(now):
			alerts = append(alerts, Alert{
				ID:          "invoice-" + inv.ID.String(),
				Kind:        "invoice",
				Level:       LevelDanger,
				Title:       fmt.Sprintf("Invoice %s overdue", inv.Number),
				Description: fmt.Sprintf("%s - %s € for %d days", nameOr(inv.ClientName, "Client"), inv.AmountTTC.StringFixed(2), daysBetween(inv.DueAt, now)),
				Link:        "/invoices/" + inv.ID.String(),
				Date:        inv.DueAt,
			})
		case !inv.DueAt.After(now.Add(invoiceDueWithin)):
			alerts = append(alerts, Alert{
				ID:          "invoice-due-" + inv.ID.String(),
				Kind:        "invoice",
				Level:       LevelWarning,
				Title:       fmt.Sprintf("Invoice %s due soon", inv.Number),
				Description: fmt.Sprintf("%s - %s €", nameOr(inv.ClientName, "Client"), inv.AmountTTC.StringFixed(2)),
				Link:        "/invoices/" + inv.ID.String(),
				Date:        inv.DueAt,
			})
		}
	}
	for _, o := range orders {
		alerts = append(alerts, Alert{
			ID:          "order-" + o.ID.String(),
			Kind:        "order",
			Level:       LevelInfo,
			Title:       fmt.Sprintf("Order %s ready", o.Number),
			Description: fmt.Sprintf("%s - %s", nameOr(o.ClientName, "Client"), nameOr(o.Title, "To deliver")),
			Link:        "/orders/" + o.ID.String(),
			Date:        o.UpdatedAt,
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		if levelRank[alerts[i].Level] != levelRank[alerts[j].Level] {
			return levelRank[alerts[i].Level] < levelRank[alerts[j].Level]
		}
		return alerts[i].Date.Before(alerts[j].Date)
	})
	return alerts, nil
}

// ============================================================================
// STATS
// ============================================================================

// Stats returns the dashboard statistics, served from cache when fresh.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	// Reclassifying bumps the cache version, so it runs before the key is built.
	if s.overdue != nil {
		if _, err := s.overdue.MarkOverdue(ctx); err != nil {
			s.logger.Warn("overdue reclassification before stats", slog.Any("error", err))
		}
	}
	today := s.now().In(s.loc).Format(dayLayout)
	key, err := s.cache.BuildKey(ctx, "stats", today)
	if err != nil {
		s.logger.Warn("stats cache key", slog.Any("error", err))
		return s.loadStats(ctx)
	}

	ch := s.group.DoChan(key, func() (any, error) {
		var stats Stats
		err := s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (any, error) {
			return s.loadStats(ctx)
		})
		return &stats, err
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("insights: stats: %w", res.Err)
		}
		return res.Val.(*Stats), nil
	}
}

func (s *Service) loadStats(ctx context.Context) (*Stats, error) {
	now := s.now().In(s.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.loc)
	firstMonth := monthStart.AddDate(0, -(statsMonths - 1), 0)
	activitySince := startOfDay(now).AddDate(0, 0, -(activityDays - 1))

	stats := &Stats{}
	var (
		revenue []MonthRevenue
		counts  QuoteCounts
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		revenue, err = s.repo.RevenueByMonth(gctx, firstMonth)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.repo.QuoteCounts(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TopClients, err = s.repo.TopClients(gctx, topClientsLimit)
		return err
	})
	g.Go(func() (err error) {
		stats.ProductMix, err = s.repo.ProductMix(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Totals, err = s.repo.Totals(gctx, monthStart)
		return err
	})
	g.Go(func() (err error) {
		stats.OrdersByStatus, err = s.repo.OrdersByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.Activity, err = s.repo.Activity(gctx, activitySince)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.RevenueByMonth = fillMonths(revenue, firstMonth, statsMonths)
	stats.ConversionRate = conversionRate(counts)
	return stats, nil
}

// Invalidate drops cached stats.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func fillMonths(rows []MonthRevenue, first time.Time, n int) []MonthRevenue {
	byMonth := make(map[string]decimal.Decimal, len(rows))
	for _, r := range rows {
		byMonth[r.Month] = r.Revenue
	}
	out := make([]MonthRevenue, 0, n)
	for i := 0; i < n; i++ {
		month := first.AddDate(0, i, 0).Format("2006-01")
		out = append(out, MonthRevenue{Month: month, Revenue: byMonth[month]})
	}
	return out
}

func conversionRate(c QuoteCounts) int {
	if c.NonDraft == 0 {
		return 0
	}
	return int(math.Round(float64(c.Accepted) / float64(c.NonDraft) * 100))
}

// ============================================================================
// DASHBOARD
// ============================================================================

// Board returns the four dashboard columns.
func (s *Service) Board(ctx context.Context) (*Board, error) {
	now := s.now()
	board := &Board{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		board.ToProcess, err = s.repo.QuoteCards(gctx, "draft")
		return err
	})
	g.Go(func() (err error) {
		board.QuotesSent, err = s.repo.QuoteCards(gctx, "sent")
		return err
	})
	g.Go(func() (err error) {
		board.InProduction, err = s.repo.ProductionCards(gctx)
		return err
	})
	g.Go(func() (err error) {
		board.Done, err = s.repo.DoneCards(gctx, now.Add(-doneWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("insights: board: %w", err)
	}

	for _, column := range [][]Card{board.ToProcess, board.QuotesSent, board.InProduction, board.Done} {
		for i := range column {
			fillCard(&column[i], now)
		}
	}
	return board, nil
}

func fillCard(c *Card, now time.Time) {
	if c.ClientName == "" {
		c.ClientName = unknownClient
	}
	if c.Title == "" {
		c.Title = untitled
	}
	if c.Status != "sent" {
		c.ReminderCount = nil
		return
	}
	if c.SentAt != nil {
		days := daysBetween(*c.SentAt, now)
		c.DaysSinceSent = &days
	}
}

// ============================================================================
// SEARCH
// ============================================================================

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Search matches clients, quotes, orders and invoices, up to five of each.
// Queries shorter than two characters return nothing.
func (s *Service) Search(ctx context.Context, q string) ([]SearchResult, error) {
	q = strings.TrimSpace(q)
	if len([]rune(q)) < searchMinLength {
		return []SearchResult{}, nil
	}
	hits, err := s.repo.Search(ctx, "%"+likeEscaper.Replace(q)+"%", searchLimit)
	if err != nil {
		return nil, fmt.Errorf("insights: search: %w", err)
	}
	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, renderHit(h))
	}
	return results, nil
}

func renderHit(h SearchHit) SearchResult {
	res := SearchResult{ID: h.ID, Kind: h.Kind, Title: h.Label}
	client := nameOr(h.ClientName, "Client")
	switch h.Kind {
	case "client":
		res.Subtitle = nameOr(h.Company, nameOr(h.Email, ""))
		res.Link = "/clients/" + h.ID.String()
	case "quote":
		res.Subtitle = client + " - " + nameOr(h.Title, untitled)
		res.Link = "/quotes/" + h.ID.String()
	case "order":
		res.Subtitle = client + " - " + nameOr(h.Title, untitled)
		res.Link = "/orders/" + h.ID.String()
	case "invoice":
		amount := "0.00"
		if h.Amount.Valid {
			amount = h.Amount.Decimal.StringFixed(2)
		}
		res.Subtitle = client + " - " + amount + " €"
		res.Link = "/invoices/" + h.ID.String()
	}
	return res
}

// ============================================================================
// CALENDAR
// ============================================================================

// Calendar lists pending deliveries between start and end inclusive
// (YYYY-MM-DD). Empty bounds default to today and today plus 30 days.
func (s *Service) Calendar(ctx context.Context, start, end string) (*Calendar, error) {
	today := startOfDay(s.now().In(s.loc))
	from, err := s.parseDay(start, today)
	if err != nil {
		return nil, err
	}
	to, err := s.parseDay(end, today.AddDate(0, 0, calendarSpanDays))
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end is before start", ErrInvalidRange)
	}

	orders, err := s.repo.Deliveries(ctx, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("insights: calendar: %w", err)
	}
	cal := &Calendar{
		Start:  from.Format(dayLayout),
		End:    to.Format(dayLayout),
		Orders: orders,
		ByDay:  make(map[string][]Delivery),
	}
	for _, o := range orders {
		day := o.PlannedDeliveryAt.In(s.loc).Format(dayLayout)
		cal.ByDay[day] = append(cal.ByDay[day], o)
	}
	return cal, nil
}

func (s *Service) parseDay(raw string, fallback time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(dayLayout, raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", ErrInvalidRange, raw)
	}
	return t, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func daysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

func nameOr(v *string, fallback string) string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return fallback
	}
	return *v
}
