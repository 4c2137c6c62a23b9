package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rapid-pub/backoffice/internal/app"
	"github.com/rapid-pub/backoffice/internal/clients"
	"github.com/rapid-pub/backoffice/internal/numbering"
	"github.com/rapid-pub/backoffice/internal/platform/db"
	"github.com/rapid-pub/backoffice/internal/sales"
	"github.com/rapid-pub/backoffice/internal/settings"
	"github.com/rapid-pub/backoffice/migrations"
)

func main() {
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	ctx := context.Background()

	if err := db.Migrate(migrations.FS, ".", cfg.PGDSN, logger); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{ApplicationName: "rapidpub-seed"})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	settingsService := settings.NewService(settings.NewRepository(pool), logger)
	clientsService := clients.NewService(clients.NewRepository(pool), logger)
	numbers, err := numbering.NewService(numbering.Config{Location: cfg.Location()}, nil, logger)
	if err != nil {
		log.Fatalf("numbering: %v", err)
	}
	salesService := sales.NewService(sales.NewRepository(pool), numbers, logger)
	salesService.SetTaxRates(settingsService)
	salesService.SetClientResolver(clientsService)

	fmt.Println("→ Seeding settings...")
	if err := seedSettings(ctx, settingsService); err != nil {
		log.Fatalf("seed settings: %v", err)
	}
	fmt.Println("→ Seeding clients...")
	ids, err := seedClients(ctx, clientsService)
	if err != nil {
		log.Fatalf("seed clients: %v", err)
	}
	fmt.Println("→ Seeding documents...")
	if err := seedDocuments(ctx, salesService, ids); err != nil {
		log.Fatalf("seed documents: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

// =============================================================================
// SETTINGS
// =============================================================================

// seedSettings writes the defaults that are not configured yet.
func seedSettings(ctx context.Context, svc *settings.Service) error {
	current, err := svc.GetAll(ctx)
	if err != nil {
		return err
	}
	missing := make(map[string]string)
	for key, value := range settings.Defaults {
		if _, ok := current[key]; !ok {
			missing[key] = value
		}
	}
	if len(missing) == 0 {
		return nil
	}
	_, err = svc.Upsert(ctx, missing)
	return err
}

// =============================================================================
// CLIENTS
// =============================================================================

func seedClients(ctx context.Context, svc *clients.Service) ([]clients.Client, error) {
	demo := []struct {
		name    string
		email   string
		phone   string
		company string
	}{
		{"Marie Dupont", "marie@boulangerie-dupont.fr", "06 12 34 56 78", "Boulangerie Dupont"},
		{"Karim Benali", "karim@studio-kb.fr", "06 98 76 54 32", "Studio KB"},
		{"Sophie Martin", "contact@asso-quartier.org", "01 44 55 66 77", "Association du Quartier"},
		{"Lucas Bernard", "lucas.bernard@garage-bernard.fr", "04 72 11 22 33", "Garage Bernard"},
	}

	out := make([]clients.Client, 0, len(demo))
	for _, d := range demo {
		c, err := svc.Resolve(ctx, clients.Reference{
			Name:    d.name,
			Email:   strPtr(d.email),
			Phone:   strPtr(d.phone),
			Company: strPtr(d.company),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		out = append(out, *c)
	}
	return out, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// seedDocuments runs a few quotes through the chain on an empty database:
// one draft, one sent, and one accepted and delivered so an order and an
// invoice exist.
func seedDocuments(ctx context.Context, svc *sales.Service, customers []clients.Client) error {
	existing, err := svc.ListQuotes(ctx, "")
	if err != nil {
		return err
	}
	if len(existing) > 0 || len(customers) < 3 {
		return nil
	}

	flyers, cards, posters := sales.ProductFlyers, sales.ProductBusinessCards, sales.ProductPosters
	quotes := []sales.CreateQuoteRequest{
		{
			ClientID:    &customers[0].ID,
			Title:       strPtr("Flyers promotion printemps"),
			ProductType: &flyers,
			Quantity:    intPtr(500),
			Format:      strPtr("A5"),
			Paper:       strPtr("135g"),
			DoubleSided: boolPtr(true),
			UnitPrice:   decPtr("0.24"),
			TotalPrice:  decPtr("120"),
			Status:      sales.QuoteStatusSent,
		},
		{
			ClientID:    &customers[1].ID,
			Title:       strPtr("Cartes de visite"),
			ProductType: &cards,
			Quantity:    intPtr(250),
			Format:      strPtr("85x55mm"),
			Paper:       strPtr("350g"),
			Finishing:   strPtr("pelliculage mat"),
			TotalPrice:  decPtr("65"),
		},
		{
			ClientID:    &customers[2].ID,
			Title:       strPtr("Affiches fête de quartier"),
			ProductType: &posters,
			Quantity:    intPtr(50),
			Format:      strPtr("A2"),
			Paper:       strPtr("170g"),
			TotalPrice:  decPtr("180"),
			Status:      sales.QuoteStatusSent,
		},
	}

	var created []*sales.Quote
	for _, req := range quotes {
		q, err := svc.CreateQuote(ctx, req)
		if err != nil {
			return err
		}
		created = append(created, q)
	}

	accepted := string(sales.QuoteStatusAccepted)
	if _, err := svc.UpdateQuote(ctx, created[2].ID, sales.UpdateQuoteRequest{Status: &accepted}); err != nil {
		return err
	}
	orders, err := svc.ListOrders(ctx, "")
	if err != nil {
		return err
	}
	delivered := string(sales.OrderStatusDelivered)
	for _, o := range orders {
		if o.QuoteID != nil && *o.QuoteID == created[2].ID {
			if _, err := svc.UpdateOrder(ctx, o.ID, sales.UpdateOrderRequest{Status: &delivered}); err != nil {
				return err
			}
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func boolPtr(b bool) *bool { return &b }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
