package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
	"github.com/rapid-pub/backoffice/internal/settings"
)

// Kind selects the document family to print.
type Kind string

const (
	KindQuote   Kind = "quote"
	KindInvoice Kind = "invoice"
)

// ErrUnknownKind is returned for document types other than quote and invoice.
var ErrUnknownKind = fmt.Errorf("unknown document type: %w", httpx.ErrValidation)

const dayLayout = "02/01/2006"

// ParseKind validates a document type from the URL.
func ParseKind(raw string) (Kind, error) {
	switch k := Kind(strings.ToLower(raw)); k {
	case KindQuote, KindInvoice:
		return k, nil
	}
	return "", ErrUnknownKind
}

// DocumentSource loads the documents to print.
type DocumentSource interface {
	GetQuote(ctx context.Context, id uuid.UUID) (*sales.Quote, error)
	GetInvoice(ctx context.Context, id uuid.UUID) (*sales.Invoice, error)
}

// OrderSource resolves the order billed by an invoice.
type OrderSource interface {
	GetOrder(ctx context.Context, id uuid.UUID) (*sales.Order, error)
}

// CompanySource provides the issuer block and the tax rate.
type CompanySource interface {
	Company(ctx context.Context) (settings.Company, error)
	TaxRate(ctx context.Context, fallback decimal.Decimal) (decimal.Decimal, error)
}

// Renderer converts HTML into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// Line is the printed line item.
type Line struct {
	Label       string
	Details     []string
	Quantity    string
	UnitPrice   string
	TotalPrice  string
	Description string
}

// Document is the view model of the printed template.
type Document struct {
	Kind       Kind
	Title      string
	Number     string
	Company    settings.Company
	Client     sales.ClientSummary
	IssuedOn   string
	ValidUntil string
	DueOn      string
	Reference  string
	Line       Line
	TaxRate    string
	AmountHT   string
	TaxAmount  string
	AmountTTC  string
}

// IsQuote is used by the template to pick the conditions block.
func (d Document) IsQuote() bool { return d.Kind == KindQuote }

// Documents builds printable quotes and invoices.
type Documents struct {
	source   DocumentSource
	orders   OrderSource
	company  CompanySource
	renderer Renderer
	tmpl     *template.Template
	printer  *message.Printer
	logger   *slog.Logger
}

// NewDocuments parses the document template from templates.
func NewDocuments(source DocumentSource, company CompanySource, templates fs.FS, logger *slog.Logger) (*Documents, error) {
	tmpl, err := template.ParseFS(templates, "templates/documents/document.html")
	if err != nil {
		return nil, fmt.Errorf("parse document template: %w", err)
	}
	return &Documents{
		source:  source,
		company: company,
		tmpl:    tmpl,
		printer: message.NewPrinter(language.French),
		logger:  logger,
	}, nil
}

// SetOrders lets invoices print the number of the order they bill.
func (d *Documents) SetOrders(orders OrderSource) {
	d.orders = orders
}

// SetRenderer enables PDF output. Without a renderer only HTML is served.
func (d *Documents) SetRenderer(r Renderer) {
	d.renderer = r
}

// CanRenderPDF reports whether a PDF renderer is configured.
func (d *Documents) CanRenderPDF() bool {
	return d.renderer != nil
}

// Build loads a document and maps it onto the view model.
func (d *Documents) Build(ctx context.Context, kind Kind, id uuid.UUID) (*Document, error) {
	company, err := d.company.Company(ctx)
	if err != nil {
		return nil, err
	}
	switch kind {
	case KindQuote:
		quote, err := d.source.GetQuote(ctx, id)
		if err != nil {
			return nil, err
		}
		rate, err := d.company.TaxRate(ctx, sales.DefaultTaxRate)
		if err != nil {
			d.logger.Warn("tax rate lookup failed, using default", slog.Any("error", err))
			rate = sales.DefaultTaxRate
		}
		return d.quoteDocument(company, quote, rate), nil
	case KindInvoice:
		invoice, err := d.source.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		var order *sales.Order
		if d.orders != nil && invoice.OrderID != nil {
			if order, err = d.orders.GetOrder(ctx, *invoice.OrderID); err != nil {
				d.logger.Warn("load billed order", slog.Any("error", err), slog.String("invoice", invoice.Number))
				order = nil
			}
		}
		return d.invoiceDocument(company, invoice, order), nil
	}
	return nil, ErrUnknownKind
}

// HTML renders the document template.
func (d *Documents) HTML(doc *Document) (string, error) {
	var buf bytes.Buffer
	if err := d.tmpl.Execute(&buf, doc); err != nil {
		return "", fmt.Errorf("render %s %s: %w", doc.Kind, doc.Number, err)
	}
	return buf.String(), nil
}

// PDF converts the rendered document through the configured renderer.
func (d *Documents) PDF(ctx context.Context, doc *Document) ([]byte, error) {
	if d.renderer == nil {
		return nil, fmt.Errorf("no pdf renderer configured")
	}
	html, err := d.HTML(doc)
	if err != nil {
		return nil, err
	}
	return d.renderer.RenderHTML(ctx, html)
}

func (d *Documents) quoteDocument(company settings.Company, q *sales.Quote, rate decimal.Decimal) *Document {
	ht, tax, ttc := sales.InvoiceAmounts(q.TotalPrice, rate)
	doc := &Document{
		Kind:      KindQuote,
		Title:     "Devis",
		Number:    q.Number,
		Company:   company,
		IssuedOn:  q.CreatedAt.Format(dayLayout),
		TaxRate:   d.percent(rate),
		AmountHT:  d.money(ht),
		TaxAmount: d.money(tax),
		AmountTTC: d.money(ttc),
	}
	if q.Client != nil {
		doc.Client = *q.Client
	}
	if q.ValidUntil != nil {
		doc.ValidUntil = q.ValidUntil.Format(dayLayout)
	} else {
		doc.ValidUntil = q.CreatedAt.Add(sales.QuoteValidity).Format(dayLayout)
	}

	line := Line{
		Label:       deref(q.Title, "Impression"),
		Description: deref(q.Description, ""),
		TotalPrice:  d.money(ht),
		Quantity:    "1",
	}
	if q.ProductType != nil {
		line.Details = append(line.Details, "Type : "+productLabel(*q.ProductType))
	}
	if q.Format != nil && *q.Format != "" {
		line.Details = append(line.Details, "Format : "+*q.Format)
	}
	if q.Paper != nil && *q.Paper != "" {
		line.Details = append(line.Details, "Papier : "+*q.Paper)
	}
	if q.DoubleSided {
		line.Details = append(line.Details, "Recto-verso")
	}
	if q.Finishing != nil && *q.Finishing != "" {
		line.Details = append(line.Details, "Finition : "+*q.Finishing)
	}
	if q.Quantity != nil {
		line.Quantity = d.printer.Sprintf("%d", *q.Quantity)
	}
	if q.UnitPrice.Valid {
		line.UnitPrice = d.money(q.UnitPrice.Decimal)
	}
	doc.Line = line
	return doc
}

func (d *Documents) invoiceDocument(company settings.Company, inv *sales.Invoice, order *sales.Order) *Document {
	doc := &Document{
		Kind:      KindInvoice,
		Title:     "Facture",
		Number:    inv.Number,
		Company:   company,
		IssuedOn:  inv.IssuedAt.Format(dayLayout),
		DueOn:     inv.DueAt.Format(dayLayout),
		TaxRate:   d.percent(invoiceRate(inv)),
		AmountHT:  d.money(inv.AmountHT),
		TaxAmount: d.money(inv.TaxAmount),
		AmountTTC: d.money(inv.AmountTTC),
	}
	if inv.Client != nil {
		doc.Client = *inv.Client
	}
	if inv.OrderNumber != nil {
		doc.Reference = *inv.OrderNumber
	}

	line := Line{
		Label:      "Prestation d'impression",
		Quantity:   "1",
		UnitPrice:  d.money(inv.AmountHT),
		TotalPrice: d.money(inv.AmountHT),
	}
	if order != nil {
		doc.Reference = order.Number
		line.Label = deref(order.Title, line.Label)
		line.Description = deref(order.Description, "")
	}
	doc.Line = line
	return doc
}

// invoiceRate derives the rate from the stored amounts so a later settings
// change does not alter printed invoices.
func invoiceRate(inv *sales.Invoice) decimal.Decimal {
	if inv.AmountHT.IsZero() {
		return sales.DefaultTaxRate
	}
	return inv.TaxAmount.Div(inv.AmountHT).Round(3)
}

func (d *Documents) money(v decimal.Decimal) string {
	return d.printer.Sprintf("%.2f €", v.Round(2).InexactFloat64())
}

func (d *Documents) percent(rate decimal.Decimal) string {
	pct := rate.Mul(decimal.NewFromInt(100))
	if pct.Equal(pct.Truncate(0)) {
		return d.printer.Sprintf("%d %%", pct.IntPart())
	}
	return d.printer.Sprintf("%.1f %%", pct.InexactFloat64())
}

var productLabels = map[sales.ProductType]string{
	sales.ProductFlyers:        "Flyers",
	sales.ProductBusinessCards: "Cartes de visite",
	sales.ProductPosters:       "Affiches",
	sales.ProductLeaflets:      "Dépliants",
	sales.ProductRollupBanner:  "Kakémono",
	sales.ProductStickers:      "Autocollants",
	sales.ProductBrochures:     "Brochures",
	sales.ProductOther:         "Autre",
}

func productLabel(p sales.ProductType) string {
	if label, ok := productLabels[p]; ok {
		return label
	}
	return string(p)
}

func deref(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}

