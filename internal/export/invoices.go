// Package export renders invoice listings as XLSX workbooks.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
)

const (
	sheetName   = "Invoices"
	contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateFormat  = "2006-01-02"
)

var headers = []string{
	"Number", "Order", "Client", "Company", "Issued", "Due", "Paid",
	"Status", "Amount HT", "Tax", "Amount TTC",
}

// InvoiceLister lists invoices filtered by status ("" for all).
type InvoiceLister interface {
	ListInvoices(ctx context.Context, status string) ([]sales.Invoice, error)
}

// InvoiceExporter serves GET /invoices/export.xlsx.
type InvoiceExporter struct {
	invoices InvoiceLister
	logger   *slog.Logger
	now      func() time.Time
}

// NewInvoiceExporter creates the export handler.
func NewInvoiceExporter(invoices InvoiceLister, logger *slog.Logger) *InvoiceExporter {
	return &InvoiceExporter{invoices: invoices, logger: logger, now: time.Now}
}

func (e *InvoiceExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	invoices, err := e.invoices.ListInvoices(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		if httpx.StatusFor(err) >= http.StatusInternalServerError {
			e.logger.Error("export invoices failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	f, err := BuildInvoiceWorkbook(invoices)
	if err != nil {
		e.logger.Error("build invoice workbook", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	defer func() { _ = f.Close() }()

	filename := fmt.Sprintf("invoices-%s.xlsx", e.now().Format(dateFormat))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(w); err != nil {
		e.logger.Error("write invoice workbook", slog.Any("error", err))
	}
}

// BuildInvoiceWorkbook lays out one row per invoice followed by a totals row.
func BuildInvoiceWorkbook(invoices []sales.Invoice) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return nil, err
	}
	moneyFormat := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return nil, err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &moneyFormat})
	if err != nil {
		return nil, err
	}

	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, "A1", cell("K", 1), headerStyle); err != nil {
		return nil, err
	}

	var totalHT, totalTax, totalTTC decimal.Decimal
	for i, inv := range invoices {
		row := i + 2
		values := []any{
			inv.Number,
			deref(inv.OrderNumber),
			clientName(inv.Client),
			clientCompany(inv.Client),
			inv.IssuedAt.Format(dateFormat),
			inv.DueAt.Format(dateFormat),
			formatTime(inv.PaidAt),
			string(inv.Status),
			inv.AmountHT.InexactFloat64(),
			inv.TaxAmount.InexactFloat64(),
			inv.AmountTTC.InexactFloat64(),
		}
		if err := f.SetSheetRow(sheetName, cell("A", row), &values); err != nil {
			return nil, err
		}
		totalHT = totalHT.Add(inv.AmountHT)
		totalTax = totalTax.Add(inv.TaxAmount)
		totalTTC = totalTTC.Add(inv.AmountTTC)
	}

	last := len(invoices) + 1
	if len(invoices) > 0 {
		if err := f.SetCellStyle(sheetName, cell("I", 2), cell("K", last), moneyStyle); err != nil {
			return nil, err
		}
	}
	totalRow := last + 1
	totals := []any{"Total", nil, nil, nil, nil, nil, nil, nil,
		totalHT.InexactFloat64(), totalTax.InexactFloat64(), totalTTC.InexactFloat64()}
	if err := f.SetSheetRow(sheetName, cell("A", totalRow), &totals); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheetName, cell("A", totalRow), cell("K", totalRow), totalStyle); err != nil {
		return nil, err
	}

	if err := f.SetColWidth(sheetName, "A", "B", 16); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheetName, "C", "D", 24); err != nil {
		return nil, err
	}
	if err := f.SetPanes(sheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, err
	}
	return f, nil
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clientName(c *sales.ClientSummary) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func clientCompany(c *sales.ClientSummary) string {
	if c == nil {
		return ""
	}
	return deref(c.Company)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateFormat)
}
