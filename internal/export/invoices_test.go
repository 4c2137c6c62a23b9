package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rapid-pub/backoffice/internal/platform/httpx"
	"github.com/rapid-pub/backoffice/internal/sales"
)

type fakeLister struct {
	invoices []sales.Invoice
	status   string
	err      error
}

func (f *fakeLister) ListInvoices(_ context.Context, status string) ([]sales.Invoice, error) {
	f.status = status
	return f.invoices, f.err
}

func sampleInvoices() []sales.Invoice {
	issued := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	paid := issued.AddDate(0, 0, 10)
	order := "CMD-2025-001"
	company := "Acme SARL"
	return []sales.Invoice{
		{
			ID: uuid.New(), Number: "FAC-2025-001", OrderNumber: &order,
			Client:   &sales.ClientSummary{Name: "Jean Martin", Company: &company},
			AmountHT: decimal.NewFromInt(100), TaxAmount: decimal.NewFromInt(20), AmountTTC: decimal.NewFromInt(120),
			Status: sales.InvoiceStatus("paid"), IssuedAt: issued, DueAt: issued.AddDate(0, 0, 30), PaidAt: &paid,
		},
		{
			ID: uuid.New(), Number: "FAC-2025-002",
			AmountHT: decimal.RequireFromString("33.33"), TaxAmount: decimal.RequireFromString("6.67"), AmountTTC: decimal.NewFromInt(40),
			Status: sales.InvoiceStatus("issued"), IssuedAt: issued, DueAt: issued.AddDate(0, 0, 30),
		},
	}
}

func TestBuildInvoiceWorkbook(t *testing.T) {
	f, err := BuildInvoiceWorkbook(sampleInvoices())
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "FAC-2025-001", rows[1][0])
	assert.Equal(t, "CMD-2025-001", rows[1][1])
	assert.Equal(t, "Jean Martin", rows[1][2])
	assert.Equal(t, "Acme SARL", rows[1][3])
	assert.Equal(t, "2025-03-14", rows[1][4])
	assert.Equal(t, "2025-03-24", rows[1][6])
	assert.Equal(t, "paid", rows[1][7])
	assert.Equal(t, "Total", rows[3][0])

	total, err := f.GetCellValue(sheetName, "K4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "160", total)
	tax, err := f.GetCellValue(sheetName, "J4", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "26.67", tax)
}

func TestBuildInvoiceWorkbookEmpty(t *testing.T) {
	f, err := BuildInvoiceWorkbook(nil)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Total", rows[1][0])
}

func TestInvoiceExporterServeHTTP(t *testing.T) {
	lister := &fakeLister{invoices: sampleInvoices()}
	e := NewInvoiceExporter(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))
	e.now = func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/export.xlsx?status=paid", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "paid", lister.status)
	assert.Equal(t, contentType, rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="invoices-2025-03-14.xlsx"`, rr.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(sheetName, "A2")
	require.NoError(t, err)
	assert.Equal(t, "FAC-2025-001", v)
}

func TestInvoiceExporterRejectsBadFilter(t *testing.T) {
	lister := &fakeLister{err: fmt.Errorf("%w: unknown status", httpx.ErrValidation)}
	e := NewInvoiceExporter(lister, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/invoices/export.xlsx?status=bogus", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
