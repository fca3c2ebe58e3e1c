package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkramer/invoicedesk/internal/model"
)

func sampleInvoice(items int) *model.Invoice {
	inv := &model.Invoice{
		InvoiceNumber:   "INV-20250615-001",
		InvoiceDate:     "2025-06-15",
		CustomerName:    "Acme Corp",
		CustomerAddress: "1 Main St\nSpringfield",
	}
	for i := 0; i < items; i++ {
		inv.LineItems = append(inv.LineItems, model.LineItem{
			Description: fmt.Sprintf("Item %d", i+1),
			Quantity:    decimal.NewFromInt(2),
			UnitPrice:   decimal.RequireFromString("9.99"),
		})
	}
	return inv
}

func TestExportWritesPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.pdf")

	g := &Generator{Author: "invoicedesk"}
	require.NoError(t, g.Export(sampleInvoice(3), path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestExportCreatesOutputDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "out.pdf")

	g := &Generator{}
	require.NoError(t, g.Export(sampleInvoice(1), path))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestExportPaginatesLongItemLists(t *testing.T) {
	short := filepath.Join(t.TempDir(), "short.pdf")
	long := filepath.Join(t.TempDir(), "long.pdf")

	g := &Generator{}
	require.NoError(t, g.Export(sampleInvoice(2), short))
	require.NoError(t, g.Export(sampleInvoice(120), long))

	shortInfo, err := os.Stat(short)
	require.NoError(t, err)
	longInfo, err := os.Stat(long)
	require.NoError(t, err)
	assert.Greater(t, longInfo.Size(), shortInfo.Size())
}

func TestDefaultFileName(t *testing.T) {
	assert.Equal(t, "INV-20250615-001.pdf", DefaultFileName(sampleInvoice(1)))
}
