// Package pdf renders invoices to paginated PDF documents.
package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"

	"github.com/mkramer/invoicedesk/internal/model"
)

const (
	fontName      = "Helvetica"
	fontSizeLarge = 16
	fontSizeBody  = 10
	fontSizeSmall = 8
)

// Generator renders invoices. The zero value is usable; Author, when
// set, is written into the document metadata.
type Generator struct {
	Author string
}

// Export renders the invoice to path. Long line item lists flow onto
// additional pages automatically.
func (g *Generator) Export(inv *model.Invoice, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetTitle("Invoice "+inv.InvoiceNumber, false)
	if g.Author != "" {
		doc.SetAuthor(g.Author, false)
	}
	doc.SetAutoPageBreak(true, 20)
	doc.AddPage()

	// Header
	doc.SetFont(fontName, "B", fontSizeLarge)
	doc.Cell(0, 10, "INVOICE")
	doc.Ln(12)

	doc.SetFont(fontName, "", fontSizeBody)
	doc.Cell(0, 6, fmt.Sprintf("Invoice Number: %s", inv.InvoiceNumber))
	doc.Ln(6)
	doc.Cell(0, 6, fmt.Sprintf("Date: %s", inv.InvoiceDate))
	doc.Ln(10)

	// Customer block
	doc.SetFont(fontName, "B", fontSizeBody)
	doc.Cell(0, 6, "Bill To:")
	doc.Ln(6)
	doc.SetFont(fontName, "", fontSizeBody)
	doc.Cell(0, 6, inv.CustomerName)
	doc.Ln(6)
	if inv.CustomerAddress != "" {
		doc.MultiCell(0, 5, inv.CustomerAddress, "", "L", false)
	}
	doc.Ln(6)

	// Line item table
	g.writeItemTable(doc, inv)

	// Grand total
	doc.Ln(4)
	doc.SetFont(fontName, "B", fontSizeBody)
	doc.CellFormat(150, 8, "Total", "T", 0, "R", false, 0, "")
	doc.CellFormat(40, 8, inv.TotalAmount().StringFixed(2), "T", 1, "R", false, 0, "")

	if err := doc.OutputFileAndClose(path); err != nil {
		return fmt.Errorf("failed to write PDF %s: %w", path, err)
	}
	return nil
}

func (g *Generator) writeItemTable(doc *fpdf.Fpdf, inv *model.Invoice) {
	doc.SetFont(fontName, "B", fontSizeSmall)
	doc.CellFormat(10, 7, "#", "1", 0, "C", false, 0, "")
	doc.CellFormat(90, 7, "Description", "1", 0, "L", false, 0, "")
	doc.CellFormat(20, 7, "Qty", "1", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, "Unit Price", "1", 0, "R", false, 0, "")
	doc.CellFormat(40, 7, "Subtotal", "1", 1, "R", false, 0, "")

	doc.SetFont(fontName, "", fontSizeSmall)
	for i, li := range inv.LineItems {
		doc.CellFormat(10, 6, fmt.Sprintf("%d", i+1), "1", 0, "C", false, 0, "")
		doc.CellFormat(90, 6, li.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(20, 6, li.Quantity.String(), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 6, li.UnitPrice.StringFixed(2), "1", 0, "R", false, 0, "")
		doc.CellFormat(40, 6, li.Subtotal().StringFixed(2), "1", 1, "R", false, 0, "")
	}
}

// DefaultFileName returns the conventional export name for an invoice.
func DefaultFileName(inv *model.Invoice) string {
	return inv.InvoiceNumber + ".pdf"
}
