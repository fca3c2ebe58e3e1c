// Package model provides the business document types for invoicedesk.
//
// These are the in-memory shapes the UI and CLI work with before
// persistence. They are distinct from the stored records returned by
// the store packages, which add the surrogate id and synced flag.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the single accepted calendar date format for invoice
// and transaction dates.
const DateFormat = "2006-01-02"

// DefaultNumberPrefix is prepended to generated invoice numbers.
const DefaultNumberPrefix = "INV-"

// LineItem is a single row of an invoice.
//
// Quantity and UnitPrice are exact decimals so repeated sums never
// accumulate binary floating point drift. Presentation layers may
// convert to float for display only.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// Subtotal returns quantity * unit price.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.Quantity.Mul(li.UnitPrice)
}

// Invoice is an invoice document before persistence.
//
// InvoiceNumber is the natural key: user-meaningful and globally
// unique within a store. InvoiceDate is kept as a string in DateFormat
// because that is what the form layer produces; the validator checks
// parseability.
type Invoice struct {
	InvoiceNumber   string     `json:"invoice_number"`
	InvoiceDate     string     `json:"invoice_date"`
	CustomerName    string     `json:"customer_name"`
	CustomerAddress string     `json:"customer_address"`
	LineItems       []LineItem `json:"line_items"`
}

// TotalAmount returns the exact sum of line item subtotals.
//
// The total is always recomputed and never stored, so it cannot go
// stale relative to the line items.
func (inv *Invoice) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, li := range inv.LineItems {
		total = total.Add(li.Subtotal())
	}
	return total
}

// DefaultInvoice creates a pre-filled invoice for a new form: today's
// date, a date-based suggested number, and one empty line item.
func DefaultInvoice() *Invoice {
	today := time.Now()
	return &Invoice{
		InvoiceNumber: fmt.Sprintf("%s%s-001", DefaultNumberPrefix, today.Format("20060102")),
		InvoiceDate:   today.Format(DateFormat),
		LineItems: []LineItem{
			{Quantity: decimal.NewFromInt(1), UnitPrice: decimal.Zero},
		},
	}
}
