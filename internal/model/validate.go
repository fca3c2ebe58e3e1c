package model

import (
	"fmt"
	"strings"
	"time"
)

// ValidDate reports whether s parses under the application date format.
func ValidDate(s string) bool {
	_, err := time.Parse(DateFormat, s)
	return err == nil
}

// ValidateInvoice checks an invoice for persistability.
//
// It is a pure function: the invoice is never mutated and no store is
// consulted. The returned slice is empty iff the invoice is acceptable.
// Line item messages use the item's 1-based position in the document,
// which is what the user sees after inserting or deleting rows.
func ValidateInvoice(inv *Invoice) []string {
	var errs []string

	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		errs = append(errs, "Invoice number is required.")
	}

	if strings.TrimSpace(inv.InvoiceDate) == "" {
		errs = append(errs, "Invoice date is required.")
	} else if !ValidDate(inv.InvoiceDate) {
		errs = append(errs, "Invoice date format is invalid. Expected YYYY-MM-DD.")
	}

	if strings.TrimSpace(inv.CustomerName) == "" {
		errs = append(errs, "Customer name is required.")
	}

	if len(inv.LineItems) == 0 {
		errs = append(errs, "At least one line item is required.")
	}
	for i, li := range inv.LineItems {
		num := i + 1
		if strings.TrimSpace(li.Description) == "" {
			errs = append(errs, fmt.Sprintf("Line item #%d: Description is required.", num))
		}
		if !li.Quantity.IsPositive() {
			errs = append(errs, fmt.Sprintf("Line item #%d: Quantity must be a positive number.", num))
		}
		if li.UnitPrice.IsNegative() {
			errs = append(errs, fmt.Sprintf("Line item #%d: Price must be a non-negative number.", num))
		}
	}

	return errs
}

// ValidateTransaction checks a bookkeeping entry for persistability.
// Same contract as ValidateInvoice: pure, empty result means valid.
func ValidateTransaction(tx *Transaction) []string {
	var errs []string

	if strings.TrimSpace(tx.Reference) == "" {
		errs = append(errs, "Transaction reference is required.")
	}

	if strings.TrimSpace(tx.Date) == "" {
		errs = append(errs, "Transaction date is required.")
	} else if !ValidDate(tx.Date) {
		errs = append(errs, "Transaction date format is invalid. Expected YYYY-MM-DD.")
	}

	if tx.Amount.IsZero() {
		errs = append(errs, "Transaction amount must be non-zero.")
	}

	if strings.TrimSpace(tx.Category) == "" {
		errs = append(errs, "Transaction category is required.")
	}

	if strings.TrimSpace(tx.PaymentMethod) == "" {
		errs = append(errs, "Payment method is required.")
	}

	return errs
}
