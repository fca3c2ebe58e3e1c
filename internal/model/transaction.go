package model

import "github.com/shopspring/decimal"

// Transaction is a single bookkeeping entry.
//
// Reference plays the same natural-key role invoice numbers play for
// invoices: unique per store, supplied by the caller, used by the sync
// engine for duplicate detection.
type Transaction struct {
	Reference     string          `json:"reference"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Category      string          `json:"category"`
	Description   string          `json:"description"`
	PaymentMethod string          `json:"payment_method"`
}
