// Package expenses records single-line operating costs with VAT.
package expenses

import (
	"time"

	"github.com/fabricdesk/fabricdesk/internal/invoicing"
)

// Expense is an operating cost. Totals are derived from Amount and VATRate.
type Expense struct {
	ID          string    `json:"id" db:"id"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Date        time.Time `json:"date" db:"date"`
	Amount      float64   `json:"amount" db:"amount"`
	VATRate     float64   `json:"vatRate" db:"vat_rate"`
	Subtotal    float64   `json:"subtotal" db:"subtotal"`
	VATAmount   float64   `json:"vatAmount" db:"vat_amount"`
	FinalPrice  float64   `json:"finalPrice" db:"final_price"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// ApplyTotals treats the expense as a one-line invoice.
func (e *Expense) ApplyTotals() {
	totals := invoicing.ComputeTotals([]invoicing.Amount{invoicing.Amount(e.Amount)}, e.VATRate)
	e.Subtotal = totals.Subtotal
	e.VATAmount = totals.VATAmount
	e.FinalPrice = totals.FinalPrice
}

// CreateInput describes a new expense.
type CreateInput struct {
	Description string
	Category    string
	Date        time.Time
	Amount      float64
	VATRate     float64
}

// ListFilter narrows expense listings.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Category string
}
