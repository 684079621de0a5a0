// Package invoicing computes invoice totals shared by sales orders,
// purchases and expenses.
package invoicing

// Line is any invoice line that knows its own total.
type Line interface {
	LineTotal() float64
}

// Amount is a bare line total, used for single-line documents such as expenses.
type Amount float64

// LineTotal implements Line.
func (a Amount) LineTotal() float64 { return float64(a) }

// Totals holds the derived figures stored on every invoice.
type Totals struct {
	Subtotal   float64 `json:"subtotal"`
	VATAmount  float64 `json:"vatAmount"`
	FinalPrice float64 `json:"finalPrice"`
}

// LineTotal returns meters * pricePerMeter.
func LineTotal(meters, pricePerMeter float64) float64 {
	return meters * pricePerMeter
}

// ComputeTotals sums the line totals and applies vatRatePercent.
// An empty list yields zero totals.
func ComputeTotals[L Line](items []L, vatRatePercent float64) Totals {
	var subtotal float64
	for _, item := range items {
		subtotal += item.LineTotal()
	}
	vat := subtotal * vatRatePercent / 100
	return Totals{
		Subtotal:   subtotal,
		VATAmount:  vat,
		FinalPrice: subtotal + vat,
	}
}
