package procurement

import (
	"time"

	"github.com/fabricdesk/fabricdesk/internal/invoicing"
)

// PurchaseItem is one fabric line on a supplier invoice.
type PurchaseItem struct {
	FabricCode    string  `json:"fabricCode"`
	SubCode       string  `json:"subCode"`
	Meters        float64 `json:"meters"`
	PricePerMeter float64 `json:"pricePerMeter"`
	TotalPrice    float64 `json:"totalPrice"`
}

// LineTotal implements invoicing.Line.
func (i PurchaseItem) LineTotal() float64 { return i.TotalPrice }

// Purchase is a supplier invoice. Every stored purchase is permanent price
// evidence for the costing engine; editing one changes derived costs.
type Purchase struct {
	ID         string         `json:"id"`
	Supplier   string         `json:"supplier"`
	Date       time.Time      `json:"date"`
	Items      []PurchaseItem `json:"items"`
	VATRate    float64        `json:"vatRate"`
	Subtotal   float64        `json:"subtotal"`
	VATAmount  float64        `json:"vatAmount"`
	FinalPrice float64        `json:"finalPrice"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// ApplyTotals recomputes item totals and the invoice totals in place.
func (p *Purchase) ApplyTotals() {
	for i := range p.Items {
		p.Items[i].TotalPrice = invoicing.LineTotal(p.Items[i].Meters, p.Items[i].PricePerMeter)
	}
	totals := invoicing.ComputeTotals(p.Items, p.VATRate)
	p.Subtotal = totals.Subtotal
	p.VATAmount = totals.VATAmount
	p.FinalPrice = totals.FinalPrice
}

// ItemInput describes a purchase line supplied by a caller.
type ItemInput struct {
	FabricCode    string
	SubCode       string
	Meters        float64
	PricePerMeter float64
}

// CreateInput describes a new purchase.
type CreateInput struct {
	Supplier         string
	Date             time.Time
	VATRate          float64
	Items            []ItemInput
	ReceiveIntoStock bool
}

// UpdateInput carries optional changes to an existing purchase.
type UpdateInput struct {
	Supplier *string
	Date     *time.Time
	VATRate  *float64
	Items    *[]ItemInput
}

// ListFilter narrows purchase listings. Zero values disable a filter.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Supplier string
	Limit    int
}
