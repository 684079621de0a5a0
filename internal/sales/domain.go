package sales

import (
	"fmt"
	"time"

	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/invoicing"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// ErrInvalidStatus is returned for unknown statuses and for orders created
// in a state they cannot start in.
var ErrInvalidStatus = fmt.Errorf("sales: invalid status: %w", shared.ErrValidation)

// ParseStatus validates a status value.
func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
	}
}

// OrderItem is one line of a sales invoice, cut from a specific roll.
type OrderItem struct {
	FabricCode    string  `json:"fabricCode"`
	RollID        string  `json:"rollId"`
	SubCode       string  `json:"subCode"`
	Meters        float64 `json:"meters"`
	PricePerMeter float64 `json:"pricePerMeter"`
	TotalPrice    float64 `json:"totalPrice"`
}

// LineTotal implements invoicing.Line.
func (i OrderItem) LineTotal() float64 { return i.TotalPrice }

// Order is a sales invoice. StockDeductedAt is set once the order's items
// have been taken out of stock and never cleared.
type Order struct {
	ID              string      `json:"id"`
	Customer        string      `json:"customer"`
	Date            time.Time   `json:"date"`
	Items           []OrderItem `json:"items"`
	VATRate         float64     `json:"vatRate"`
	Status          Status      `json:"status"`
	Subtotal        float64     `json:"subtotal"`
	VATAmount       float64     `json:"vatAmount"`
	FinalPrice      float64     `json:"finalPrice"`
	StockDeductedAt *time.Time  `json:"stockDeductedAt,omitempty"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// ApplyTotals recomputes item totals and the invoice totals in place.
func (o *Order) ApplyTotals() {
	for i := range o.Items {
		o.Items[i].TotalPrice = invoicing.LineTotal(o.Items[i].Meters, o.Items[i].PricePerMeter)
	}
	totals := invoicing.ComputeTotals(o.Items, o.VATRate)
	o.Subtotal = totals.Subtotal
	o.VATAmount = totals.VATAmount
	o.FinalPrice = totals.FinalPrice
}

// Deducted reports whether stock has been taken for this order.
func (o Order) Deducted() bool { return o.StockDeductedAt != nil }

// DeductionLines maps the order's items to stock deductions.
func (o Order) DeductionLines() []inventory.DeductionLine {
	lines := make([]inventory.DeductionLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, inventory.DeductionLine{FabricCode: it.FabricCode, RollID: it.RollID, Meters: it.Meters})
	}
	return lines
}

// ItemInput describes an order line supplied by a caller.
type ItemInput struct {
	FabricCode    string
	RollID        string
	SubCode       string
	Meters        float64
	PricePerMeter float64
}

// CreateInput describes a new order. An empty Status means Pending.
type CreateInput struct {
	Customer string
	Date     time.Time
	VATRate  float64
	Status   Status
	Items    []ItemInput
}

// UpdateInput carries optional changes to an existing order.
type UpdateInput struct {
	Customer *string
	Date     *time.Time
	VATRate  *float64
	Status   *Status
	Items    *[]ItemInput
}

// ListFilter narrows order listings. Zero values disable a filter.
type ListFilter struct {
	From     *time.Time
	To       *time.Time
	Status   Status
	Customer string
	Limit    int
}
