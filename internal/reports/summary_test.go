package reports

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fabricdesk/fabricdesk/internal/expenses"
	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/sales"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func sampleInputs() Inputs {
	return Inputs{
		Orders: []sales.Order{
			{Date: day(5), Status: sales.StatusCompleted, Subtotal: 30, VATAmount: 7.2,
				Items: []sales.OrderItem{{FabricCode: "A", RollID: "r1", Meters: 3, PricePerMeter: 10}}},
			{Date: day(6), Status: sales.StatusPending, Subtotal: 500, VATAmount: 120},
			{Date: day(20), Status: sales.StatusCompleted, Subtotal: 12, VATAmount: 2.88,
				Items: []sales.OrderItem{{FabricCode: "A", RollID: "r1", Meters: 1, PricePerMeter: 12}}},
		},
		Purchases: []procurement.Purchase{
			{Date: day(1), Subtotal: 90, VATAmount: 21.6, Items: []procurement.PurchaseItem{
				{FabricCode: "A", Meters: 10, PricePerMeter: 5},
				{FabricCode: "A", Meters: 5, PricePerMeter: 8},
			}},
			{Date: day(25), Subtotal: 100, VATAmount: 24},
		},
		Expenses: []expenses.Expense{{Date: day(2), Subtotal: 10, VATAmount: 2.4}},
		Fabrics:  []inventory.Fabric{{MainCode: "A", Rolls: []inventory.Roll{{RollID: "r1", Meters: 11}}}},
	}
}

func TestComputeSummary(t *testing.T) {
	s := Compute(Range{}, sampleInputs())

	assert.Equal(t, 2, s.OrderCount)
	assert.InDelta(t, 42.0, s.Revenue, 1e-9)
	assert.InDelta(t, 4*6.0, s.COGS, 1e-9)
	assert.InDelta(t, 18.0, s.GrossProfit, 1e-9)
	assert.InDelta(t, 8.0, s.NetProfit, 1e-9)
	assert.InDelta(t, 190.0, s.PurchaseSpend, 1e-9)
	assert.InDelta(t, 10.08, s.VATCollected, 1e-9)
	assert.InDelta(t, 48.0, s.VATPaid, 1e-9)
	assert.InDelta(t, 10.08-48.0, s.VATPayable, 1e-9)
	assert.InDelta(t, 66.0, s.StockValue, 1e-9)
}

func TestComputeSummaryAppliesRangeToDisplayedTotals(t *testing.T) {
	from, to := day(1), day(10)
	s := Compute(Range{From: &from, To: &to}, sampleInputs())

	assert.Equal(t, 1, s.OrderCount)
	assert.InDelta(t, 30.0, s.Revenue, 1e-9)
	// cost still priced from the full purchase history
	assert.InDelta(t, 18.0, s.COGS, 1e-9)
	assert.InDelta(t, 90.0, s.PurchaseSpend, 1e-9)
	assert.InDelta(t, 24.0, s.VATPaid, 1e-9)
}

func TestComputeSummaryEmpty(t *testing.T) {
	s := Compute(Range{}, Inputs{})
	assert.Zero(t, s.Revenue)
	assert.Zero(t, s.StockValue)
	assert.Zero(t, s.VATPayable)
}
