// Package reports derives financial figures from orders, purchases,
// expenses and stock.
package reports

import (
	"time"

	"github.com/fabricdesk/fabricdesk/internal/expenses"
	"github.com/fabricdesk/fabricdesk/internal/inventory"
	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/sales"
)

// Range limits the figures shown. Nil bounds are open.
type Range struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Contains reports whether t lies within the range, bounds inclusive.
func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && t.After(*r.To) {
		return false
	}
	return true
}

// Summary is the financial overview for a range.
type Summary struct {
	Range         Range   `json:"range"`
	OrderCount    int     `json:"orderCount"`
	Revenue       float64 `json:"revenue"`
	COGS          float64 `json:"cogs"`
	GrossProfit   float64 `json:"grossProfit"`
	PurchaseSpend float64 `json:"purchaseSpend"`
	ExpenseTotal  float64 `json:"expenseTotal"`
	NetProfit     float64 `json:"netProfit"`
	VATCollected  float64 `json:"vatCollected"`
	VATPaid       float64 `json:"vatPaid"`
	VATPayable    float64 `json:"vatPayable"`
	StockValue    float64 `json:"stockValue"`
}

// Inputs is the data a summary is computed from. Purchases is the full
// history since it also prices cost of goods sold; the range is applied
// to it here. Orders and Expenses are expected to be range-filtered.
type Inputs struct {
	Orders    []sales.Order
	Purchases []procurement.Purchase
	Expenses  []expenses.Expense
	Fabrics   []inventory.Fabric
}

// Compute builds the summary. Only Completed orders count as revenue.
// Cost of goods sold uses today's weighted average cost of each fabric.
func Compute(rng Range, in Inputs) Summary {
	s := Summary{Range: rng}
	avgCost := make(map[string]float64)
	for _, o := range in.Orders {
		if o.Status != sales.StatusCompleted || !rng.Contains(o.Date) {
			continue
		}
		s.OrderCount++
		s.Revenue += o.Subtotal
		s.VATCollected += o.VATAmount
		for _, item := range o.Items {
			cost, ok := avgCost[item.FabricCode]
			if !ok {
				cost = inventory.WeightedAverageCost(item.FabricCode, in.Purchases, in.Fabrics)
				avgCost[item.FabricCode] = cost
			}
			s.COGS += item.Meters * cost
		}
	}
	for _, p := range in.Purchases {
		if !rng.Contains(p.Date) {
			continue
		}
		s.PurchaseSpend += p.Subtotal
		s.VATPaid += p.VATAmount
	}
	for _, e := range in.Expenses {
		if !rng.Contains(e.Date) {
			continue
		}
		s.ExpenseTotal += e.Subtotal
		s.VATPaid += e.VATAmount
	}
	s.GrossProfit = s.Revenue - s.COGS
	s.NetProfit = s.GrossProfit - s.ExpenseTotal
	s.VATPayable = s.VATCollected - s.VATPaid
	s.StockValue = inventory.TotalWarehouseValue(in.Fabrics, in.Purchases)
	return s
}
