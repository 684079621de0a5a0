package shared

import "github.com/shopspring/decimal"

// Round2 rounds a monetary or quantity value to two decimals for display.
// Engine code never calls it; only response and report rendering does.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
