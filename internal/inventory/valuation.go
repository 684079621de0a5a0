package inventory

import (
	"fmt"

	"github.com/fabricdesk/fabricdesk/internal/procurement"
	"github.com/fabricdesk/fabricdesk/internal/shared"
)

// Strategy selects how stock is valued.
type Strategy string

const (
	// StrategyFabricAverage values each roll at its own price, falling back
	// to the fabric-wide weighted average. This is the canonical strategy.
	StrategyFabricAverage Strategy = "fabric"
	// StrategySubBatch values each sub-batch at the average of evidence
	// matching both fabric and sub code.
	StrategySubBatch Strategy = "subbatch"
)

// DefaultStrategy drives TotalWarehouseValue.
const DefaultStrategy = StrategyFabricAverage

// ParseStrategy maps a configuration or query value to a Strategy.
// An empty value yields DefaultStrategy.
func ParseStrategy(value string) (Strategy, error) {
	switch Strategy(value) {
	case "":
		return DefaultStrategy, nil
	case StrategyFabricAverage, StrategySubBatch:
		return Strategy(value), nil
	default:
		return "", fmt.Errorf("inventory: unknown valuation strategy %q: %w", value, shared.ErrValidation)
	}
}

// FabricValue is Σ meters × (roll price if set, else the weighted average).
func FabricValue(fabric Fabric, purchases []procurement.Purchase, fabrics []Fabric) float64 {
	var (
		value    float64
		avg      float64
		avgReady bool
	)
	for _, r := range fabric.Rolls {
		price := r.Price
		if price <= 0 {
			if !avgReady {
				avg = WeightedAverageCost(fabric.MainCode, purchases, fabrics)
				avgReady = true
			}
			price = avg
		}
		value += r.Meters * price
	}
	return value
}

// SubBatchValue is Σ over sub codes of meters in stock × SubcodeAverageCost.
func SubBatchValue(fabric Fabric, purchases []procurement.Purchase) float64 {
	order := make([]string, 0)
	meters := make(map[string]float64)
	for _, r := range fabric.Rolls {
		if _, ok := meters[r.SubCode]; !ok {
			order = append(order, r.SubCode)
		}
		meters[r.SubCode] += r.Meters
	}
	var value float64
	for _, sub := range order {
		value += meters[sub] * SubcodeAverageCost(fabric.MainCode, sub, purchases, fabric)
	}
	return value
}

// ValueFabric values one fabric with the given strategy.
func ValueFabric(strategy Strategy, fabric Fabric, purchases []procurement.Purchase, fabrics []Fabric) float64 {
	if strategy == StrategySubBatch {
		return SubBatchValue(fabric, purchases)
	}
	return FabricValue(fabric, purchases, fabrics)
}

// TotalWarehouseValue sums the canonical per-fabric value over fabrics.
func TotalWarehouseValue(fabrics []Fabric, purchases []procurement.Purchase) float64 {
	return TotalWarehouseValueWith(DefaultStrategy, fabrics, purchases)
}

// TotalWarehouseValueWith sums ValueFabric over fabrics.
func TotalWarehouseValueWith(strategy Strategy, fabrics []Fabric, purchases []procurement.Purchase) float64 {
	var total float64
	for _, f := range fabrics {
		total += ValueFabric(strategy, f, purchases, fabrics)
	}
	return total
}

// FabricValuation is one line of a warehouse valuation.
type FabricValuation struct {
	FabricID  string  `json:"fabricId"`
	MainCode  string  `json:"mainCode"`
	Name      string  `json:"name"`
	Meters    float64 `json:"meters"`
	RollCount int     `json:"rollCount"`
	AvgCost   float64 `json:"avgCost"`
	Value     float64 `json:"value"`
}

// WarehouseValuation is the per-fabric breakdown plus totals.
type WarehouseValuation struct {
	Strategy    Strategy          `json:"strategy"`
	Fabrics     []FabricValuation `json:"fabrics"`
	TotalMeters float64           `json:"totalMeters"`
	TotalValue  float64           `json:"totalValue"`
}

// ValueWarehouse builds the breakdown. TotalValue equals
// TotalWarehouseValueWith for the same inputs.
func ValueWarehouse(strategy Strategy, fabrics []Fabric, purchases []procurement.Purchase) WarehouseValuation {
	out := WarehouseValuation{Strategy: strategy, Fabrics: make([]FabricValuation, 0, len(fabrics))}
	for _, f := range fabrics {
		line := FabricValuation{
			FabricID:  f.ID,
			MainCode:  f.MainCode,
			Name:      f.Name,
			Meters:    f.TotalMeters(),
			RollCount: len(f.Rolls),
			AvgCost:   WeightedAverageCost(f.MainCode, purchases, fabrics),
			Value:     ValueFabric(strategy, f, purchases, fabrics),
		}
		out.Fabrics = append(out.Fabrics, line)
		out.TotalMeters += line.Meters
		out.TotalValue += line.Value
	}
	return out
}
