package inventory

import "github.com/fabricdesk/fabricdesk/internal/procurement"

// costPool accumulates monetary value and quantity across price evidence.
type costPool struct {
	value  float64
	meters float64
}

// add ignores evidence that cannot carry a price: non-positive quantities
// and negative prices.
func (p *costPool) add(meters, price float64) {
	if meters <= 0 || price < 0 {
		return
	}
	p.value += meters * price
	p.meters += meters
}

func (p costPool) average() float64 {
	if p.meters <= 0 {
		return 0
	}
	return p.value / p.meters
}

// WeightedAverageCost pools every purchase item for fabricCode, across all
// dates, with every explicitly priced roll of that fabric, and returns
// value/meters. Rolls without a price are valued by this result and so
// contribute no evidence. Returns 0 when there is no evidence.
func WeightedAverageCost(fabricCode string, purchases []procurement.Purchase, fabrics []Fabric) float64 {
	var pool costPool
	for _, p := range purchases {
		for _, item := range p.Items {
			if item.FabricCode == fabricCode {
				pool.add(item.Meters, item.PricePerMeter)
			}
		}
	}
	if fabric, ok := FindFabric(fabrics, fabricCode); ok {
		addPricedRolls(&pool, fabric.Rolls, func(Roll) bool { return true })
	}
	return pool.average()
}

// SubcodeAverageCost is WeightedAverageCost restricted to evidence that
// matches both fabric code and sub code.
func SubcodeAverageCost(fabricCode, subCode string, purchases []procurement.Purchase, fabric Fabric) float64 {
	var pool costPool
	for _, p := range purchases {
		for _, item := range p.Items {
			if item.FabricCode == fabricCode && item.SubCode == subCode {
				pool.add(item.Meters, item.PricePerMeter)
			}
		}
	}
	if fabric.MainCode == fabricCode {
		addPricedRolls(&pool, fabric.Rolls, func(r Roll) bool { return r.SubCode == subCode })
	}
	return pool.average()
}

func addPricedRolls(pool *costPool, rolls []Roll, match func(Roll) bool) {
	for _, r := range rolls {
		if r.Price > 0 && match(r) {
			pool.add(r.Meters, r.Price)
		}
	}
}
