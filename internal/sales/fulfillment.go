package sales

// StockEffect is what a status change does to warehouse stock.
type StockEffect int

const (
	// StockUnchanged leaves stock as it is.
	StockUnchanged StockEffect = iota
	// StockDeduct takes the order's items out of stock.
	StockDeduct
)

func (e StockEffect) String() string {
	if e == StockDeduct {
		return "deduct"
	}
	return "none"
}

type transition struct {
	from Status
	to   Status
}

// deductingTransitions lists every entry into Completed. The empty from
// status stands for order creation.
var deductingTransitions = map[transition]struct{}{
	{from: "", to: StatusCompleted}:               {},
	{from: StatusPending, to: StatusCompleted}:   {},
	{from: StatusCancelled, to: StatusCompleted}: {},
}

// PlanTransition returns the stock effect of moving an order from one
// status to another. Only the first entry into Completed deducts: once
// deducted, every later transition is a no-op. Every status may be set
// from every other status.
func PlanTransition(from, to Status, deducted bool) StockEffect {
	if deducted {
		return StockUnchanged
	}
	if _, ok := deductingTransitions[transition{from: from, to: to}]; ok {
		return StockDeduct
	}
	return StockUnchanged
}
