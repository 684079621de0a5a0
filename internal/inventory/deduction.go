package inventory

// DeductionLine removes Meters from one roll of one fabric.
type DeductionLine struct {
	FabricCode string  `json:"fabricCode"`
	RollID     string  `json:"rollId"`
	Meters     float64 `json:"meters"`
}

// DeductionResult reports the outcome of ApplyDeductions.
type DeductionResult struct {
	// Fabrics holds updated copies of every fabric that changed, in input order.
	Fabrics []Fabric
	Applied []DeductionLine
	Skipped []DeductionLine
}

// ApplyDeductions subtracts each line from the matching roll, clamping the
// remaining quantity at zero. Lines naming an unknown fabric or roll, or
// carrying a non-positive quantity, are skipped. The input slice and its
// rolls are never mutated.
func ApplyDeductions(fabrics []Fabric, lines []DeductionLine) DeductionResult {
	result := DeductionResult{Fabrics: make([]Fabric, 0)}
	working := make(map[string]*Fabric)

	for _, line := range lines {
		if line.Meters <= 0 {
			result.Skipped = append(result.Skipped, line)
			continue
		}
		fabric, ok := working[line.FabricCode]
		if !ok {
			source, found := FindFabric(fabrics, line.FabricCode)
			if !found {
				result.Skipped = append(result.Skipped, line)
				continue
			}
			clone := source
			clone.Rolls = append([]Roll(nil), source.Rolls...)
			fabric = &clone
		}
		idx := rollIndex(fabric.Rolls, line.RollID)
		if idx < 0 {
			result.Skipped = append(result.Skipped, line)
			continue
		}
		if !ok {
			working[line.FabricCode] = fabric
		}
		remaining := fabric.Rolls[idx].Meters - line.Meters
		if remaining < 0 {
			remaining = 0
		}
		fabric.Rolls[idx].Meters = remaining
		result.Applied = append(result.Applied, line)
	}

	for _, f := range fabrics {
		if changed, ok := working[f.MainCode]; ok {
			result.Fabrics = append(result.Fabrics, *changed)
			delete(working, f.MainCode)
		}
	}
	return result
}

func rollIndex(rolls []Roll, rollID string) int {
	for i, r := range rolls {
		if r.RollID == rollID {
			return i
		}
	}
	return -1
}
