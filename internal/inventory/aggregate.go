package inventory

import "github.com/fabricdesk/fabricdesk/internal/procurement"

// SubcodeSummary totals the rolls of one sub-batch.
type SubcodeSummary struct {
	SubCode  string  `json:"subCode"`
	Meters   float64 `json:"meters"`
	Count    int     `json:"count"`
	AvgPrice float64 `json:"avgPrice"`
}

// SummarizeSubcodes groups rolls by sub code in order of first occurrence.
// Every group carries the same fabric-wide weighted average as AvgPrice;
// SubcodeAverageCost gives the per-sub-batch figure.
func SummarizeSubcodes(rolls []Roll, fabricCode string, purchases []procurement.Purchase, fabrics []Fabric) []SubcodeSummary {
	summaries := make([]SubcodeSummary, 0)
	if len(rolls) == 0 {
		return summaries
	}
	avg := WeightedAverageCost(fabricCode, purchases, fabrics)
	index := make(map[string]int)
	for _, r := range rolls {
		i, ok := index[r.SubCode]
		if !ok {
			i = len(summaries)
			index[r.SubCode] = i
			summaries = append(summaries, SubcodeSummary{SubCode: r.SubCode, AvgPrice: avg})
		}
		summaries[i].Meters += r.Meters
		summaries[i].Count++
	}
	return summaries
}
