package billing

import (
	"sort"

	"github.com/watthive/eflengine/internal/rates"
)

// CandidatePlan is one plan entered into a comparison.
type CandidatePlan struct {
	PlanID string
	Model  *rates.RateStructure
}

/// RankedPlan is one comparison row: the plan, its full breakdown, and its
// rank after sorting.
type RankedPlan struct {
	PlanID string          `json:"plan_id"`
	Rank   int             `json:"rank"`
	Result *PlanCostResult `json:"result"`
}

// PlanComparisonResult holds every plan that computed successfully, sorted
// ascending by total cost, plus the identifiers of plans that dropped out.
type PlanComparisonResult struct {
	Ranked  []RankedPlan `json:"ranked"`
	Skipped []string     `json:"skipped,omitempty"`
}

// Compare runs the billing engine once per candidate against the same
// usage and options. Each computation is independent; failing plans are
// dropped rather than failing the comparison, and ties keep their input
// order.
func Compare(candidates []CandidatePlan, usageKWh float64, opts ComputeOptions) *PlanComparisonResult {
	out := &PlanComparisonResult{}
	for _, candidate := range candidates {
		res, err := Compute(candidate.Model, usageKWh, opts)
		if err != nil {
			out.Skipped = append(out.Skipped, candidate.PlanID)
			continue
		}
		out.Ranked = append(out.Ranked, RankedPlan{PlanID: candidate.PlanID, Result: res})
	}
	sort.SliceStable(out.Ranked, func(i, j int) bool {
		return out.Ranked[i].Result.TotalCents < out.Ranked[j].Result.TotalCents
	})
	for i := range out.Ranked {
		out.Ranked[i].Rank = i + 1
	}
	return out
}
