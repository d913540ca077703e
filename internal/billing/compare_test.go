package billing

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watthive/eflengine/internal/rates"
)

func TestCompareRanksByTotalCost(t *testing.T) {
	candidates := []CandidatePlan{
		{PlanID: "pricey", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(18)}},
		{PlanID: "cheap", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(11)}},
		{PlanID: "middle", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(14)}},
	}
	out := Compare(candidates, 1000, ComputeOptions{})
	if len(out.Ranked) != 3 {
		t.Fatalf("expected 3 ranked plans, got %d", len(out.Ranked))
	}
	wantOrder := []string{"cheap", "middle", "pricey"}
	for i, want := range wantOrder {
		if out.Ranked[i].PlanID != want {
			t.Errorf("rank %d: expected %s, got %s", i+1, want, out.Ranked[i].PlanID)
		}
		if out.Ranked[i].Rank != i+1 {
			t.Errorf("expected rank %d, got %d", i+1, out.Ranked[i].Rank)
		}
	}
}

func TestCompareDropsFailingPlans(t *testing.T) {
	candidates := []CandidatePlan{
		{PlanID: "ok", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(12)}},
		{PlanID: "broken", Model: nil},
		{PlanID: "bad-tiers", Model: &rates.RateStructure{
			Type: rates.RateTypeTiered,
			UsageTiers: []rates.UsageTier{
				{MinKWh: 100, MaxKWh: f64(500), RateCents: 10},
			},
		}},
	}
	out := Compare(candidates, 1000, ComputeOptions{})
	if len(out.Ranked) != 1 || out.Ranked[0].PlanID != "ok" {
		t.Fatalf("expected only the ok plan, got %+v", out.Ranked)
	}
	if len(out.Skipped) != 2 {
		t.Errorf("expected 2 skipped plans, got %v", out.Skipped)
	}
}

func TestCompareRankingShiftsWithUsage(t *testing.T) {
	candidates := []CandidatePlan{
		{PlanID: "tiered", Model: &rates.RateStructure{
			Type: rates.RateTypeTiered,
			UsageTiers: []rates.UsageTier{
				{MinKWh: 0, MaxKWh: f64(500), RateCents: 8},
				{MinKWh: 500, RateCents: 16},
			},
		}},
		{PlanID: "flat", Model: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(11),
		}},
		{PlanID: "credit", Model: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(12),
			BillCredits: []rates.BillCredit{
				{ThresholdKWh: 1000, AmountCents: 3000, Label: "usage credit"},
			},
		}},
	}

	cases := []struct {
		usage float64
		want  []string
	}{
		{300, []string{"tiered", "flat", "credit"}},
		{900, []string{"flat", "tiered", "credit"}},
		{1000, []string{"credit", "flat", "tiered"}},
		{2000, []string{"credit", "flat", "tiered"}},
	}
	for _, tc := range cases {
		out := Compare(candidates, tc.usage, ComputeOptions{})
		got := make([]string, 0, len(out.Ranked))
		for _, r := range out.Ranked {
			got = append(got, r.PlanID)
		}
		require.Equal(t, tc.want, got, "ranking at %v kWh", tc.usage)
	}
}

func TestCompareTiesKeepInputOrder(t *testing.T) {
	candidates := []CandidatePlan{
		{PlanID: "first", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(12)}},
		{PlanID: "second", Model: &rates.RateStructure{Type: rates.RateTypeFixed, EnergyRateCents: f64(12)}},
	}
	out := Compare(candidates, 500, ComputeOptions{})
	if out.Ranked[0].PlanID != "first" || out.Ranked[1].PlanID != "second" {
		t.Errorf("expected stable order on ties, got %+v", out.Ranked)
	}
}
