package validate

import (
	"strings"
	"testing"

	"github.com/watthive/eflengine/internal/rates"
)

func tieredPair() (*rates.RateStructure, *rates.PlanRules) {
	model := &rates.RateStructure{
		Type: rates.RateTypeTiered,
		UsageTiers: []rates.UsageTier{
			{MinKWh: 0, MaxKWh: f64(1000), RateCents: 10},
			{MinKWh: 1000, RateCents: 12},
		},
	}
	rules := &rates.PlanRules{DefaultRateCents: 10}
	return model, rules
}

func TestSolveTierSyncRepairsAndRevalidates(t *testing.T) {
	model, rules := tieredPair()
	// Modeled from the tiers: 10.0 / 10.0 / 11.0 cents per kWh.
	in := Input{
		Text:  labelWithTable("10.0¢       10.0¢        11.0¢"),
		Model: model,
		Rules: rules,
	}
	v := New(0.5)

	prior := v.Validate(in)
	if prior.Status != StatusFail || !strings.Contains(prior.QueueReason, "TIER_DATA_OUT_OF_SYNC") {
		t.Fatalf("expected out-of-sync failure first, got %s (%s)", prior.Status, prior.QueueReason)
	}

	solved := v.Solve(in, prior)
	if solved.SolveMode != SolvePassWithAssumptions {
		t.Fatalf("expected PASS_WITH_ASSUMPTIONS, got %s (%s)", solved.SolveMode, solved.QueueReason)
	}
	applied := strings.Join(solved.SolverApplied, ",")
	if !strings.Contains(applied, RepairTierSync) {
		t.Errorf("expected tier_sync in applied repairs, got %v", solved.SolverApplied)
	}
	if solved.RepairedRules == nil || len(solved.RepairedRules.UsageTiers) != 2 {
		t.Fatalf("expected repaired rules with synced tiers, got %+v", solved.RepairedRules)
	}
	// One-directional: the original pair is untouched.
	if len(rules.UsageTiers) != 0 {
		t.Errorf("solver must not mutate the input rules")
	}
	if len(model.UsageTiers) != 2 {
		t.Errorf("solver must not mutate the input model")
	}
}

func TestSolveNeverSyncsRulesIntoStructure(t *testing.T) {
	// The reverse gap: rules carry tiers, the structure does not. The
	// structure is the source of truth, so no repair applies.
	model := &rates.RateStructure{
		Type:            rates.RateTypeFixed,
		EnergyRateCents: f64(12),
	}
	rules := &rates.PlanRules{
		DefaultRateCents: 12,
		UsageTiers: []rates.UsageTier{
			{MinKWh: 0, RateCents: 12},
		},
	}
	in := Input{
		Text:  labelWithTable("14.0¢       14.0¢        14.0¢"),
		Model: model,
		Rules: rules,
	}
	v := New(0.5)
	prior := v.Validate(in)
	if prior.Status != StatusFail {
		t.Fatalf("expected failing prior, got %s", prior.Status)
	}
	solved := v.Solve(in, prior)
	if solved.SolveMode != SolveNone {
		t.Fatalf("expected NONE, got %s", solved.SolveMode)
	}
	if model.EnergyRateCents == nil || len(model.UsageTiers) != 0 {
		t.Errorf("structure must never be back-filled from rules")
	}
	if solved.QueueReason != prior.QueueReason {
		t.Errorf("result must come back unchanged when nothing applies")
	}
}

func TestSolvePassingPriorImmediatelyNone(t *testing.T) {
	model := &rates.RateStructure{
		Type:            rates.RateTypeFixed,
		EnergyRateCents: f64(12),
	}
	in := Input{Text: labelWithTable("12.0¢       12.0¢        12.0¢"), Model: model}
	v := New(0.5)
	prior := v.Validate(in)
	if prior.Status != StatusPass {
		t.Fatalf("expected passing prior, got %s (%s)", prior.Status, prior.QueueReason)
	}
	solved := v.Solve(in, prior)
	if solved.SolveMode != SolveNone {
		t.Errorf("expected NONE for a passing prior, got %s", solved.SolveMode)
	}
	if len(solved.SolverApplied) != 0 {
		t.Errorf("no repairs should be attempted on a passing prior, got %v", solved.SolverApplied)
	}
}

func TestSolveRecordsMaskedTDSPFlag(t *testing.T) {
	model, rules := tieredPair()
	text := `
Average Monthly Use:        500 kWh     1,000 kWh    2,000 kWh
Average Price per kWh:      10.0¢       10.0¢        11.0¢
Delivery charges are passed through without markup.**
`
	in := Input{Text: text, Model: model, Rules: rules}
	v := New(0.5)
	solved := v.Solve(in, v.Validate(in))

	found := false
	for _, repair := range solved.SolverApplied {
		if repair == RepairMaskedTDSPFlag {
			found = true
		}
	}
	if !found {
		t.Errorf("expected masked flag in attempted repairs, got %v", solved.SolverApplied)
	}
}

func TestSolveFailWhenRevalidationStillFails(t *testing.T) {
	model, rules := tieredPair()
	// Disclosed prices disagree with the tiers even after the sync.
	in := Input{
		Text:  labelWithTable("15.0¢       15.0¢        15.0¢"),
		Model: model,
		Rules: rules,
	}
	v := New(0.5)
	solved := v.Solve(in, v.Validate(in))
	if solved.SolveMode != SolveFail {
		t.Fatalf("expected FAIL after unsuccessful repair, got %s", solved.SolveMode)
	}
	if solved.Status != StatusFail {
		t.Errorf("re-validation verdict should be carried, got %s", solved.Status)
	}
}
