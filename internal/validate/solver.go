package validate

import (
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/rates"
)

// SolveMode reports what the gap solver did with a failed validation.
type SolveMode string

const (
	SolveNone                SolveMode = "NONE"
	SolvePassWithAssumptions SolveMode = "PASS_WITH_ASSUMPTIONS"
	SolveFail                SolveMode = "FAIL"
)

// Named repairs. Only these two exist; the solver never invents values it
// cannot justify from data already present.
const (
	RepairTierSync       = "tier_sync"
	RepairMaskedTDSPFlag = "masked_tdsp_detected"
)

// SolveResult mirrors a ValidationResult plus the solver's own fields.
type SolveResult struct {
	ValidationResult
	SolverApplied []string         `json:"solver_applied,omitempty"`
	SolveMode     SolveMode        `json:"solve_mode"`
	RepairedRules *rates.PlanRules `json:"repaired_rules,omitempty"`
}

// Solve attempts the narrow repairs on a failed validation and re-runs the
// validator against the repaired pair. Tier data flows from RateStructure
// to PlanRules only; the structure is the source of truth and is never
// back-filled from the rules. The masked-delivery heuristic is recorded as
// attempted but changes no prices. A passing prior result, or one no
// repair applies to, comes back unchanged with mode NONE; the solver never
// asserts success itself, the re-validation verdict decides.
func (v *Validator) Solve(in Input, prior *ValidationResult) *SolveResult {
	if prior == nil {
		prior = v.Validate(in)
	}
	if prior.Status == StatusPass {
		return &SolveResult{ValidationResult: *prior, SolveMode: SolveNone}
	}

	var attempted []string
	if efl.DetectMaskedTDSP(efl.NormalizeText(in.Text)) {
		attempted = append(attempted, RepairMaskedTDSPFlag)
	}

	repairedRules, synced := syncTiers(in.Model, in.Rules)
	if !synced {
		return &SolveResult{ValidationResult: *prior, SolverApplied: attempted, SolveMode: SolveNone}
	}
	attempted = append(attempted, RepairTierSync)

	repaired := in
	repaired.Rules = repairedRules
	revalidated := v.Validate(repaired)

	mode := SolveFail
	if revalidated.Status == StatusPass {
		mode = SolvePassWithAssumptions
	}
	return &SolveResult{
		ValidationResult: *revalidated,
		SolverApplied:    attempted,
		SolveMode:        mode,
		RepairedRules:    repairedRules,
	}
}

// syncTiers copies normalized tiers from the structure onto a copy of the
// rules when the rules lack them. Unnormalizable tiers are not copied;
// propagating bad data is not a repair.
func syncTiers(model *rates.RateStructure, rules *rates.PlanRules) (*rates.PlanRules, bool) {
	if model == nil || rules == nil {
		return nil, false
	}
	if len(rules.UsageTiers) > 0 || len(model.UsageTiers) == 0 {
		return nil, false
	}
	tiers, err := rates.NormalizeTiers(model.UsageTiers)
	if err != nil {
		return nil, false
	}
	repaired := rules.Clone()
	repaired.UsageTiers = tiers
	return repaired, true
}
