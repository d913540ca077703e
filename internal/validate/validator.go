package validate

import (
	"errors"
	"fmt"

	"github.com/watthive/eflengine/internal/billing"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/rates"
)

// Status is the validation verdict.
type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

// TDSPAppliedMode records how utility delivery charges entered the modeled
// average price.
type TDSPAppliedMode string

const (
	TDSPNone            TDSPAppliedMode = "NONE"
	TDSPAdded           TDSPAppliedMode = "ADDED"
	TDSPAlreadyIncluded TDSPAppliedMode = "ALREADY_INCLUDED"
)

// DefaultToleranceCentsPerKWh bounds the modeled-versus-disclosed average
// price delta when no tolerance is configured.
const DefaultToleranceCentsPerKWh = 0.5

// Assumptions lists the choices the validator had to make to compare at
// all.
type Assumptions struct {
	TDSPAppliedMode TDSPAppliedMode `json:"tdsp_applied_mode"`
}

// LevelCheck is the comparison at one disclosure usage level.
type LevelCheck struct {
	UsageKWh        int     `json:"usage_kwh"`
	ModeledCents    float64 `json:"modeled_cents_per_kwh"`
	DisclosedCents  float64 `json:"disclosed_cents_per_kwh"`
	DeltaCents      float64 `json:"delta_cents_per_kwh"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// ValidationResult is produced fresh on every call and never mutated;
// re-validation yields a new result the caller may diff against the prior
// one.
type ValidationResult struct {
	Status               Status       `json:"status"`
	ToleranceCentsPerKWh float64      `json:"tolerance_cents_per_kwh"`
	Levels               []LevelCheck `json:"levels,omitempty"`
	AssumptionsUsed      Assumptions  `json:"assumptions_used"`
	QueueReason          string       `json:"queue_reason,omitempty"`
	Notes                []string     `json:"notes,omitempty"`
}

// Input is one validation request: the normalized disclosure text and the
// candidate pair parsed from it.
type Input struct {
	Text     string
	TDSPName string
	Model    *rates.RateStructure
	Rules    *rates.PlanRules
}

// Validator cross-checks a parsed rate model against the average prices
// the REP itself discloses in the same document.
type Validator struct {
	toleranceCents float64
}

// New returns a validator with the given tolerance in cents per kWh. Zero
// or negative falls back to the default band.
func New(toleranceCentsPerKWh float64) *Validator {
	if toleranceCentsPerKWh <= 0 {
		toleranceCentsPerKWh = DefaultToleranceCentsPerKWh
	}
	return &Validator{toleranceCents: toleranceCentsPerKWh}
}

// Validate recomputes the plan's average price at the three disclosure
// levels through the billing engine and compares against the disclosed
// table. Every level must land within tolerance for a PASS; a label with
// no readable table FAILs with a distinct reason instead of passing
// vacuously.
func (v *Validator) Validate(in Input) *ValidationResult {
	res := &ValidationResult{
		Status:               StatusFail,
		ToleranceCentsPerKWh: v.toleranceCents,
		AssumptionsUsed:      Assumptions{TDSPAppliedMode: TDSPNone},
	}

	if in.Model == nil {
		res.QueueReason = classify.ReasonMissingTemplate.WithDetails("no rate structure to validate")
		return res
	}
	// A model with no structured energy price would be priced off the
	// disclosed table itself, and a table never disagrees with itself.
	if in.Model.EnergyRateCents == nil && len(in.Model.UsageTiers) == 0 {
		res.QueueReason = classify.ReasonUnsupportedRateStructure.WithDetails("no structured energy rate to validate")
		return res
	}
	// Both representations must agree before their numbers are trusted.
	// This is the one failure the gap solver can repair.
	if in.Rules != nil && len(in.Model.UsageTiers) > 0 && len(in.Rules.UsageTiers) == 0 {
		res.QueueReason = classify.ReasonTierDataOutOfSync.WithDetails("structure has usage tiers, rules have none")
		return res
	}

	text := efl.NormalizeText(in.Text)
	disclosed, _, ok := efl.ExtractAvgPriceTable(text)
	if !ok {
		res.QueueReason = classify.ReasonMissingAvgPriceTable.WithDetails("disclosure has no readable average-price table")
		return res
	}

	model, mode, note := v.comparisonModel(in, text)
	res.AssumptionsUsed.TDSPAppliedMode = mode
	if note != "" {
		res.Notes = append(res.Notes, note)
	}

	pass := true
	for _, point := range disclosed {
		check, err := v.checkLevel(model, point)
		if err != nil {
			res.QueueReason = err.Error()
			return res
		}
		res.Levels = append(res.Levels, check)
		if !check.WithinTolerance {
			pass = false
		}
	}

	if !pass {
		res.QueueReason = classify.ReasonSuspectAvgPriceMismatch.WithDetails(mismatchDetail(res.Levels, v.toleranceCents))
		return res
	}
	res.Status = StatusPass
	return res
}

// comparisonModel decides how delivery charges enter the modeled side and
// returns the model to compare with. The inputs are never modified.
func (v *Validator) comparisonModel(in Input, text string) (*rates.RateStructure, TDSPAppliedMode, string) {
	model := in.Model

	if model.DeliveryIncluded || model.Delivery != nil {
		return model, TDSPAlreadyIncluded, ""
	}

	// The disclosed averages are all-in by rule. When the label masks the
	// concrete delivery amounts but says they are passed through, compare
	// with the utility's standard charges added on the modeled side.
	if efl.DetectMaskedTDSP(text) {
		if tdsp, ok := rates.LookupTDSP(in.TDSPName); ok {
			repaired := model.Clone()
			charges := tdsp.Charges
			repaired.Delivery = &charges
			note := fmt.Sprintf("masked delivery charges: compared with %s standard charges added", tdsp.Key)
			return repaired, TDSPAdded, note
		}
		return model, TDSPNone, "masked delivery charges but no recognizable utility; compared without delivery"
	}
	return model, TDSPNone, ""
}

// checkLevel prices one synthetic flat month at a disclosure level.
func (v *Validator) checkLevel(model *rates.RateStructure, point rates.AvgPricePoint) (LevelCheck, error) {
	res, err := billing.Compute(model, float64(point.UsageKWh), billing.ComputeOptions{})
	if err != nil {
		code := classify.ReasonUnsupportedRateStructure
		if errors.Is(err, billing.ErrUnsupportedMinRuleShape) {
			code = classify.ReasonUnsupportedMinRuleShape
		}
		return LevelCheck{}, fmt.Errorf("%s", code.WithDetails(err.Error()))
	}
	modeled := res.EffectiveCentsPerKWh
	delta := modeled - point.CentsPerKWh
	if delta < 0 {
		delta = -delta
	}
	return LevelCheck{
		UsageKWh:        point.UsageKWh,
		ModeledCents:    modeled,
		DisclosedCents:  point.CentsPerKWh,
		DeltaCents:      delta,
		WithinTolerance: delta <= v.toleranceCents,
	}, nil
}

func mismatchDetail(levels []LevelCheck, tolerance float64) string {
	for _, l := range levels {
		if !l.WithinTolerance {
			return fmt.Sprintf("at %d kWh modeled %.3f but disclosed %.3f cents/kWh (tolerance %.3f)",
				l.UsageKWh, l.ModeledCents, l.DisclosedCents, tolerance)
		}
	}
	return ""
}
