package classify

import (
	"fmt"

	"github.com/watthive/eflengine/internal/billing"
	"github.com/watthive/eflengine/internal/rates"
)

// Status is the classification verdict.
type Status string

const (
	StatusComputable    Status = "COMPUTABLE"
	StatusNotComputable Status = "NOT_COMPUTABLE"
)

// SupportedPlanFeatures flags what the classifier recognized on a plan.
// Recognition and support are different things: tiered and time-of-use
// shapes are recognized here but deliberately not computable yet, so the
// flags stay extensible instead of hard-coding today's restriction.
type SupportedPlanFeatures struct {
	FixedRate    bool `json:"fixed_rate"`
	TieredRate   bool `json:"tiered_rate"`
	TimeOfUse    bool `json:"time_of_use"`
	BillCredits  bool `json:"bill_credits"`
	MinimumRules bool `json:"minimum_rules"`
	BaseFee      bool `json:"base_fee"`
	Delivery     bool `json:"delivery"`
}

// Context carries what the caller can bring to a computation: whether its
// usage layer can supply per-bucket sub-totals, and any text evidence the
// extractor flagged.
type Context struct {
	HasUsageBuckets   bool
	TOULanguageInText bool
	IndexedPricing    bool
}

// ComputabilityStatus is the classification outcome. A COMPUTABLE result
// lists the bucket keys a downstream calculator must produce; a
// NOT_COMPUTABLE result carries a machine-readable reason.
type ComputabilityStatus struct {
	Status             Status                `json:"status"`
	ReasonCode         ReasonCode            `json:"reason_code,omitempty"`
	Reason             string                `json:"reason,omitempty"`
	Details            string                `json:"details,omitempty"`
	RequiredBucketKeys []string              `json:"required_bucket_keys,omitempty"`
	Features           SupportedPlanFeatures `json:"features"`
	AdvisoryNotes      []string              `json:"advisory_notes,omitempty"`
}

// DetectFeatures derives the feature flags from a rate structure.
func DetectFeatures(model *rates.RateStructure) SupportedPlanFeatures {
	if model == nil {
		return SupportedPlanFeatures{}
	}
	var features SupportedPlanFeatures
	features.FixedRate = model.EnergyRateCents != nil
	features.TieredRate = len(model.UsageTiers) > 0
	features.TimeOfUse = len(model.TOUPeriods) > 0
	features.BaseFee = model.BaseMonthlyFeeCents != nil && *model.BaseMonthlyFeeCents != 0
	features.Delivery = model.Delivery != nil && !model.DeliveryIncluded
	features.MinimumRules = model.MinimumBillDollars != nil
	for _, credit := range model.BillCredits {
		if credit.AmountCents > 0 {
			features.BillCredits = true
		}
		if credit.AmountCents < 0 {
			features.MinimumRules = true
		}
	}
	return features
}

// Classify decides whether a plan can be priced deterministically. The
// gate is conservative on purpose: anything without a single unambiguous
// fixed energy rate fails closed, and ambiguity is never resolved by
// guessing.
func Classify(model *rates.RateStructure, ctx Context) ComputabilityStatus {
	if model == nil {
		return notComputable(ReasonMissingTemplate, "no rate template on file", "", SupportedPlanFeatures{})
	}

	features := DetectFeatures(model)
	var notes []string
	if features.TieredRate {
		notes = append(notes, "tiered energy recognized; not computable in this version")
	}
	if features.TimeOfUse {
		notes = append(notes, "time-of-use windows recognized; not computable in this version")
	}

	if ctx.IndexedPricing {
		st := notComputable(ReasonNonDeterministicIndexed,
			"plan price is indexed to a market rate and cannot be forecast deterministically", "", features)
		st.AdvisoryNotes = notes
		return st
	}

	if features.TOULanguageOnFixedPlan(ctx) {
		st := notComputable(ReasonSuspectTOULanguage,
			"disclosure text reads like time-of-use but the structure says fixed",
			"template needs review before this plan is priced", features)
		st.AdvisoryNotes = notes
		return st
	}

	if features.TieredRate || features.TimeOfUse || !features.FixedRate {
		st := notComputable(ReasonUnsupportedRateStructure,
			"no single unambiguous fixed energy rate", structureDetail(model), features)
		st.AdvisoryNotes = notes
		return st
	}

	if _, err := billing.ExtractMinimumRules(model); err != nil {
		st := notComputable(ReasonUnsupportedMinRuleShape,
			"minimum rules do not fit a supported shape", err.Error(), features)
		st.AdvisoryNotes = notes
		return st
	}

	if !ctx.HasUsageBuckets {
		if features.BillCredits {
			st := notComputable(ReasonCreditsRequireBuckets,
				"bill credits need usage sub-totals this context cannot supply", "", features)
			st.AdvisoryNotes = notes
			return st
		}
		if features.MinimumRules {
			st := notComputable(ReasonMinRulesRequireBuckets,
				"minimum rules need usage sub-totals this context cannot supply", "", features)
			st.AdvisoryNotes = notes
			return st
		}
	}

	return ComputabilityStatus{
		Status:             StatusComputable,
		RequiredBucketKeys: bucketKeys(features),
		Features:           features,
		AdvisoryNotes:      notes,
	}
}

// TOULanguageOnFixedPlan reports the evidence mismatch worth quarantining:
// the text talks time-of-use, the structure does not.
func (f SupportedPlanFeatures) TOULanguageOnFixedPlan(ctx Context) bool {
	return ctx.TOULanguageInText && f.FixedRate && !f.TimeOfUse
}

// bucketKeys lists the breakdown buckets a calculator must produce for
// these features. Energy is always present.
func bucketKeys(features SupportedPlanFeatures) []string {
	keys := []string{billing.BucketEnergy}
	if features.BaseFee {
		keys = append(keys, billing.BucketBaseFee)
	}
	if features.Delivery {
		keys = append(keys, billing.BucketDelivery)
	}
	if features.BillCredits {
		keys = append(keys, billing.BucketBillCredit)
	}
	if features.MinimumRules {
		keys = append(keys, billing.BucketMinUsageFee, billing.BucketMinBillTopUp)
	}
	return keys
}

func structureDetail(model *rates.RateStructure) string {
	return fmt.Sprintf("type=%s tiers=%d tou_periods=%d", model.Type, len(model.UsageTiers), len(model.TOUPeriods))
}

func notComputable(code ReasonCode, reason, details string, features SupportedPlanFeatures) ComputabilityStatus {
	return ComputabilityStatus{
		Status:     StatusNotComputable,
		ReasonCode: code,
		Reason:     reason,
		Details:    details,
		Features:   features,
	}
}
