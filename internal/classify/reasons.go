package classify

import "strings"

// ReasonCode names why a plan is not computable. The vocabulary is closed:
// downstream systems branch on these values, so new conditions get new
// constants here rather than free-text codes.
type ReasonCode string

const (
	ReasonMissingTemplate          ReasonCode = "MISSING_TEMPLATE"
	ReasonUnknown                  ReasonCode = "UNKNOWN"
	ReasonUnsupportedRateStructure ReasonCode = "UNSUPPORTED_RATE_STRUCTURE"
	ReasonUnsupportedMinRuleShape  ReasonCode = "UNSUPPORTED_MIN_RULE_SHAPE"
	ReasonNonDeterministicIndexed  ReasonCode = "NON_DETERMINISTIC_PRICING_INDEXED"

	// The requires-buckets family: the plan itself is fine, the calling
	// context just cannot supply the usage sub-totals its features need.
	ReasonTieredRequiresBuckets   ReasonCode = "TIERED_RATE_REQUIRES_USAGE_BUCKETS"
	ReasonTOURequiresBuckets      ReasonCode = "TOU_RATE_REQUIRES_USAGE_BUCKETS"
	ReasonCreditsRequireBuckets   ReasonCode = "BILL_CREDITS_REQUIRE_USAGE_BUCKETS"
	ReasonMinRulesRequireBuckets  ReasonCode = "MIN_RULES_REQUIRE_USAGE_BUCKETS"
	ReasonUsageBucketSumMismatch  ReasonCode = "USAGE_BUCKET_SUM_MISMATCH"
	ReasonSuspectTOULanguage      ReasonCode = "SUSPECT_TOU_LANGUAGE_ON_FIXED_PLAN"
	ReasonSuspectAvgPriceMismatch ReasonCode = "SUSPECT_AVG_PRICE_MISMATCH"

	// Validation queue reasons. A label with no average-price table cannot
	// be cross-checked at all, which is a review condition rather than a
	// broken template. Out-of-sync tier data is the one condition the gap
	// solver knows how to repair.
	ReasonMissingAvgPriceTable ReasonCode = "MISSING_AVG_PRICE_TABLE"
	ReasonTierDataOutOfSync    ReasonCode = "TIER_DATA_OUT_OF_SYNC"
)

// WithDetails renders a code plus free-text details in the canonical
// "CODE: details" form ParseReasonCode understands.
func (r ReasonCode) WithDetails(details string) string {
	if details == "" {
		return string(r)
	}
	return string(r) + ": " + details
}

// ParseReasonCode strips a trailing ": details" suffix and returns the bare
// code. It never validates against the constant list; quarantine policy
// matches by prefix precisely so unknown codes stay routable.
func ParseReasonCode(s string) ReasonCode {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	return ReasonCode(strings.TrimSpace(s))
}
