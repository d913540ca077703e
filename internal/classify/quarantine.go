package classify

import "strings"

// ShouldQuarantine answers whether a not-computable reason marks a broken
// template a human must repair, as opposed to a plan that is merely
// unsupported in its context. Housekeeping statuses and the
// requires-buckets family never quarantine; unsupported, suspect, and
// non-deterministic families always do, as does a failed bucket-sum
// integrity check. Unrecognized codes default to not quarantining so an
// unknown input is never treated destructively.
func ShouldQuarantine(reasonCode string) bool {
	code := ParseReasonCode(reasonCode)

	switch code {
	case "", ReasonMissingTemplate, ReasonUnknown:
		return false
	case ReasonTieredRequiresBuckets, ReasonTOURequiresBuckets,
		ReasonCreditsRequireBuckets, ReasonMinRulesRequireBuckets:
		return false
	case ReasonUsageBucketSumMismatch:
		return true
	}

	s := string(code)
	switch {
	case strings.HasPrefix(s, "UNSUPPORTED_"),
		strings.HasPrefix(s, "SUSPECT_"),
		strings.HasPrefix(s, "NON_DETERMINISTIC_"):
		return true
	}
	return false
}
