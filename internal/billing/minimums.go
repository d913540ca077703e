package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/watthive/eflengine/internal/rates"
)

// ErrUnsupportedMinRuleShape reports minimum-rule data this engine refuses
// to interpret: duplicated rules, malformed encodings, out-of-range floors.
// Picking one of several candidates arbitrarily is never an option.
var ErrUnsupportedMinRuleShape = errors.New("unsupported minimum rule shape")

// MinimumRuleKind tags the two supported minimum rules.
type MinimumRuleKind string

const (
	MinUsageFee MinimumRuleKind = "MIN_USAGE_FEE"
	MinimumBill MinimumRuleKind = "MINIMUM_BILL"
)

// MinimumRule is one extracted minimum rule. A MIN_USAGE_FEE adds a flat
// fee when a cycle's usage is strictly below the threshold; a MINIMUM_BILL
// tops the subtotal up to a floor.
type MinimumRule struct {
	Kind                  MinimumRuleKind `json:"kind"`
	ThresholdKWhExclusive float64         `json:"threshold_kwh_exclusive,omitempty"`
	FeeDollars            float64         `json:"fee_dollars,omitempty"`
	MinimumBillDollars    float64         `json:"minimum_bill_dollars,omitempty"`
}

const maxMinimumBillDollars = 1000

// ExtractMinimumRules pulls the minimum rules out of a rate structure: at
// most one minimum-usage fee, encoded as a negative bill credit labelled as
// such, and at most one minimum-bill floor from the direct dollars field.
func ExtractMinimumRules(rs *rates.RateStructure) ([]MinimumRule, error) {
	if rs == nil {
		return nil, nil
	}

	var rules []MinimumRule
	seenFee := false
	for _, credit := range rs.BillCredits {
		if !isMinUsageFeeCredit(credit) {
			continue
		}
		if seenFee {
			return nil, fmt.Errorf("%w: multiple minimum usage fees", ErrUnsupportedMinRuleShape)
		}
		if credit.ThresholdKWh <= 0 || credit.AmountCents >= 0 {
			return nil, fmt.Errorf("%w: minimum usage fee needs a positive threshold and fee", ErrUnsupportedMinRuleShape)
		}
		seenFee = true
		rules = append(rules, MinimumRule{
			Kind:                  MinUsageFee,
			ThresholdKWhExclusive: credit.ThresholdKWh,
			FeeDollars:            float64(-credit.AmountCents) / 100,
		})
	}

	if rs.MinimumBillDollars != nil {
		floor := *rs.MinimumBillDollars
		if floor < 0 || floor > maxMinimumBillDollars {
			return nil, fmt.Errorf("%w: minimum bill $%.2f out of range", ErrUnsupportedMinRuleShape, floor)
		}
		if floor > 0 {
			rules = append(rules, MinimumRule{Kind: MinimumBill, MinimumBillDollars: floor})
		}
	}
	return rules, nil
}

// isMinUsageFeeCredit recognizes the negative-credit encoding of a minimum
// usage fee. Label match alone is enough to claim the entry; malformed
// numbers on a claimed entry are an extraction error, not a plain credit.
func isMinUsageFeeCredit(credit rates.BillCredit) bool {
	return strings.Contains(strings.ToLower(credit.Label), "minimum usage fee")
}

// AppliedMinimum records one minimum rule that changed the bill.
type AppliedMinimum struct {
	Kind        MinimumRuleKind `json:"kind"`
	AmountCents int64           `json:"amount_cents"`
}

// ApplyMinimums applies the extracted rules to a computed subtotal. The
// usage fee lands first, when usage is strictly below its threshold; the
// bill floor then tops the running total up to exactly the floor. The
// result is never below the subtotal and floors never stack.
func ApplyMinimums(rules []MinimumRule, usageKWh float64, subtotalCents int64) (int64, []AppliedMinimum) {
	total := subtotalCents
	var applied []AppliedMinimum

	for _, rule := range rules {
		if rule.Kind != MinUsageFee {
			continue
		}
		if usageKWh < rule.ThresholdKWhExclusive {
			fee := int64(math.Round(rule.FeeDollars * 100))
			total += fee
			applied = append(applied, AppliedMinimum{Kind: MinUsageFee, AmountCents: fee})
		}
	}
	for _, rule := range rules {
		if rule.Kind != MinimumBill {
			continue
		}
		floor := int64(math.Round(rule.MinimumBillDollars * 100))
		if total < floor {
			applied = append(applied, AppliedMinimum{Kind: MinimumBill, AmountCents: floor - total})
			total = floor
		}
		break
	}
	return total, applied
}
