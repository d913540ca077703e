package billing

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/watthive/eflengine/internal/rates"
)

// Component labels double as the usage-bucket keys a downstream calculator
// is told to supply. Keep them stable; persisted results reference them.
const (
	BucketEnergy       = "energy"
	BucketTOUAdder     = "tou_adder"
	BucketBaseFee      = "base_fee"
	BucketDelivery     = "tdsp_delivery"
	BucketBillCredit   = "bill_credit"
	BucketMinUsageFee  = "min_usage_fee"
	BucketMinBillTopUp = "min_bill_topup"
)

// Estimate sources for results that did not come from a structured rate.
const (
	EstimateAvgPriceTable = "AVG_PRICE_TABLE"
	EstimateGenericRate   = "GENERIC_RATE"
)

// genericRateCents is the last-resort energy rate when a plan discloses
// neither a structured rate nor an average-price table. Results built on it
// are always flagged as estimates.
const genericRateCents = 15.0

// ErrNoModel reports a computation attempted without a rate model. This is
// a caller bug, not a data condition, so it surfaces as an error instead of
// a not-computable result.
var ErrNoModel = errors.New("no rate model supplied")

// ComputeOptions carries the optional inputs: an hourly series for
// time-of-use pricing and the time zone its clock math runs in.
type ComputeOptions struct {
	Hourly   []rates.UsageIntervalPoint
	Location *time.Location
}

// CostComponent is one line of the bill breakdown, in integer cents.
// Credits are negative.
type CostComponent struct {
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

// PlanCostResult is one computed bill.
type PlanCostResult struct {
	UsageKWh             float64         `json:"usage_kwh"`
	TotalCents           int64           `json:"total_cents"`
	EffectiveCentsPerKWh float64         `json:"effective_cents_per_kwh"`
	Components           []CostComponent `json:"components"`
	Estimated            bool            `json:"estimated"`
	EstimateSource       string          `json:"estimate_source,omitempty"`
	Notes                []string        `json:"notes,omitempty"`
}

// Compute turns a rate model plus a month's usage into a cost breakdown.
// Energy comes from tiers when present, the fixed rate otherwise, and the
// disclosed average-price table as an estimated fallback; delivery and base
// fee are added when present, the single largest earned bill credit is
// subtracted, minimum rules are applied last, and the total never goes
// below zero.
func Compute(model *rates.RateStructure, usageKWh float64, opts ComputeOptions) (*PlanCostResult, error) {
	if model == nil {
		return nil, ErrNoModel
	}
	if usageKWh < 0 || math.IsNaN(usageKWh) || math.IsInf(usageKWh, 0) {
		return nil, fmt.Errorf("invalid usage %v kWh", usageKWh)
	}

	res := &PlanCostResult{UsageKWh: usageKWh}

	energyCents, err := energyCharge(model, usageKWh, res)
	if err != nil {
		return nil, err
	}
	res.Components = append(res.Components, CostComponent{Label: BucketEnergy, AmountCents: roundCents(energyCents)})

	if adder, ok := touAdder(model, opts, res); ok {
		res.Components = append(res.Components, CostComponent{Label: BucketTOUAdder, AmountCents: roundCents(adder)})
	}

	if model.BaseMonthlyFeeCents != nil && *model.BaseMonthlyFeeCents != 0 {
		res.Components = append(res.Components, CostComponent{Label: BucketBaseFee, AmountCents: *model.BaseMonthlyFeeCents})
	}

	if model.Delivery != nil && !model.DeliveryIncluded {
		delivery := float64(model.Delivery.MonthlyCents) + model.Delivery.CentsPerKWh*usageKWh
		res.Components = append(res.Components, CostComponent{Label: BucketDelivery, AmountCents: roundCents(delivery)})
	}

	if credit, ok := largestEarnedCredit(model.BillCredits, usageKWh); ok {
		res.Components = append(res.Components, CostComponent{Label: BucketBillCredit, AmountCents: -credit.AmountCents})
	}

	subtotal := int64(0)
	for _, c := range res.Components {
		subtotal += c.AmountCents
	}

	rules, err := ExtractMinimumRules(model)
	if err != nil {
		return nil, err
	}
	total, applied := ApplyMinimums(rules, usageKWh, subtotal)
	for _, a := range applied {
		label := BucketMinUsageFee
		if a.Kind == MinimumBill {
			label = BucketMinBillTopUp
		}
		res.Components = append(res.Components, CostComponent{Label: label, AmountCents: a.AmountCents})
	}

	if total < 0 {
		res.Notes = append(res.Notes, "total clamped at zero")
		total = 0
	}
	res.TotalCents = total
	if usageKWh > 0 {
		res.EffectiveCentsPerKWh = float64(total) / usageKWh
	}
	return res, nil
}

// energyCharge picks the energy pricing path and returns the charge in
// fractional cents.
func energyCharge(model *rates.RateStructure, usageKWh float64, res *PlanCostResult) (float64, error) {
	if len(model.UsageTiers) > 0 {
		tiers, err := rates.NormalizeTiers(model.UsageTiers)
		if err != nil {
			return 0, fmt.Errorf("normalize tiers: %w", err)
		}
		return tieredEnergy(tiers, usageKWh), nil
	}

	if model.EnergyRateCents != nil {
		return *model.EnergyRateCents * usageKWh, nil
	}

	if point, ok := model.NearestAvgPrice(usageKWh); ok {
		res.Estimated = true
		res.EstimateSource = EstimateAvgPriceTable
		res.Notes = append(res.Notes, fmt.Sprintf("energy estimated from disclosed average price at %d kWh", point.UsageKWh))
		return point.CentsPerKWh * usageKWh, nil
	}

	res.Estimated = true
	res.EstimateSource = EstimateGenericRate
	res.Notes = append(res.Notes, fmt.Sprintf("energy estimated at generic %.1f cents/kWh", genericRateCents))
	return genericRateCents * usageKWh, nil
}

// tieredEnergy walks normalized tiers, consuming usage block by block. The
// final tier is open-ended, so the walk always terminates with everything
// priced.
func tieredEnergy(tiers []rates.UsageTier, usageKWh float64) float64 {
	cents := 0.0
	remaining := usageKWh
	for _, tier := range tiers {
		if remaining <= 0 {
			break
		}
		block := remaining
		if tier.MaxKWh != nil {
			width := *tier.MaxKWh - tier.MinKWh
			if block > width {
				block = width
			}
		}
		cents += block * tier.RateCents
		remaining -= block
	}
	return cents
}

// touAdder sums every matching window's rate adder across the hourly
// series. Reported per hour in the series' own local clock.
func touAdder(model *rates.RateStructure, opts ComputeOptions, res *PlanCostResult) (float64, bool) {
	if len(model.TOUPeriods) == 0 {
		return 0, false
	}
	if len(opts.Hourly) == 0 {
		res.Notes = append(res.Notes, "time-of-use windows present but no hourly series supplied")
		return 0, false
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	adder := 0.0
	for _, point := range opts.Hourly {
		local := point.Timestamp.In(loc)
		for _, period := range model.TOUPeriods {
			if period.Matches(local) {
				adder += period.RateCents * point.KWhImport
			}
		}
	}
	return adder, true
}

// largestEarnedCredit picks the single largest positive credit whose
// threshold the usage meets. Credits never sum; the negative-credit
// encoding of a minimum usage fee is not a credit.
func largestEarnedCredit(credits []rates.BillCredit, usageKWh float64) (rates.BillCredit, bool) {
	var best rates.BillCredit
	found := false
	for _, credit := range credits {
		if credit.AmountCents <= 0 || isMinUsageFeeCredit(credit) {
			continue
		}
		if usageKWh < credit.ThresholdKWh {
			continue
		}
		if !found || credit.AmountCents > best.AmountCents {
			best = credit
			found = true
		}
	}
	return best, found
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}
