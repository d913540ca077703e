package rates

import "time"

// RateType identifies the structural pricing shape of a plan.
type RateType string

const (
	RateTypeFixed     RateType = "FIXED"
	RateTypeTiered    RateType = "TIERED"
	RateTypeTimeOfUse RateType = "TIME_OF_USE"
	RateTypeUnknown   RateType = "UNKNOWN"
)

// UsageTier is one block of a tiered energy price. MaxKWh nil means the tier
// is open-ended; tiers must be contiguous from zero upward.
type UsageTier struct {
	MinKWh    float64  `json:"min_kwh"`
	MaxKWh    *float64 `json:"max_kwh,omitempty"`
	RateCents float64  `json:"rate_cents_per_kwh"`
}

// TOUPeriod is a time-of-use pricing window. Hours are 0-23; a window with
// StartHour < EndHour is same-day, StartHour >= EndHour wraps midnight, and
// StartHour == EndHour covers the whole day. DaysOfWeek uses 0 = Sunday;
// an empty list applies every day.
type TOUPeriod struct {
	Label      string  `json:"label"`
	StartHour  int     `json:"start_hour"`
	EndHour    int     `json:"end_hour"`
	DaysOfWeek []int   `json:"days_of_week,omitempty"`
	RateCents  float64 `json:"rate_cents_per_kwh"`
	IsFree     bool    `json:"is_free"`
}

// BillCredit is a usage-threshold bill credit. AmountCents is positive for a
// true credit; a negative amount whose label names a minimum usage fee is the
// internal encoding of a MIN_USAGE_FEE rule (see billing.ExtractMinimumRules).
type BillCredit struct {
	Label        string  `json:"label"`
	ThresholdKWh float64 `json:"threshold_kwh"`
	AmountCents  int64   `json:"amount_cents"`
}

// TDSPCharges are the regulated delivery charges passed through by the
// transmission and distribution utility.
type TDSPCharges struct {
	MonthlyCents int64   `json:"monthly_cents"`
	CentsPerKWh  float64 `json:"cents_per_kwh"`
}

// AvgPricePoint is one row of the disclosure-mandated average price table.
type AvgPricePoint struct {
	UsageKWh    int     `json:"usage_kwh"`
	CentsPerKWh float64 `json:"cents_per_kwh"`
}

// RateStructure is the canonical parsed shape of a plan's pricing. At most
// one of the three structural shapes (fixed energy rate, usage tiers, TOU
// periods) may be populated; Validate enforces this.
type RateStructure struct {
	Type RateType `json:"type"`

	// Fixed shape.
	EnergyRateCents *float64 `json:"energy_rate_cents,omitempty"`

	// Tiered shape.
	UsageTiers []UsageTier `json:"usage_tiers,omitempty"`

	// Time-of-use shape.
	TOUPeriods []TOUPeriod `json:"tou_periods,omitempty"`

	BaseMonthlyFeeCents *int64       `json:"base_monthly_fee_cents,omitempty"`
	BillCredits         []BillCredit `json:"bill_credits,omitempty"`
	MinimumBillDollars  *float64     `json:"minimum_bill_dollars,omitempty"`

	// DeliveryIncluded reports whether the energy rate already bundles the
	// TDSP delivery charges. When false, Delivery (if known) is billed on top.
	DeliveryIncluded bool         `json:"delivery_included"`
	Delivery         *TDSPCharges `json:"delivery,omitempty"`

	// AvgPrices carries the REP's self-disclosed average price table when the
	// upstream parser captured it. The billing engine uses it as a fallback
	// when no structured shape is usable.
	AvgPrices []AvgPricePoint `json:"avg_prices,omitempty"`
}

// PlanRules is the denormalized per-timestamp pricing view over the same
// plan: a flat default rate plus TOU windows, solar buyback, and credits.
// RateStructure is the source of truth; the gap solver copies missing tier
// data into PlanRules, never the reverse.
type PlanRules struct {
	DefaultRateCents        float64      `json:"default_rate_cents"`
	TOUPeriods              []TOUPeriod  `json:"tou_periods,omitempty"`
	SolarBuybackCentsPerKWh *float64     `json:"solar_buyback_cents_per_kwh,omitempty"`
	BillCredits             []BillCredit `json:"bill_credits,omitempty"`
	UsageTiers              []UsageTier  `json:"usage_tiers,omitempty"`
}

// UsageIntervalPoint is a single metered interval. Points are immutable value
// records supplied by the caller for the duration of one computation.
type UsageIntervalPoint struct {
	Timestamp time.Time `json:"timestamp"`
	KWhImport float64   `json:"kwh_import"`
	KWhExport float64   `json:"kwh_export"`
}

// DisclosureUsageLevels are the three usage levels every EFL must disclose an
// average price for.
var DisclosureUsageLevels = [3]int{500, 1000, 2000}

// AvgPriceAt returns the disclosed average price at the given usage level.
func (r *RateStructure) AvgPriceAt(usageKWh int) (float64, bool) {
	for _, p := range r.AvgPrices {
		if p.UsageKWh == usageKWh {
			return p.CentsPerKWh, true
		}
	}
	return 0, false
}

// HasAvgPriceTable reports whether any disclosed average price is present.
func (r *RateStructure) HasAvgPriceTable() bool {
	return len(r.AvgPrices) > 0
}

// NearestAvgPrice returns the disclosed point whose usage level is closest
// to the given usage. Ties go to the lower level.
func (r *RateStructure) NearestAvgPrice(usageKWh float64) (AvgPricePoint, bool) {
	var best AvgPricePoint
	bestDist := -1.0
	for _, p := range r.AvgPrices {
		dist := usageKWh - float64(p.UsageKWh)
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist || (dist == bestDist && p.UsageKWh < best.UsageKWh) {
			best = p
			bestDist = dist
		}
	}
	return best, bestDist >= 0
}

// Clone returns a deep copy. The gap solver repairs copies, never its inputs.
func (r *RateStructure) Clone() *RateStructure {
	if r == nil {
		return nil
	}
	cp := *r
	cp.EnergyRateCents = clonePtr(r.EnergyRateCents)
	cp.BaseMonthlyFeeCents = clonePtr(r.BaseMonthlyFeeCents)
	cp.MinimumBillDollars = clonePtr(r.MinimumBillDollars)
	cp.UsageTiers = cloneTiers(r.UsageTiers)
	cp.TOUPeriods = clonePeriods(r.TOUPeriods)
	cp.BillCredits = append([]BillCredit(nil), r.BillCredits...)
	cp.AvgPrices = append([]AvgPricePoint(nil), r.AvgPrices...)
	if r.Delivery != nil {
		d := *r.Delivery
		cp.Delivery = &d
	}
	return &cp
}

// Clone returns a deep copy of the rules.
func (p *PlanRules) Clone() *PlanRules {
	if p == nil {
		return nil
	}
	cp := *p
	cp.SolarBuybackCentsPerKWh = clonePtr(p.SolarBuybackCentsPerKWh)
	cp.TOUPeriods = clonePeriods(p.TOUPeriods)
	cp.BillCredits = append([]BillCredit(nil), p.BillCredits...)
	cp.UsageTiers = cloneTiers(p.UsageTiers)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTiers(tiers []UsageTier) []UsageTier {
	if tiers == nil {
		return nil
	}
	out := make([]UsageTier, len(tiers))
	for i, t := range tiers {
		out[i] = t
		out[i].MaxKWh = clonePtr(t.MaxKWh)
	}
	return out
}

func clonePeriods(periods []TOUPeriod) []TOUPeriod {
	if periods == nil {
		return nil
	}
	out := make([]TOUPeriod, len(periods))
	for i, p := range periods {
		out[i] = p
		out[i].DaysOfWeek = append([]int(nil), p.DaysOfWeek...)
	}
	return out
}
