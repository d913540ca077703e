package rates

import (
	"errors"
	"fmt"
	"sort"
)

// kwhEpsilon absorbs float slop when checking tier contiguity.
const kwhEpsilon = 1e-6

var (
	// ErrShapeConflict is returned when more than one structural pricing
	// shape is populated on the same RateStructure.
	ErrShapeConflict = errors.New("rates: multiple structural shapes populated")

	// ErrBadTiers is returned when a tier list cannot be normalized into a
	// contiguous, exhaustive sequence from zero.
	ErrBadTiers = errors.New("rates: tier list is not contiguous from zero")
)

// NormalizeTiers sorts the tiers, verifies they are non-overlapping and
// collectively exhaustive from 0 upward, and guarantees the final tier is
// open-ended. It returns a normalized copy; the input is untouched. A list
// that cannot be repaired this way is rejected rather than guessed at.
func NormalizeTiers(tiers []UsageTier) ([]UsageTier, error) {
	if len(tiers) == 0 {
		return nil, nil
	}

	out := cloneTiers(tiers)
	sort.SliceStable(out, func(i, j int) bool { return out[i].MinKWh < out[j].MinKWh })

	if out[0].MinKWh > kwhEpsilon {
		return nil, fmt.Errorf("%w: first tier starts at %.3f kWh", ErrBadTiers, out[0].MinKWh)
	}
	out[0].MinKWh = 0

	for i, t := range out {
		if t.RateCents < 0 {
			return nil, fmt.Errorf("rates: tier %d has negative rate %.4f", i, t.RateCents)
		}
		last := i == len(out)-1
		if t.MaxKWh == nil {
			if !last {
				return nil, fmt.Errorf("%w: open-ended tier %d before the final tier", ErrBadTiers, i)
			}
			continue
		}
		if *t.MaxKWh <= t.MinKWh {
			return nil, fmt.Errorf("%w: tier %d empty (%.3f..%.3f)", ErrBadTiers, i, t.MinKWh, *t.MaxKWh)
		}
		if !last {
			next := out[i+1]
			if diff := next.MinKWh - *t.MaxKWh; diff > kwhEpsilon || diff < -kwhEpsilon {
				return nil, fmt.Errorf("%w: tier %d ends at %.3f but tier %d starts at %.3f",
					ErrBadTiers, i, *t.MaxKWh, i+1, next.MinKWh)
			}
			// Clamp the boundary so the walk never double counts.
			out[i+1].MinKWh = *t.MaxKWh
		}
	}

	// The final tier is always open-ended after normalization.
	out[len(out)-1].MaxKWh = nil
	return out, nil
}

// Validate checks the structural invariants of a RateStructure: at most one
// of the fixed / tiered / time-of-use shapes populated, normalizable tiers,
// in-range TOU hours, and non-negative thresholds. TOU periods on a plan
// whose type is not TIME_OF_USE are rate adders, not a competing shape.
// Validate does not judge whether the plan is computable; that is the
// classifier's job.
func (r *RateStructure) Validate() error {
	if r == nil {
		return errors.New("rates: nil rate structure")
	}

	shapes := 0
	if r.EnergyRateCents != nil {
		shapes++
	}
	if len(r.UsageTiers) > 0 {
		shapes++
	}
	if r.Type == RateTypeTimeOfUse && len(r.TOUPeriods) > 0 {
		shapes++
	}
	if shapes > 1 {
		return ErrShapeConflict
	}

	if len(r.UsageTiers) > 0 {
		if _, err := NormalizeTiers(r.UsageTiers); err != nil {
			return err
		}
	}

	for i, p := range r.TOUPeriods {
		if err := validatePeriod(p); err != nil {
			return fmt.Errorf("rates: tou period %d: %w", i, err)
		}
	}

	for i, c := range r.BillCredits {
		if c.ThresholdKWh < 0 {
			return fmt.Errorf("rates: bill credit %d has negative threshold", i)
		}
	}

	if r.MinimumBillDollars != nil && *r.MinimumBillDollars < 0 {
		return errors.New("rates: negative minimum bill")
	}
	return nil
}

// Validate checks PlanRules invariants: in-range TOU hours and normalizable
// tiers when present.
func (p *PlanRules) Validate() error {
	if p == nil {
		return errors.New("rates: nil plan rules")
	}
	if p.DefaultRateCents < 0 {
		return errors.New("rates: negative default rate")
	}
	for i, period := range p.TOUPeriods {
		if err := validatePeriod(period); err != nil {
			return fmt.Errorf("rates: tou period %d: %w", i, err)
		}
	}
	if len(p.UsageTiers) > 0 {
		if _, err := NormalizeTiers(p.UsageTiers); err != nil {
			return err
		}
	}
	return nil
}

func validatePeriod(p TOUPeriod) error {
	if p.StartHour < 0 || p.StartHour > 23 {
		return fmt.Errorf("start hour %d out of range", p.StartHour)
	}
	if p.EndHour < 0 || p.EndHour > 24 {
		return fmt.Errorf("end hour %d out of range", p.EndHour)
	}
	for _, d := range p.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("day of week %d out of range", d)
		}
	}
	if p.RateCents < 0 {
		return fmt.Errorf("negative rate %.4f", p.RateCents)
	}
	return nil
}
