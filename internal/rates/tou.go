package rates

import "time"

// ContainsHour reports whether the clock hour h (0-23) falls inside the
// window. Start is inclusive and end exclusive; a window whose start equals
// its end covers the whole day, and start >= end wraps midnight, so
// {21, 7} contains 23 and 3 but not 12.
func (p TOUPeriod) ContainsHour(h int) bool {
	if p.StartHour == p.EndHour {
		return true
	}
	if p.StartHour < p.EndHour {
		return h >= p.StartHour && h < p.EndHour
	}
	return h >= p.StartHour || h < p.EndHour
}

// AppliesOn reports whether the window is active on the given weekday
// (Sunday-indexed). An empty day list applies every day. For windows that
// wrap midnight the timestamp's own weekday is checked.
func (p TOUPeriod) AppliesOn(d time.Weekday) bool {
	if len(p.DaysOfWeek) == 0 {
		return true
	}
	for _, day := range p.DaysOfWeek {
		if day == int(d) {
			return true
		}
	}
	return false
}

// Matches reports whether the window covers the local time t.
func (p TOUPeriod) Matches(t time.Time) bool {
	return p.AppliesOn(t.Weekday()) && p.ContainsHour(t.Hour())
}

// RateAt resolves the per-kWh import rate at the local time t: the first
// matching TOU window wins, otherwise the flat default rate applies. The
// second return is the matched window label, empty for the default rate.
func (p *PlanRules) RateAt(t time.Time) (float64, string) {
	for _, period := range p.TOUPeriods {
		if period.Matches(t) {
			if period.IsFree {
				return 0, period.Label
			}
			return period.RateCents, period.Label
		}
	}
	return p.DefaultRateCents, ""
}

// PriceInterval prices a single metered interval under the per-timestamp
// path: import at the resolved rate minus any solar buyback for exported
// energy. The result is in cents.
func (p *PlanRules) PriceInterval(point UsageIntervalPoint, loc *time.Location) float64 {
	ts := point.Timestamp
	if loc != nil {
		ts = ts.In(loc)
	}
	rate, _ := p.RateAt(ts)
	cents := point.KWhImport * rate
	if p.SolarBuybackCentsPerKWh != nil && point.KWhExport > 0 {
		cents -= point.KWhExport * *p.SolarBuybackCentsPerKWh
	}
	return cents
}
