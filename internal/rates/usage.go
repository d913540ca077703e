package rates

import (
	"sort"
	"time"
)

// TotalImportKWh sums imported energy across a usage series.
func TotalImportKWh(points []UsageIntervalPoint) float64 {
	var total float64
	for _, p := range points {
		total += p.KWhImport
	}
	return total
}

// MonthKey formats a timestamp as the billing-month key "YYYY-MM" in loc.
func MonthKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format("2006-01")
}

// MonthlyImportKWh buckets imported energy by billing month. Keys follow
// MonthKey ordering, so a sorted key list walks months chronologically.
func MonthlyImportKWh(points []UsageIntervalPoint, loc *time.Location) map[string]float64 {
	out := make(map[string]float64)
	for _, p := range points {
		out[MonthKey(p.Timestamp, loc)] += p.KWhImport
	}
	return out
}

// SortedMonthKeys returns the months of a monthly bucket map in order.
func SortedMonthKeys(monthly map[string]float64) []string {
	keys := make([]string, 0, len(monthly))
	for k := range monthly {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
