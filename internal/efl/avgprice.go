package efl

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/watthive/eflengine/internal/rates"
)

var (
	avgPriceAnchorRe = regexp.MustCompile(`(?i)Average\s+Price\s+per\s+kWh`)
	avgUseAnchorRe   = regexp.MustCompile(`(?i)Average\s+Monthly\s+Use`)
	centValueRe      = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(?:¢|cents?)`)
	usdValueRe       = regexp.MustCompile(`\$([0-9]+\.[0-9]+)`)
	kwhLevelRe       = regexp.MustCompile(`([0-9][0-9,]*)\s*kWh`)
)

// ExtractAvgPriceTable pulls the disclosure-mandated average prices at the
// 500/1000/2000 kWh levels. The three values must be readable from the
// average-price row, and when a usage header row is present its levels must
// be exactly the mandated three; anything else reports the table missing
// rather than guessing at positions.
func ExtractAvgPriceTable(text string) ([]rates.AvgPricePoint, string, bool) {
	lines := strings.Split(text, "\n")

	row := -1
	for i, line := range lines {
		if avgPriceAnchorRe.MatchString(line) {
			row = i
			break
		}
	}
	if row < 0 {
		return nil, "", false
	}

	// Layout extraction can wrap the row; read the anchor line plus the
	// next two.
	window := strings.Join(lines[row:min(row+3, len(lines))], "\n")

	if !usageHeaderMatches(lines, row) {
		return nil, "", false
	}

	values, note := rowPrices(window)
	if values == nil {
		return nil, "", false
	}

	points := make([]rates.AvgPricePoint, len(rates.DisclosureUsageLevels))
	for i, level := range rates.DisclosureUsageLevels {
		points[i] = rates.AvgPricePoint{UsageKWh: level, CentsPerKWh: values[i]}
	}
	return points, note, true
}

// rowPrices reads the first three prices off the average-price row,
// preferring the cent-marked form over dollars.
func rowPrices(window string) ([]float64, string) {
	if vals := matchFloats(centValueRe, window); len(vals) >= 3 {
		return vals[:3], "average price: cent-marked row"
	}
	if vals := matchFloats(usdValueRe, window); len(vals) >= 3 {
		for i := range vals {
			vals[i] *= 100
		}
		return vals[:3], "average price: dollars row"
	}
	return nil, ""
}

// usageHeaderMatches checks the usage header row near the price row, when
// one exists, against the mandated disclosure levels.
func usageHeaderMatches(lines []string, priceRow int) bool {
	for i := max(priceRow-2, 0); i < min(priceRow+3, len(lines)); i++ {
		if i == priceRow || !avgUseAnchorRe.MatchString(lines[i]) {
			continue
		}
		levels := matchFloats(kwhLevelRe, lines[i])
		if len(levels) < 3 {
			return false
		}
		for j, want := range rates.DisclosureUsageLevels {
			if int(levels[j]) != want {
				return false
			}
		}
		return true
	}
	// No header row found; trust the price row on its own.
	return true
}

func matchFloats(re *regexp.Regexp, s string) []float64 {
	var out []float64
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}
