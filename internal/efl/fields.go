package efl

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// MinUsageFee is the "fee below threshold" clause many fixed-rate plans
// carry: a flat dollar fee added when a cycle's usage lands strictly under
// the stated kWh level.
type MinUsageFee struct {
	FeeDollars   float64 `json:"fee_dollars"`
	ThresholdKWh float64 `json:"threshold_kwh"`
}

// DeliveryClause is the disclosed utility delivery pass-through: a monthly
// charge, a volumetric charge, or both.
type DeliveryClause struct {
	MonthlyCents int64   `json:"monthly_cents"`
	CentsPerKWh  float64 `json:"cents_per_kwh"`
}

// Clause patterns are compiled once here and shared read-only; every
// extractor below is safe for concurrent use.
var (
	// === IDENTITY FIELDS ===
	// "PUCT Certificate #10027", "PUCT License No. 10052"
	certRe = regexp.MustCompile(`(?i)PUCT\s+(?:Certificate|License)\s*(?:No\.?|Number|#)?\s*#?\s*([0-9]{4,6})`)
	// "Version: GX-SD12-ONC-240601", "EFL Version Code: v24.06"
	versionRe = regexp.MustCompile(`(?i)(?:EFL\s+)?Version(?:\s*(?:Code|No\.?|Number))?\s*[:#]\s*([A-Za-z0-9][A-Za-z0-9_./-]*)`)

	// === BASE CHARGE PATTERNS ===
	// "Base Charge: $9.95 per billing cycle"
	baseChargeRe = regexp.MustCompile(`(?i)Base\s+Charge[:\s]*\$([0-9]+(?:\.[0-9]+)?)`)
	// "Monthly Fee: $4.95" / "Monthly Base Charge $9.95"
	monthlyFeeRe = regexp.MustCompile(`(?i)Monthly\s+(?:Base\s+)?(?:Fee|Charge)[:\s]*\$([0-9]+(?:\.[0-9]+)?)`)

	// === ENERGY CHARGE PATTERNS ===
	// "Energy Charge: 9.5¢ per kWh" / "Energy Charge: 12.4 cents per kWh"
	energyCentsRe = regexp.MustCompile(`(?i)Energy\s+Charge[:\s]*([0-9]+(?:\.[0-9]+)?)\s*(?:¢|cents?)\s*(?:per\s*kWh)?`)
	// "Energy Charge: $0.095 per kWh"
	energyUSDRe = regexp.MustCompile(`(?i)Energy\s+Charge[:\s]*\$([0-9]+(?:\.[0-9]+)?)\s*per\s*kWh`)

	// === MINIMUM USAGE FEE CLAUSE ===
	// Anchor first, then pull the numbers out of the surrounding sentence so
	// unrelated dollar amounts elsewhere in the document cannot bleed in.
	minUsageAnchorRe    = regexp.MustCompile(`(?i)minimum\s+usage\s+(?:fee|charge)`)
	minUsageFeeRe       = regexp.MustCompile(`\$([0-9]+(?:\.[0-9]+)?)`)
	minUsageThresholdRe = regexp.MustCompile(`(?i)(?:below|under|less\s+than|does\s+not\s+(?:reach|exceed))\s+([0-9][0-9,]*(?:\.[0-9]+)?)\s*kWh`)

	// === DELIVERY CLAUSE PATTERNS ===
	// "TDU Delivery Charges: $4.23 per month and 4.8862¢ per kWh"
	deliveryAnchorRe  = regexp.MustCompile(`(?i)(?:TDU|TDSP|Utility)?\s*Delivery\s+Charges?`)
	deliveryMonthlyRe = regexp.MustCompile(`\$([0-9]+(?:\.[0-9]+)?)\s*(?i:per\s+month|monthly|/\s*month)`)
	deliveryPerKWhRe  = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*(?:¢|cents?)\s*(?i:per\s*kWh)`)
)

// ExtractCertificateNumber pulls the REP's commission certificate number.
func ExtractCertificateNumber(text string) (string, string, bool) {
	m := certRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", "", false
	}
	return m[1], "certificate: anchored commission pattern", true
}

// ExtractVersionCode pulls the label's internal version code, used to tell
// revisions of the same product apart.
func ExtractVersionCode(text string) (string, string, bool) {
	m := versionRe.FindStringSubmatch(text)
	if len(m) < 2 {
		return "", "", false
	}
	code := strings.TrimRight(m[1], ".,;")
	if code == "" {
		return "", "", false
	}
	return code, "version: labelled code pattern", true
}

// ExtractBaseChargeCents pulls the REP's flat monthly base charge.
func ExtractBaseChargeCents(text string) (int64, string, bool) {
	if d := firstFloat(baseChargeRe, text); d > 0 {
		return dollarsToCents(d), "base charge: base-charge clause", true
	}
	if d := firstFloat(monthlyFeeRe, text); d > 0 {
		return dollarsToCents(d), "base charge: monthly-fee clause", true
	}
	return 0, "", false
}

// ExtractEnergyRateCents pulls the REP energy charge in cents per kWh,
// accepting both the cent-symbol and dollars-per-kWh spellings.
func ExtractEnergyRateCents(text string) (float64, string, bool) {
	if cents := firstFloat(energyCentsRe, text); cents > 0 {
		return cents, "energy charge: cents form", true
	}
	if usd := firstFloat(energyUSDRe, text); usd > 0 {
		return usd * 100, "energy charge: dollars form", true
	}
	return 0, "", false
}

// ExtractMinUsageFee pulls the minimum-usage-fee clause. Both the dollar
// fee and the kWh threshold must appear near the anchor; a fee with no
// stated threshold is not a rule this engine can apply.
func ExtractMinUsageFee(text string) (MinUsageFee, string, bool) {
	loc := minUsageAnchorRe.FindStringIndex(text)
	if loc == nil {
		return MinUsageFee{}, "", false
	}
	window := clauseWindow(text, loc[0], loc[1])

	fee := firstFloat(minUsageFeeRe, window)
	threshold := firstFloat(minUsageThresholdRe, window)
	if fee <= 0 || threshold <= 0 {
		return MinUsageFee{}, "", false
	}
	return MinUsageFee{FeeDollars: fee, ThresholdKWh: threshold},
		"minimum usage fee: fee and threshold in one clause", true
}

// ExtractDeliveryClause pulls the disclosed utility delivery charges.
// Present when at least one of the monthly or volumetric components is
// stated near the delivery anchor.
func ExtractDeliveryClause(text string) (DeliveryClause, string, bool) {
	loc := deliveryAnchorRe.FindStringIndex(text)
	if loc == nil {
		return DeliveryClause{}, "", false
	}
	window := clauseWindow(text, loc[0], loc[1])

	clause := DeliveryClause{
		CentsPerKWh: firstFloat(deliveryPerKWhRe, window),
	}
	if d := firstFloat(deliveryMonthlyRe, window); d > 0 {
		clause.MonthlyCents = dollarsToCents(d)
	}
	if clause.MonthlyCents == 0 && clause.CentsPerKWh == 0 {
		return DeliveryClause{}, "", false
	}
	return clause, "delivery: monthly and per-kWh components", true
}

// clauseWindow returns the sentence-ish region around an anchor match:
// back to the previous sentence break, forward to the next one, capped so a
// missing period cannot drag in half the document.
func clauseWindow(text string, start, end int) string {
	const reach = 220

	lo := start
	for lo > 0 && start-lo < reach {
		c := text[lo-1]
		if c == '.' || c == '\n' {
			break
		}
		lo--
	}
	hi := end
	for hi < len(text) && hi-end < reach {
		c := text[hi]
		if c == '.' || c == '\n' {
			// Decimal points inside numbers do not end a sentence.
			if c == '.' && hi+1 < len(text) && text[hi+1] >= '0' && text[hi+1] <= '9' {
				hi++
				continue
			}
			break
		}
		hi++
	}
	return text[lo:hi]
}

func firstFloat(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	return v
}

func dollarsToCents(d float64) int64 {
	return int64(math.Round(d * 100))
}
