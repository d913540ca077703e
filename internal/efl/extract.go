package efl

import "github.com/watthive/eflengine/internal/rates"

// Extraction is one full pass of the clause matchers over a disclosure
// text. Absent clauses stay nil or zero; Notes records how each matched
// clause was recognized.
type Extraction struct {
	CertificateNumber string                `json:"certificate_number,omitempty"`
	VersionCode       string                `json:"version_code,omitempty"`
	BaseChargeCents   *int64                `json:"base_charge_cents,omitempty"`
	EnergyRateCents   *float64              `json:"energy_rate_cents,omitempty"`
	MinUsageFee       *MinUsageFee          `json:"min_usage_fee,omitempty"`
	Delivery          *DeliveryClause       `json:"delivery,omitempty"`
	AvgPrices         []rates.AvgPricePoint `json:"avg_prices,omitempty"`
	MaskedTDSP        bool                  `json:"masked_tdsp"`
	Notes             []string              `json:"notes,omitempty"`
}

// Extract normalizes the text and runs every clause matcher over it. Each
// matcher is independent; one clause failing to match never blocks the
// others.
func Extract(text string) Extraction {
	text = NormalizeText(text)

	var ex Extraction
	if v, note, ok := ExtractCertificateNumber(text); ok {
		ex.CertificateNumber = v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractVersionCode(text); ok {
		ex.VersionCode = v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractBaseChargeCents(text); ok {
		ex.BaseChargeCents = &v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractEnergyRateCents(text); ok {
		ex.EnergyRateCents = &v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractMinUsageFee(text); ok {
		ex.MinUsageFee = &v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractDeliveryClause(text); ok {
		ex.Delivery = &v
		ex.Notes = append(ex.Notes, note)
	}
	if v, note, ok := ExtractAvgPriceTable(text); ok {
		ex.AvgPrices = v
		ex.Notes = append(ex.Notes, note)
	}
	ex.MaskedTDSP = DetectMaskedTDSP(text)
	return ex
}
