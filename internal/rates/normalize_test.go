package rates

import (
	"errors"
	"testing"
)

func f64(v float64) *float64 { return &v }

func TestNormalizeTiersContiguous(t *testing.T) {
	tiers := []UsageTier{
		{MinKWh: 500, MaxKWh: f64(1000), RateCents: 11.5},
		{MinKWh: 0, MaxKWh: f64(500), RateCents: 14.2},
		{MinKWh: 1000, MaxKWh: f64(99999), RateCents: 9.8},
	}

	norm, err := NormalizeTiers(tiers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(norm) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(norm))
	}
	if norm[0].MinKWh != 0 || norm[0].RateCents != 14.2 {
		t.Errorf("tiers not sorted: first = %+v", norm[0])
	}
	if norm[2].MaxKWh != nil {
		t.Errorf("final tier must be open-ended, got max %v", *norm[2].MaxKWh)
	}
	// The input must be untouched.
	if tiers[2].MaxKWh == nil {
		t.Errorf("input tiers were mutated")
	}
}

func TestNormalizeTiersRejectsGap(t *testing.T) {
	tiers := []UsageTier{
		{MinKWh: 0, MaxKWh: f64(500), RateCents: 14.2},
		{MinKWh: 600, MaxKWh: nil, RateCents: 9.8},
	}
	if _, err := NormalizeTiers(tiers); !errors.Is(err, ErrBadTiers) {
		t.Fatalf("expected ErrBadTiers for a gap, got %v", err)
	}
}

func TestNormalizeTiersRejectsOverlap(t *testing.T) {
	tiers := []UsageTier{
		{MinKWh: 0, MaxKWh: f64(800), RateCents: 14.2},
		{MinKWh: 500, MaxKWh: nil, RateCents: 9.8},
	}
	if _, err := NormalizeTiers(tiers); !errors.Is(err, ErrBadTiers) {
		t.Fatalf("expected ErrBadTiers for an overlap, got %v", err)
	}
}

func TestNormalizeTiersRejectsNonZeroStart(t *testing.T) {
	tiers := []UsageTier{{MinKWh: 100, MaxKWh: nil, RateCents: 10}}
	if _, err := NormalizeTiers(tiers); !errors.Is(err, ErrBadTiers) {
		t.Fatalf("expected ErrBadTiers when tiers do not start at zero, got %v", err)
	}
}

func TestValidateRejectsShapeConflict(t *testing.T) {
	rs := &RateStructure{
		Type:            RateTypeFixed,
		EnergyRateCents: f64(13),
		UsageTiers:      []UsageTier{{MinKWh: 0, RateCents: 12}},
	}
	if err := rs.Validate(); !errors.Is(err, ErrShapeConflict) {
		t.Fatalf("expected ErrShapeConflict, got %v", err)
	}
}

func TestValidateFixedPlan(t *testing.T) {
	base := int64(995)
	rs := &RateStructure{
		Type:                RateTypeFixed,
		EnergyRateCents:     f64(13),
		BaseMonthlyFeeCents: &base,
		BillCredits:         []BillCredit{{Label: "usage credit", ThresholdKWh: 1000, AmountCents: 10000}},
	}
	if err := rs.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCloneIsDeep(t *testing.T) {
	rs := &RateStructure{
		Type:       RateTypeTiered,
		UsageTiers: []UsageTier{{MinKWh: 0, MaxKWh: f64(500), RateCents: 12}, {MinKWh: 500, RateCents: 10}},
		Delivery:   &TDSPCharges{MonthlyCents: 423, CentsPerKWh: 4.8862},
	}
	cp := rs.Clone()
	*cp.UsageTiers[0].MaxKWh = 999
	cp.Delivery.CentsPerKWh = 0

	if *rs.UsageTiers[0].MaxKWh != 500 {
		t.Errorf("tier bound shared between clone and original")
	}
	if rs.Delivery.CentsPerKWh != 4.8862 {
		t.Errorf("delivery charges shared between clone and original")
	}
}
