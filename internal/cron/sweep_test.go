package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/watthive/eflengine/internal/cache"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/rates"
	"github.com/watthive/eflengine/internal/storage"
)

func f64(v float64) *float64 { return &v }

func planDoc(t *testing.T, planID string, rateCents float64, prices string) []byte {
	t.Helper()
	doc := efl.PlanDocument{
		PlanID:      planID,
		RepName:     "TXU Energy",
		ProductName: "Clear Deal 12",
		RateStructure: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(rateCents),
		},
		EFLText: "Electricity Facts Label\n" +
			"Average Monthly Use:        500 kWh     1,000 kWh    2,000 kWh\n" +
			"Average Price per kWh:      " + prices + "\n" +
			fmt.Sprintf("Energy Charge: %.1f¢ per kWh\n", rateCents),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return raw
}

func TestSweepRevalidatesAndReports(t *testing.T) {
	store := storage.NewMemory()
	svc := plans.NewService(plans.Config{}, plans.Deps{Store: store, Cache: cache.NewMemoryCache()})
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, planDoc(t, "clean", 12, "12.0¢       12.0¢        12.0¢")); err != nil {
		t.Fatalf("ingest clean: %v", err)
	}
	if _, err := svc.IngestDocument(ctx, planDoc(t, "shady", 12, "12.0¢       15.0¢        12.0¢")); err != nil {
		t.Fatalf("ingest shady: %v", err)
	}

	res, err := Sweep(ctx, svc, store, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Total != 2 || res.Errors != 0 {
		t.Errorf("total=%d errors=%d", res.Total, res.Errors)
	}
	if len(res.Quarantined) != 1 || res.Quarantined[0].PlanID != "shady" {
		t.Fatalf("quarantined = %+v", res.Quarantined)
	}
	if res.Quarantined[0].ReasonCode != string(classify.ReasonSuspectAvgPriceMismatch) {
		t.Errorf("reason = %s", res.Quarantined[0].ReasonCode)
	}

	history, err := store.ListValidations(ctx, "clean", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected ingest plus sweep validation, got %d records", len(history))
	}
}

func TestSweepEmptyStore(t *testing.T) {
	store := storage.NewMemory()
	svc := plans.NewService(plans.Config{}, plans.Deps{Store: store})

	res, err := Sweep(context.Background(), svc, store, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Total != 0 || len(res.Quarantined) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestNextRunAfter(t *testing.T) {
	from := time.Date(2025, 6, 1, 12, 2, 30, 0, time.UTC)

	if got := nextRunAfter("60", from); !got.Equal(from.Add(time.Minute)) {
		t.Errorf("seconds setting: got %v", got)
	}

	got := nextRunAfter("*/5 * * * *", from)
	if !got.Equal(time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)) {
		t.Errorf("cron setting: got %v", got)
	}

	if got := nextRunAfter("not a schedule", from); !got.Equal(from.Add(time.Hour)) {
		t.Errorf("fallback: got %v", got)
	}
}
