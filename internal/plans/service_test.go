package plans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/watthive/eflengine/internal/billing"
	"github.com/watthive/eflengine/internal/cache"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/rates"
	"github.com/watthive/eflengine/internal/storage"
	"github.com/watthive/eflengine/internal/validate"
)

func f64(v float64) *float64 { return &v }

type fakeNotifier struct {
	calls []storage.QuarantineRecord
}

func (f *fakeNotifier) NotifyQuarantine(_ context.Context, rec storage.QuarantineRecord) error {
	f.calls = append(f.calls, rec)
	return nil
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage, *fakeNotifier) {
	t.Helper()
	store := storage.NewMemory()
	notifier := &fakeNotifier{}
	svc := NewService(Config{}, Deps{
		Store:    store,
		Cache:    cache.NewMemoryCache(),
		Notifier: notifier,
	})
	return svc, store, notifier
}

// flatPlanDoc builds a flat-rate plan document whose disclosure text
// carries the given average-price row.
func flatPlanDoc(planID string, rateCents float64, prices string) efl.PlanDocument {
	return efl.PlanDocument{
		PlanID:      planID,
		RepName:     "Gexa Energy",
		ProductName: "Saver 12",
		RateStructure: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(rateCents),
		},
		EFLText: "Electricity Facts Label\n" +
			"Average Monthly Use:        500 kWh     1,000 kWh    2,000 kWh\n" +
			"Average Price per kWh:      " + prices + "\n" +
			fmt.Sprintf("Energy Charge: %.1f¢ per kWh\n", rateCents),
	}
}

func docJSON(t *testing.T, doc efl.PlanDocument) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return raw
}

func TestIngestComputablePlan(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	res, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢")))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Classification.Status != classify.StatusComputable {
		t.Fatalf("expected COMPUTABLE, got %s (%s)", res.Classification.Status, res.Classification.ReasonCode)
	}
	if res.Validation.Status != validate.StatusPass {
		t.Errorf("expected validation PASS, got %s (%s)", res.Validation.Status, res.Validation.QueueReason)
	}
	if res.Quarantined {
		t.Errorf("clean plan should not be quarantined")
	}
	if len(notifier.calls) != 0 {
		t.Errorf("expected no notifications, got %d", len(notifier.calls))
	}

	rec, err := store.GetPlan(ctx, "p1")
	if err != nil || rec == nil {
		t.Fatalf("stored plan: rec=%v err=%v", rec, err)
	}
	if rec.Status != string(classify.StatusComputable) || rec.RepName != "Gexa Energy" {
		t.Errorf("stored record wrong: status=%s rep=%s", rec.Status, rec.RepName)
	}

	history, err := svc.ValidationHistory(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Status != string(validate.StatusPass) {
		t.Errorf("expected one PASS validation record, got %+v", history)
	}
}

func TestIngestMismatchQuarantinesAndRecovers(t *testing.T) {
	svc, store, notifier := newTestService(t)
	ctx := context.Background()

	bad := docJSON(t, flatPlanDoc("p1", 12, "12.0¢       14.0¢        12.0¢"))
	res, err := svc.IngestDocument(ctx, bad)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !res.Quarantined {
		t.Fatalf("mismatched disclosure should quarantine, got %+v", res.Validation)
	}
	if len(notifier.calls) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.calls))
	}
	if notifier.calls[0].ReasonCode != string(classify.ReasonSuspectAvgPriceMismatch) {
		t.Errorf("notification code = %s", notifier.calls[0].ReasonCode)
	}

	// Same document again: the entry refreshes without re-notifying.
	if _, err := svc.IngestDocument(ctx, bad); err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	q, err := store.GetQuarantine(ctx, "p1")
	if err != nil || q == nil {
		t.Fatalf("quarantine record: q=%v err=%v", q, err)
	}
	if q.TimesSeen != 2 {
		t.Errorf("expected times_seen 2, got %d", q.TimesSeen)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("refresh should not re-notify, got %d calls", len(notifier.calls))
	}

	// A corrected template resolves the entry.
	good, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢")))
	if err != nil {
		t.Fatalf("corrected ingest: %v", err)
	}
	if good.Quarantined {
		t.Errorf("corrected plan still quarantined")
	}
	q, err = store.GetQuarantine(ctx, "p1")
	if err != nil || q == nil {
		t.Fatalf("quarantine record after fix: q=%v err=%v", q, err)
	}
	if !q.Resolved {
		t.Errorf("expected quarantine resolved")
	}
	open, err := store.CountOpenQuarantine(ctx)
	if err != nil || open != 0 {
		t.Errorf("open quarantine count = %d, err = %v", open, err)
	}
}

func TestIngestTOULanguageOnFixedPlan(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	doc := flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢")
	doc.EFLText += "Enjoy free nights from 8pm to 6am every day.\n"
	res, err := svc.IngestDocument(ctx, docJSON(t, doc))
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.Classification.Status != classify.StatusNotComputable {
		t.Fatalf("expected NOT_COMPUTABLE, got %s", res.Classification.Status)
	}
	if res.Classification.ReasonCode != classify.ReasonSuspectTOULanguage {
		t.Errorf("reason = %s", res.Classification.ReasonCode)
	}
	if !res.Quarantined {
		t.Errorf("suspect TOU language should quarantine")
	}
	rec, _ := store.GetPlan(ctx, "p1")
	if rec == nil || rec.Status != string(classify.StatusNotComputable) {
		t.Errorf("stored status = %+v", rec)
	}
}

func TestIngestRejectsBadEnvelope(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.IngestDocument(context.Background(), []byte(`{"rep_name": "x"}`))
	if !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument for missing plan_id, got %v", err)
	}
}

func TestRevalidate(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	res, err := svc.Revalidate(ctx, "p1")
	if err != nil {
		t.Fatalf("revalidate: %v", err)
	}
	if res.Validation.Status != validate.StatusPass {
		t.Errorf("revalidation status = %s", res.Validation.Status)
	}
	history, err := svc.ValidationHistory(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("expected two validation records, got %d", len(history))
	}

	if _, err := svc.Revalidate(ctx, "missing"); !errors.Is(err, ErrPlanNotFound) {
		t.Errorf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestIngestEFLBytes(t *testing.T) {
	store := storage.NewMemory()
	svc := NewService(Config{}, Deps{
		Store: store,
		Extractor: &efltext.Static{Text: "Electricity Facts Label\n" +
			"Energy Charge: 9.5¢ per kWh\n" +
			"PUCT Certificate #10098\n"},
	})
	ctx := context.Background()

	res, err := svc.IngestEFLBytes(ctx, []byte("%PDF-fake"), "Night Saver")
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if res.PlanID == "" {
		t.Fatalf("expected generated plan id")
	}
	if res.Classification.ReasonCode != classify.ReasonMissingTemplate {
		t.Errorf("expected MISSING_TEMPLATE, got %s", res.Classification.ReasonCode)
	}
	if res.Extraction.EnergyRateCents == nil || *res.Extraction.EnergyRateCents != 9.5 {
		t.Errorf("extraction missed the energy rate: %+v", res.Extraction)
	}
	if res.Extraction.CertificateNumber != "10098" {
		t.Errorf("certificate = %q", res.Extraction.CertificateNumber)
	}

	// The stored envelope must keep round-tripping through the pipeline.
	if _, err := svc.Revalidate(ctx, res.PlanID); err != nil {
		t.Fatalf("revalidate stored envelope: %v", err)
	}
	rec, _ := store.GetPlan(ctx, res.PlanID)
	if rec == nil || rec.ProductName != "Night Saver" {
		t.Errorf("stored record = %+v", rec)
	}

	// Same disclosure again lands on the same plan.
	again, err := svc.IngestEFLBytes(ctx, []byte("%PDF-fake"), "Night Saver")
	if err != nil {
		t.Fatalf("re-ingest: %v", err)
	}
	if again.PlanID != res.PlanID {
		t.Errorf("re-ingest minted a new plan: %s vs %s", again.PlanID, res.PlanID)
	}
	all, err := svc.ListPlans(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected one stored plan, got %d", len(all))
	}
}

func TestCostForPlanServesFromCache(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	first, err := svc.CostForPlan(ctx, "p1", CostRequest{UsageKWh: 1000})
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if first.TotalCents != 12000 {
		t.Fatalf("total = %d", first.TotalCents)
	}

	// Replace the cached entry with a different but internally consistent
	// payload; the next call must come back with it.
	planted := billing.PlanCostResult{
		UsageKWh:   1000,
		TotalCents: 999,
		Components: []billing.CostComponent{{Label: billing.BucketEnergy, AmountCents: 999}},
	}
	payload, _ := json.Marshal(planted)
	if err := svc.cache.Set(ctx, costKey("p1", 1000), payload, 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}
	second, err := svc.CostForPlan(ctx, "p1", CostRequest{UsageKWh: 1000})
	if err != nil {
		t.Fatalf("cost from cache: %v", err)
	}
	if second.TotalCents != 999 {
		t.Errorf("expected cached total 999, got %d", second.TotalCents)
	}
}

func TestCostForPlanCorruptCacheQuarantines(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢"))); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	// A breakdown whose components no longer sum to its total.
	corrupt := billing.PlanCostResult{
		UsageKWh:   1000,
		TotalCents: 5000,
		Components: []billing.CostComponent{{Label: billing.BucketEnergy, AmountCents: 1200}},
	}
	payload, _ := json.Marshal(corrupt)
	if err := svc.cache.Set(ctx, costKey("p1", 1000), payload, 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	res, err := svc.CostForPlan(ctx, "p1", CostRequest{UsageKWh: 1000})
	if err != nil {
		t.Fatalf("cost: %v", err)
	}
	if res.TotalCents != 12000 {
		t.Errorf("expected fresh computation, got total %d", res.TotalCents)
	}
	q, err := store.GetQuarantine(ctx, "p1")
	if err != nil || q == nil {
		t.Fatalf("expected quarantine entry: q=%v err=%v", q, err)
	}
	if q.ReasonCode != string(classify.ReasonUsageBucketSumMismatch) {
		t.Errorf("quarantine code = %s", q.ReasonCode)
	}
}

func TestCostForPlanNotComputable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	doc := flatPlanDoc("p1", 12, "12.0¢       12.0¢        12.0¢")
	doc.EFLText += "Free nights between the hours of 9pm and 6am.\n"
	if _, err := svc.IngestDocument(ctx, docJSON(t, doc)); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	_, err := svc.CostForPlan(ctx, "p1", CostRequest{UsageKWh: 1000})
	var nce *NotComputableError
	if !errors.As(err, &nce) {
		t.Fatalf("expected NotComputableError, got %v", err)
	}
	if nce.ReasonCode != string(classify.ReasonSuspectTOULanguage) {
		t.Errorf("reason = %s", nce.ReasonCode)
	}
}

func TestCostForPlanNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	if _, err := svc.CostForPlan(context.Background(), "ghost", CostRequest{UsageKWh: 1000}); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestComparePlans(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("expensive", 12, "12.0¢       12.0¢        12.0¢"))); err != nil {
		t.Fatalf("ingest expensive: %v", err)
	}
	if _, err := svc.IngestDocument(ctx, docJSON(t, flatPlanDoc("cheap", 10, "10.0¢       10.0¢        10.0¢"))); err != nil {
		t.Fatalf("ingest cheap: %v", err)
	}

	out, err := svc.ComparePlans(ctx, CompareRequest{
		PlanIDs:  []string{"expensive", "cheap", "ghost"},
		UsageKWh: 1000,
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(out.Ranked) != 2 {
		t.Fatalf("expected 2 ranked plans, got %d", len(out.Ranked))
	}
	if out.Ranked[0].PlanID != "cheap" || out.Ranked[0].Rank != 1 {
		t.Errorf("rank 1 = %s", out.Ranked[0].PlanID)
	}
	if out.Ranked[1].PlanID != "expensive" {
		t.Errorf("rank 2 = %s", out.Ranked[1].PlanID)
	}
	if len(out.Skipped) != 1 || out.Skipped[0] != "ghost" {
		t.Errorf("skipped = %v", out.Skipped)
	}
}
