package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/watthive/eflengine/internal/auth"
	"github.com/watthive/eflengine/internal/billing"
	"github.com/watthive/eflengine/internal/cache"
	"github.com/watthive/eflengine/internal/classify"
	"github.com/watthive/eflengine/internal/efl"
	"github.com/watthive/eflengine/internal/efltext"
	"github.com/watthive/eflengine/internal/plans"
	"github.com/watthive/eflengine/internal/rates"
	"github.com/watthive/eflengine/internal/storage"
)

func f64(v float64) *float64 { return &v }

func newTestServer(t *testing.T, authSvc *auth.Service) (*httptest.Server, *plans.Service, storage.Storage) {
	t.Helper()
	store := storage.NewMemory()
	svc := plans.NewService(plans.Config{}, plans.Deps{
		Store:     store,
		Cache:     cache.NewMemoryCache(),
		Extractor: &efltext.Static{Text: "Energy Charge: 9.5¢ per kWh\nPUCT Certificate #10098"},
	})
	mux := NewMux(Deps{
		Plans:     svc,
		Store:     store,
		Auth:      authSvc,
		Extractor: &efltext.Static{Text: "Energy Charge: 9.5¢ per kWh"},
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc, store
}

// flatDoc is a flat-rate plan document whose disclosure text agrees with
// its rate at every anchor usage level.
func flatDoc(t *testing.T, planID string, rateCents float64) []byte {
	t.Helper()
	row := fmt.Sprintf("%.1f¢       %.1f¢        %.1f¢", rateCents, rateCents, rateCents)
	doc := efl.PlanDocument{
		PlanID:      planID,
		RepName:     "Gexa Energy",
		ProductName: "Saver 12",
		RateStructure: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(rateCents),
		},
		EFLText: "Electricity Facts Label\n" +
			"Average Monthly Use:        500 kWh     1,000 kWh    2,000 kWh\n" +
			"Average Price per kWh:      " + row + "\n" +
			fmt.Sprintf("Energy Charge: %.1f¢ per kWh\n", rateCents),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return raw
}

func postJSON(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	for _, path := range []string{"/healthz", "/livez", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestPlanLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp := postJSON(t, srv.URL+"/api/v2/plans", flatDoc(t, "p1", 12))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}
	var ingest plans.IngestResult
	decodeBody(t, resp, &ingest)
	if ingest.Classification.Status != classify.StatusComputable {
		t.Fatalf("classification = %s (%s)", ingest.Classification.Status, ingest.Classification.ReasonCode)
	}

	resp, err := http.Get(srv.URL + "/api/v2/plans")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var list []PlanSummary
	decodeBody(t, resp, &list)
	if len(list) != 1 || list[0].ID != "p1" || list[0].Status != "COMPUTABLE" {
		t.Fatalf("list = %+v", list)
	}

	resp, err = http.Get(srv.URL + "/api/v2/plans/p1")
	if err != nil {
		t.Fatalf("get plan: %v", err)
	}
	var summary PlanSummary
	decodeBody(t, resp, &summary)
	if summary.RepName != "Gexa Energy" || summary.ProductName != "Saver 12" {
		t.Errorf("summary = %+v", summary)
	}

	resp = postJSON(t, srv.URL+"/api/v2/plans/p1/cost", []byte(`{"usage_kwh": 1000}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cost status = %d", resp.StatusCode)
	}
	var cost billing.PlanCostResult
	decodeBody(t, resp, &cost)
	if cost.TotalCents != 12000 {
		t.Errorf("total = %d cents, want 12000", cost.TotalCents)
	}

	resp, err = http.Get(srv.URL + "/api/v2/plans/p1/validations?limit=5")
	if err != nil {
		t.Fatalf("validations: %v", err)
	}
	var history []storage.ValidationRecord
	decodeBody(t, resp, &history)
	if len(history) != 1 {
		t.Errorf("history = %+v", history)
	}

	resp, err = http.Get(srv.URL + "/api/v2/plans/p1/document")
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	var doc efl.PlanDocument
	decodeBody(t, resp, &doc)
	if doc.PlanID != "p1" || doc.RepName != "Gexa Energy" {
		t.Errorf("document = %+v", doc)
	}
}

func TestCostNotComputableStatus(t *testing.T) {
	srv, svc, _ := newTestServer(t, nil)

	doc := efl.PlanDocument{
		PlanID:      "tou1",
		RepName:     "Gexa Energy",
		ProductName: "Free Nights",
		RateStructure: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(12),
		},
		EFLText: "Electricity Facts Label\n" +
			"Enjoy free nights from 8pm to 6am every day.\n" +
			"Energy Charge: 12.0¢ per kWh\n",
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	if _, err := svc.IngestDocument(context.Background(), raw); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/v2/plans/tou1/cost", []byte(`{"usage_kwh": 1000}`))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("cost status = %d, want 422", resp.StatusCode)
	}
	var body map[string]string
	decodeBody(t, resp, &body)
	if body["reason_code"] != string(classify.ReasonSuspectTOULanguage) {
		t.Errorf("reason_code = %q", body["reason_code"])
	}
}

func TestIngestBadDocument(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	resp := postJSON(t, srv.URL+"/api/v2/plans", []byte(`{"rep_name": "x"}`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestPlanNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/v2/plans/nope")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEFLTextIngest(t *testing.T) {
	srv, _, store := newTestServer(t, nil)

	text := "Electricity Facts Label\nEnergy Charge: 9.5¢ per kWh\nPUCT Certificate #10098\n"
	resp, err := http.Post(srv.URL+"/api/v2/efl?name=Night+Saver", "text/plain", strings.NewReader(text))
	if err != nil {
		t.Fatalf("POST efl: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var res plans.EFLIngestResult
	decodeBody(t, resp, &res)
	if res.PlanID == "" {
		t.Fatalf("no plan id in %+v", res)
	}
	if res.Classification.Status != classify.StatusNotComputable {
		t.Errorf("classification = %s, want NOT_COMPUTABLE without a template", res.Classification.Status)
	}

	rec, err := store.GetPlan(context.Background(), res.PlanID)
	if err != nil || rec == nil {
		t.Fatalf("stored plan: %v %v", rec, err)
	}
	if rec.ProductName != "Night Saver" {
		t.Errorf("product = %q", rec.ProductName)
	}
}

func TestEFLFieldsExtraction(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	text := "Energy Charge: 9.5¢ per kWh\nEnjoy free nights from 8pm to 6am.\n"
	resp, err := http.Post(srv.URL+"/api/v2/efl/fields", "text/plain", strings.NewReader(text))
	if err != nil {
		t.Fatalf("POST fields: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var fields EFLFieldsResponse
	decodeBody(t, resp, &fields)
	if fields.Extraction.EnergyRateCents == nil || *fields.Extraction.EnergyRateCents != 9.5 {
		t.Errorf("energy rate = %v", fields.Extraction.EnergyRateCents)
	}
	if fields.TOULanguage == "" {
		t.Errorf("expected tou language to be flagged")
	}
}

func TestCompareOverHTTP(t *testing.T) {
	srv, svc, _ := newTestServer(t, nil)
	ctx := context.Background()

	if _, err := svc.IngestDocument(ctx, flatDoc(t, "cheap", 10)); err != nil {
		t.Fatalf("ingest cheap: %v", err)
	}
	if _, err := svc.IngestDocument(ctx, flatDoc(t, "pricey", 14)); err != nil {
		t.Fatalf("ingest pricey: %v", err)
	}

	resp := postJSON(t, srv.URL+"/api/v2/compare",
		[]byte(`{"plan_ids": ["pricey", "cheap", "ghost"], "usage_kwh": 1000}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var cmp billing.PlanComparisonResult
	decodeBody(t, resp, &cmp)
	if len(cmp.Ranked) != 2 || cmp.Ranked[0].PlanID != "cheap" {
		t.Errorf("ranked = %+v", cmp.Ranked)
	}
	if len(cmp.Skipped) != 1 || cmp.Skipped[0] != "ghost" {
		t.Errorf("skipped = %v", cmp.Skipped)
	}
}

func TestQuarantineListing(t *testing.T) {
	srv, svc, _ := newTestServer(t, nil)

	doc := efl.PlanDocument{
		PlanID:      "q1",
		RepName:     "Gexa Energy",
		ProductName: "Saver 12",
		RateStructure: &rates.RateStructure{
			Type:            rates.RateTypeFixed,
			EnergyRateCents: f64(12),
		},
		EFLText: "Electricity Facts Label\n" +
			"Average Monthly Use:        500 kWh     1,000 kWh    2,000 kWh\n" +
			"Average Price per kWh:      12.0¢       14.0¢        12.0¢\n" +
			"Energy Charge: 12.0¢ per kWh\n",
	}
	raw, _ := json.Marshal(doc)
	if _, err := svc.IngestDocument(context.Background(), raw); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	resp, err := http.Get(srv.URL + "/api/v2/quarantine")
	if err != nil {
		t.Fatalf("get quarantine: %v", err)
	}
	var entries []storage.QuarantineRecord
	decodeBody(t, resp, &entries)
	if len(entries) != 1 || entries[0].PlanID != "q1" {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].ReasonCode != string(classify.ReasonSuspectAvgPriceMismatch) {
		t.Errorf("reason = %s", entries[0].ReasonCode)
	}
}

func TestAuthEnforcement(t *testing.T) {
	store := storage.NewMemory()
	authSvc, err := auth.NewService(store)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	svc := plans.NewService(plans.Config{}, plans.Deps{Store: store, Cache: cache.NewMemoryCache()})
	mux := NewMux(Deps{Plans: svc, Store: store, Auth: authSvc})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	viewer, err := authSvc.Register(ctx, "reader", "hunter22", "viewer")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, viewerToken, err := authSvc.CreateToken(ctx, viewer.ID, "cli", "viewer", nil)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	do := func(method, path, token string, body []byte) int {
		req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	if code := do(http.MethodGet, "/api/v2/plans", viewerToken, nil); code != http.StatusOK {
		t.Errorf("viewer list = %d, want 200", code)
	}
	if code := do(http.MethodPost, "/api/v2/plans", viewerToken, flatDoc(t, "p1", 12)); code != http.StatusForbidden {
		t.Errorf("viewer ingest = %d, want 403", code)
	}
	if code := do(http.MethodGet, "/api/v2/plans", "", nil); code != http.StatusForbidden {
		t.Errorf("anonymous list = %d, want 403", code)
	}
	if code := do(http.MethodGet, "/api/v2/plans", "bogus", nil); code != http.StatusUnauthorized {
		t.Errorf("bad token = %d, want 401", code)
	}

	admin, err := authSvc.Register(ctx, "root", "hunter23", "admin")
	if err != nil {
		t.Fatalf("register admin: %v", err)
	}
	_, adminToken, err := authSvc.CreateToken(ctx, admin.ID, "cli", "admin", nil)
	if err != nil {
		t.Fatalf("admin token: %v", err)
	}
	if code := do(http.MethodPost, "/api/v2/plans", adminToken, flatDoc(t, "p2", 12)); code != http.StatusOK {
		t.Errorf("admin ingest = %d, want 200", code)
	}
}
