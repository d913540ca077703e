package storage

import (
	"context"
	"testing"
	"time"
)

func TestMemoryPlanRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	p := PlanRecord{
		ID:          "plan-1",
		RepName:     "Gexa Energy",
		ProductName: "Saver 12",
		TDSPName:    "Oncor",
		Document:    []byte(`{"plan_id":"plan-1"}`),
		Status:      "COMPUTABLE",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := m.UpsertPlan(ctx, p); err != nil {
		t.Fatalf("UpsertPlan failed: %v", err)
	}

	got, err := m.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if got == nil || got.RepName != "Gexa Energy" || got.Status != "COMPUTABLE" {
		t.Fatalf("plan mismatch: %+v", got)
	}

	list, err := m.ListPlans(ctx)
	if err != nil {
		t.Fatalf("ListPlans failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 plan, got %d", len(list))
	}

	if err := m.DeletePlan(ctx, "plan-1"); err != nil {
		t.Fatalf("DeletePlan failed: %v", err)
	}
	got, err = m.GetPlan(ctx, "plan-1")
	if err != nil {
		t.Fatalf("GetPlan after delete failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil after delete, got %+v", got)
	}
}

func TestMemoryValidationHistory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range []string{"FAIL", "FAIL", "PASS"} {
		rec := ValidationRecord{
			PlanID:    "plan-1",
			Status:    status,
			CheckedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := m.SaveValidation(ctx, rec); err != nil {
			t.Fatalf("SaveValidation %d failed: %v", i, err)
		}
	}

	latest, err := m.LatestValidation(ctx, "plan-1")
	if err != nil {
		t.Fatalf("LatestValidation failed: %v", err)
	}
	if latest == nil || latest.Status != "PASS" {
		t.Fatalf("expected latest PASS, got %+v", latest)
	}

	history, err := m.ListValidations(ctx, "plan-1", 2)
	if err != nil {
		t.Fatalf("ListValidations failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 records, got %d", len(history))
	}
	if history[0].Status != "PASS" || history[1].Status != "FAIL" {
		t.Errorf("expected newest first, got %s then %s", history[0].Status, history[1].Status)
	}

	none, err := m.LatestValidation(ctx, "missing")
	if err != nil {
		t.Fatalf("LatestValidation for missing plan failed: %v", err)
	}
	if none != nil {
		t.Fatalf("expected nil for unknown plan, got %+v", none)
	}
}

func TestMemoryQuarantineLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	now := time.Now()
	q := QuarantineRecord{
		PlanID:      "plan-1",
		ReasonCode:  "SUSPECT_AVG_PRICE_MISMATCH",
		Reason:      "modeled price off at 1000 kWh",
		FirstSeenAt: now,
		LastSeenAt:  now,
		TimesSeen:   1,
	}
	if err := m.UpsertQuarantine(ctx, q); err != nil {
		t.Fatalf("UpsertQuarantine failed: %v", err)
	}

	n, err := m.CountOpenQuarantine(ctx)
	if err != nil {
		t.Fatalf("CountOpenQuarantine failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 open, got %d", n)
	}

	if err := m.ResolveQuarantine(ctx, "plan-1"); err != nil {
		t.Fatalf("ResolveQuarantine failed: %v", err)
	}
	n, err = m.CountOpenQuarantine(ctx)
	if err != nil {
		t.Fatalf("CountOpenQuarantine after resolve failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 open after resolve, got %d", n)
	}

	open, err := m.ListQuarantine(ctx, false)
	if err != nil {
		t.Fatalf("ListQuarantine failed: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open records, got %d", len(open))
	}

	all, err := m.ListQuarantine(ctx, true)
	if err != nil {
		t.Fatalf("ListQuarantine includeResolved failed: %v", err)
	}
	if len(all) != 1 || !all[0].Resolved || all[0].ResolvedAt == nil {
		t.Fatalf("expected one resolved record, got %+v", all)
	}
}

func TestMemoryUsersAndTokens(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	u := User{ID: "u1", Username: "ops", Email: "ops@example.com", Role: "admin"}
	if err := m.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	got, err := m.GetUserByUsername(ctx, "ops")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if got == nil || got.ID != "u1" {
		t.Fatalf("user mismatch: %+v", got)
	}

	tok := Token{ID: "t1", UserID: "u1", TokenHash: "abc123", Role: "admin"}
	if err := m.CreateToken(ctx, tok); err != nil {
		t.Fatalf("CreateToken failed: %v", err)
	}
	byHash, err := m.GetTokenByHash(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetTokenByHash failed: %v", err)
	}
	if byHash == nil || byHash.ID != "t1" {
		t.Fatalf("token mismatch: %+v", byHash)
	}

	if err := m.UpdateTokenLastUsed(ctx, "t1"); err != nil {
		t.Fatalf("UpdateTokenLastUsed failed: %v", err)
	}
	byHash, _ = m.GetTokenByHash(ctx, "abc123")
	if byHash.LastUsedAt == nil {
		t.Fatalf("expected last_used_at set")
	}
}

func TestOpenDefaultsToMemory(t *testing.T) {
	st, err := Open(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()
	if _, ok := st.(*MemoryStorage); !ok {
		t.Fatalf("expected memory backend, got %T", st)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "oracle"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}

func TestGormSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	st, err := NewGormStorage("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("NewGormStorage failed: %v", err)
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}

	p := PlanRecord{
		ID:          "plan-9",
		RepName:     "TXU Energy",
		ProductName: "Clear Deal 12",
		Document:    []byte(`{}`),
		Status:      "NOT_COMPUTABLE",
		ReasonCode:  "UNSUPPORTED_RATE_STRUCTURE",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if err := st.UpsertPlan(ctx, p); err != nil {
		t.Fatalf("UpsertPlan failed: %v", err)
	}
	p.Status = "COMPUTABLE"
	p.ReasonCode = ""
	if err := st.UpsertPlan(ctx, p); err != nil {
		t.Fatalf("UpsertPlan update failed: %v", err)
	}

	got, err := st.GetPlan(ctx, "plan-9")
	if err != nil {
		t.Fatalf("GetPlan failed: %v", err)
	}
	if got == nil || got.Status != "COMPUTABLE" {
		t.Fatalf("expected upsert to overwrite, got %+v", got)
	}

	missing, err := st.GetPlan(ctx, "nope")
	if err != nil {
		t.Fatalf("GetPlan missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing plan")
	}

	rec := ValidationRecord{PlanID: "plan-9", Status: "PASS", ToleranceCentsPerKWh: 0.5, CheckedAt: time.Now()}
	if err := st.SaveValidation(ctx, rec); err != nil {
		t.Fatalf("SaveValidation failed: %v", err)
	}
	latest, err := st.LatestValidation(ctx, "plan-9")
	if err != nil {
		t.Fatalf("LatestValidation failed: %v", err)
	}
	if latest == nil || latest.Status != "PASS" {
		t.Fatalf("validation mismatch: %+v", latest)
	}

	now := time.Now()
	q := QuarantineRecord{PlanID: "plan-9", ReasonCode: "UNSUPPORTED_RATE_STRUCTURE", FirstSeenAt: now, LastSeenAt: now, TimesSeen: 1}
	if err := st.UpsertQuarantine(ctx, q); err != nil {
		t.Fatalf("UpsertQuarantine failed: %v", err)
	}
	n, err := st.CountOpenQuarantine(ctx)
	if err != nil {
		t.Fatalf("CountOpenQuarantine failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 open, got %d", n)
	}
	if err := st.ResolveQuarantine(ctx, "plan-9"); err != nil {
		t.Fatalf("ResolveQuarantine failed: %v", err)
	}
	n, _ = st.CountOpenQuarantine(ctx)
	if n != 0 {
		t.Fatalf("expected 0 open after resolve, got %d", n)
	}

	if err := st.SetSetting(ctx, "revalidate_interval", "3600"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	v, err := st.GetSetting(ctx, "revalidate_interval")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if v != "3600" {
		t.Fatalf("setting mismatch: %q", v)
	}

	// SQLite path has no advisory locks and must report success.
	ok, err := st.AcquireAdvisoryLock(ctx, 42)
	if err != nil || !ok {
		t.Fatalf("AcquireAdvisoryLock = %v, %v", ok, err)
	}
}
