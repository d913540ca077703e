package efltext

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStaticExtractor(t *testing.T) {
	ex := &Static{Text: "Energy Charge: 9.5¢ per kWh"}
	res, err := ex.Extract(context.Background(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "Energy Charge: 9.5¢ per kWh" {
		t.Errorf("unexpected text %q", res.Text)
	}
	if res.Method != "static" {
		t.Errorf("expected static method, got %q", res.Method)
	}
}

func TestChainFallsBack(t *testing.T) {
	broken := &Static{Err: errors.New("boom")}
	working := &Static{Text: "label text", Method: "second"}
	chain := NewChain(broken, working)

	res, err := chain.Extract(context.Background(), []byte("doc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != "second" {
		t.Errorf("expected fallback extractor, got %q", res.Method)
	}
}

func TestChainAllFail(t *testing.T) {
	chain := NewChain(&Static{Err: errors.New("first")}, &Static{Err: errors.New("second")})
	if _, err := chain.Extract(context.Background(), []byte("doc")); err == nil {
		t.Fatalf("expected error when every extractor fails")
	}
}

func TestRemoteExtract(t *testing.T) {
	var gotToken, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/efl/pdftotext" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotToken = r.Header.Get("X-EFL-PDFTEXT-TOKEN")
		gotContentType = r.Header.Get("Content-Type")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok": true, "text": "Energy Charge: 9.5¢ per kWh", "method": "pdftotext", "notes": ["pages=1"]}`))
	}))
	defer srv.Close()

	ex := NewRemote(srv.URL, "secret", srv.Client())
	res, err := ex.Extract(context.Background(), []byte("%PDF-1.4"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotToken != "secret" {
		t.Errorf("expected token header, got %q", gotToken)
	}
	if gotContentType != "application/pdf" {
		t.Errorf("expected pdf content type, got %q", gotContentType)
	}
	if res.Method != "pdftotext" {
		t.Errorf("expected pdftotext method, got %q", res.Method)
	}
	if res.Text != "Energy Charge: 9.5¢ per kWh" {
		t.Errorf("expected normalized text, got %q", res.Text)
	}
}

func TestRemoteExtractServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"ok": false, "error": "unauthorized"}`))
	}))
	defer srv.Close()

	ex := NewRemote(srv.URL, "", srv.Client())
	_, err := ex.Extract(context.Background(), []byte("%PDF-1.4"))
	if err == nil {
		t.Fatalf("expected error from service failure")
	}
}

func TestRemoteExtractEmptyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok": true, "text": "   ", "method": "pdftotext"}`))
	}))
	defer srv.Close()

	ex := NewRemote(srv.URL, "", srv.Client())
	if _, err := ex.Extract(context.Background(), []byte("%PDF-1.4")); !errors.Is(err, ErrNoText) {
		t.Fatalf("expected ErrNoText, got %v", err)
	}
}

func TestRemoteHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ex := NewRemote(srv.URL, "", srv.Client())
	if err := ex.Healthy(context.Background()); err != nil {
		t.Fatalf("unexpected health error: %v", err)
	}
}

func TestPDFExtractorRejectsGarbage(t *testing.T) {
	if _, err := (PDF{}).Extract(context.Background(), []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for non-pdf bytes")
	}
}
