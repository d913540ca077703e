package efltext

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/watthive/eflengine/internal/efl"
)

const tokenHeader = "X-EFL-PDFTEXT-TOKEN"

// Remote calls the standalone pdftotext service: raw PDF bytes in, JSON
// with extracted text out. The service runs its own OCR fallback for
// scanned documents.
type Remote struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewRemote builds a remote extractor for the service at baseURL. The
// token is sent on every request; an empty token relies on the service
// running without auth.
func NewRemote(baseURL, token string, client *http.Client) *Remote {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

type remoteResponse struct {
	OK     bool     `json:"ok"`
	Text   string   `json:"text"`
	Method string   `json:"method"`
	Notes  []string `json:"notes"`
	Error  string   `json:"error"`
}

func (r *Remote) Extract(ctx context.Context, doc []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/efl/pdftotext", bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("build pdftotext request: %w", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	if r.token != "" {
		req.Header.Set(tokenHeader, r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call pdftotext service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read pdftotext response: %w", err)
	}

	var decoded remoteResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode pdftotext response (status %d): %w", resp.StatusCode, err)
	}
	if !decoded.OK {
		if decoded.Error == "" {
			decoded.Error = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("pdftotext service: %s", decoded.Error)
	}

	text := efl.NormalizeText(decoded.Text)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("pdftotext service: %w", ErrNoText)
	}
	return &Result{Text: text, Method: decoded.Method, Notes: decoded.Notes}, nil
}

// Healthy pings the service's health endpoint.
func (r *Remote) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("pdftotext health: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pdftotext health: status %d", resp.StatusCode)
	}
	return nil
}

// NewHTTPClient creates an HTTP client with optional TLS verification
// skipping for servers with broken certificate chains.
func NewHTTPClient(timeout time.Duration, skipTLSVerify bool) *http.Client {
	transport := &http.Transport{}
	if skipTLSVerify {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// DefaultHTTPClient returns a standard HTTP client with 30s timeout.
func DefaultHTTPClient() *http.Client {
	return NewHTTPClient(30*time.Second, false)
}
