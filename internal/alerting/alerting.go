// Package alerting posts operational alerts to a webhook. Slack and
// discord payload shapes are built in; anything else gets a generic JSON
// body.
package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Alerter sends alerts to a configured webhook.
type Alerter struct {
	url    string
	kind   string
	client *http.Client
	log    *zap.Logger
}

// New builds an alerter. An empty URL disables it; Alert becomes a no-op.
func New(url, kind string, log *zap.Logger) *Alerter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Alerter{
		url:    url,
		kind:   kind,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
}

func (a *Alerter) Enabled() bool {
	return a != nil && a.url != ""
}

// Alert posts one message. Delivery failures are returned, not retried;
// callers treat alerting as best effort.
func (a *Alerter) Alert(ctx context.Context, title, message string) error {
	if !a.Enabled() {
		return nil
	}

	var payload any
	switch a.kind {
	case "slack":
		payload = map[string]string{"text": fmt.Sprintf("*%s*\n%s", title, message)}
	case "discord":
		payload = map[string]string{"content": fmt.Sprintf("**%s**\n%s", title, message)}
	default:
		payload = map[string]string{"title": title, "message": message, "source": "eflengine"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return a.post(ctx, body)
}

// SweepSummary describes one revalidation sweep for alerting.
type SweepSummary struct {
	JobName     string
	TotalPlans  int
	Errors      int
	Quarantined []PlanIssue
	Duration    time.Duration
	Timestamp   time.Time
}

// PlanIssue names one plan the sweep left quarantined.
type PlanIssue struct {
	PlanID     string `json:"plan_id"`
	ReasonCode string `json:"reason_code"`
	Detail     string `json:"detail,omitempty"`
}

// SweepAlert reports a revalidation sweep that left plans quarantined.
// Callers decide the threshold; an empty Quarantined list still sends when
// Errors is nonzero.
func (a *Alerter) SweepAlert(ctx context.Context, sweep SweepSummary) error {
	if !a.Enabled() {
		return nil
	}

	var payload []byte
	var err error
	switch a.kind {
	case "slack":
		payload, err = a.buildSlackPayload(sweep)
	case "discord":
		payload, err = a.buildDiscordPayload(sweep)
	default:
		payload, err = a.buildGenericPayload(sweep)
	}
	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}
	return a.post(ctx, payload)
}

func (a *Alerter) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, string(respBody))
	}

	a.log.Debug("alert delivered", zap.String("kind", a.kind))
	return nil
}

func (a *Alerter) buildSlackPayload(sweep SweepSummary) ([]byte, error) {
	var issueList strings.Builder
	for _, q := range sweep.Quarantined {
		issueList.WriteString(fmt.Sprintf("• *%s*: %s (%s)\n", q.PlanID, q.ReasonCode, q.Detail))
	}

	emoji := ":warning:"
	if sweep.Errors > 0 {
		emoji = ":x:"
	}

	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": fmt.Sprintf("%s Revalidation Sweep: %s", emoji, sweep.JobName),
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Plans:*\n%d", sweep.TotalPlans)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Quarantined:*\n%d", len(sweep.Quarantined))},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Errors:*\n%d", sweep.Errors)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Duration:*\n%s", sweep.Duration.Round(time.Millisecond))},
				},
			},
			{
				"type": "section",
				"text": map[string]string{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Quarantined Plans:*\n%s", issueList.String()),
				},
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(sweep SweepSummary) ([]byte, error) {
	var issueList strings.Builder
	for _, q := range sweep.Quarantined {
		issueList.WriteString(fmt.Sprintf("• **%s**: %s (%s)\n", q.PlanID, q.ReasonCode, q.Detail))
	}

	color := 16776960 // Yellow
	if sweep.Errors > 0 {
		color = 16711680 // Red
	}

	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       fmt.Sprintf("Revalidation Sweep: %s", sweep.JobName),
				"description": fmt.Sprintf("%d of %d plans quarantined", len(sweep.Quarantined), sweep.TotalPlans),
				"color":       color,
				"fields": []map[string]interface{}{
					{"name": "Plans", "value": fmt.Sprintf("%d", sweep.TotalPlans), "inline": true},
					{"name": "Quarantined", "value": fmt.Sprintf("%d", len(sweep.Quarantined)), "inline": true},
					{"name": "Errors", "value": fmt.Sprintf("%d", sweep.Errors), "inline": true},
					{"name": "Quarantined Plans", "value": issueList.String(), "inline": false},
				},
				"timestamp": sweep.Timestamp.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(sweep SweepSummary) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":        "revalidation_sweep",
		"job_name":          sweep.JobName,
		"total_plans":       sweep.TotalPlans,
		"quarantined_count": len(sweep.Quarantined),
		"errors":            sweep.Errors,
		"duration_ms":       sweep.Duration.Milliseconds(),
		"timestamp":         sweep.Timestamp.Format(time.RFC3339),
		"quarantined":       sweep.Quarantined,
	}

	return json.Marshal(payload)
}
