// Package slack sends incident notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

const (
	maxSummaryLen = 3000
	httpTimeout   = 10 * time.Second
)

// Notifier sends ingested incidents to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts an incident to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, rec *incident.IncidentRecord) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(rec))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *incident.IncidentRecord) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			{"type": "divider"},
			summaryBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *incident.IncidentRecord) map[string]any {
	title := rec.Title
	if title == "" {
		title = rec.IncidentID
	}
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("%s Incident Ingested: %s", severityEmoji(rec.Severity), title),
		},
	}
}

func fieldsBlock(rec *incident.IncidentRecord) map[string]any {
	risk := "Not assessed"
	hours := float64(0)
	if rec.Analysis != nil {
		risk = rec.Analysis.RiskLevel
		hours = rec.Analysis.EstimatedResolutionHours
	}

	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Severity:* %s", rec.Severity)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Risk Level:* %s", risk)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Status:* %s", rec.Status)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Plan:* %s", rec.ActionPlanStatus)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Est. Resolution:* %.0fh", hours)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Entities:* %d", len(rec.Entities))},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func summaryBlock(rec *incident.IncidentRecord) map[string]any {
	text := ""
	if rec.Analysis != nil {
		text = truncate(rec.Analysis.AnalysisSummary, maxSummaryLen)
	}
	if text == "" {
		text = "_No analysis available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Analysis*\n\n%s", text),
		},
	}
}

func contextBlock(rec *incident.IncidentRecord) map[string]any {
	ts := rec.ProcessedTime
	if ts.IsZero() {
		ts = time.Now()
	}

	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("incidentd • %s • %s", rec.IncidentID, ts.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func severityEmoji(severity string) string {
	switch strings.ToLower(severity) {
	case "critical":
		return "\U0001f534" // red circle
	case "high":
		return "\U0001f7e0" // orange circle
	case "medium":
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
