package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

func testIncident() *incident.IncidentRecord {
	return &incident.IncidentRecord{
		ID:            "doc-1",
		IncidentID:    "INC-1",
		Title:         "Suspicious PowerShell Activity",
		Severity:      "Critical",
		SeverityLevel: 5,
		Status:        "New",
		Analysis: &incident.ActionPlan{
			RiskLevel:                "Critical",
			EstimatedResolutionHours: 4,
			AnalysisSummary:          "Obfuscated commands on a production host.",
		},
		ActionPlanStatus: incident.ActionPlanPending,
		ProcessedTime:    time.Date(2026, 8, 1, 14, 0, 0, 0, time.UTC),
	}
}

func TestSend_NoWebhookConfigured(t *testing.T) {
	t.Parallel()

	n := New("")
	if err := n.Send(context.Background(), testIncident()); err != nil {
		t.Fatalf("Send with empty webhook = %v, want nil no-op", err)
	}
}

func TestSend_PostsBlocks(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New(srv.URL)
	if err := n.Send(context.Background(), testIncident()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", gotContentType)
	}

	var msg struct {
		Blocks []map[string]any `json:"blocks"`
	}
	if err := json.Unmarshal(gotBody, &msg); err != nil {
		t.Fatalf("unmarshal webhook body: %v", err)
	}
	if len(msg.Blocks) == 0 {
		t.Fatal("webhook message has no blocks")
	}
	if msg.Blocks[0]["type"] != "header" {
		t.Errorf("first block type = %v, want header", msg.Blocks[0]["type"])
	}

	body := string(gotBody)
	for _, want := range []string{
		"Incident Ingested: Suspicious PowerShell Activity",
		"*Severity:* Critical",
		"*Risk Level:* Critical",
		"Obfuscated commands on a production host.",
		"incidentd • INC-1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("webhook body missing %q", want)
		}
	}
}

func TestSend_WebhookFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	n := New(srv.URL)
	err := n.Send(context.Background(), testIncident())
	if err == nil {
		t.Fatal("Send = nil, want error for non-2xx webhook response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %v, want status code mentioned", err)
	}
}

func TestSend_NoAnalysis(t *testing.T) {
	t.Parallel()

	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := testIncident()
	rec.Analysis = nil

	if err := New(srv.URL).Send(context.Background(), rec); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(string(gotBody), "_No analysis available._") {
		t.Error("webhook body should carry the no-analysis placeholder")
	}
}

func TestSeverityEmoji(t *testing.T) {
	t.Parallel()

	if severityEmoji("Critical") == severityEmoji("Low") {
		t.Error("Critical and Low should map to different emoji")
	}
	if severityEmoji("HIGH") != severityEmoji("high") {
		t.Error("emoji lookup should be case-insensitive")
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", maxSummaryLen+100)
	got := truncate(long, maxSummaryLen)
	if len(got) != maxSummaryLen {
		t.Errorf("truncate length = %d, want %d", len(got), maxSummaryLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated string missing ellipsis")
	}
	if truncate("short", maxSummaryLen) != "short" {
		t.Error("truncate altered a short string")
	}
}
