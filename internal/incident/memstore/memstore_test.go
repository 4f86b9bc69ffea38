package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

func record(incidentID, severity string) *incident.IncidentRecord {
	return &incident.IncidentRecord{
		DocumentType:     incident.DocumentType,
		IncidentID:       incidentID,
		Title:            "Test " + incidentID,
		Severity:         severity,
		SeverityLevel:    incident.SeverityLevel(severity),
		Status:           "New",
		ActionPlanStatus: incident.ActionPlanPending,
		CreatedTime:      time.Now().UTC(),
	}
}

func spec(sql string) incident.QuerySpec {
	return incident.QuerySpec{SQL: sql, MaxRows: incident.DefaultQueryRows}
}

func TestUpsert_NewDocument(t *testing.T) {
	t.Parallel()

	s := New()
	ref, err := s.Upsert(context.Background(), record("INC-1", "High"))
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if ref.DocumentID == "" {
		t.Fatal("Upsert assigned no document id")
	}
	if ref.IncidentID != "INC-1" {
		t.Errorf("IncidentID = %q, want INC-1", ref.IncidentID)
	}

	got, ok, err := s.Get(context.Background(), ref.DocumentID)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if got.Revision != 1 {
		t.Errorf("Revision = %d, want 1", got.Revision)
	}
}

func TestUpsert_SameIncidentIDOverwrites(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	first := record("INC-2", "Low")
	first.CreatedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ref1, err := s.Upsert(ctx, first)
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}

	second := record("INC-2", "Critical")
	second.CreatedTime = time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	ref2, err := s.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	if ref1.DocumentID != ref2.DocumentID {
		t.Fatalf("redelivery changed document id: %q vs %q", ref1.DocumentID, ref2.DocumentID)
	}

	got, _, _ := s.Get(ctx, ref1.DocumentID)
	if got.Severity != "Critical" {
		t.Errorf("Severity = %q, want overwrite to Critical", got.Severity)
	}
	if !got.CreatedTime.Equal(first.CreatedTime) {
		t.Errorf("CreatedTime = %v, want original %v preserved", got.CreatedTime, first.CreatedTime)
	}
	if got.Revision != 2 {
		t.Errorf("Revision = %d, want 2", got.Revision)
	}
}

func TestGet_Missing(t *testing.T) {
	t.Parallel()

	s := New()
	_, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true for missing document")
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	ref, _ := s.Upsert(ctx, record("INC-3", "Medium"))

	got, _, _ := s.Get(ctx, ref.DocumentID)
	got.Severity = "mutated"

	again, _, _ := s.Get(ctx, ref.DocumentID)
	if again.Severity != "Medium" {
		t.Error("Get returned a shared pointer, mutation leaked into the store")
	}
}

func TestUpdateActionStatus(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	ref, _ := s.Upsert(ctx, record("INC-4", "High"))

	got, err := s.UpdateActionStatus(ctx, ref.DocumentID, incident.ActionPlanInProgress, "working it")
	if err != nil {
		t.Fatalf("UpdateActionStatus: %v", err)
	}
	if got.ActionPlanStatus != incident.ActionPlanInProgress {
		t.Errorf("status = %q, want InProgress", got.ActionPlanStatus)
	}
	if got.ActionPlanNotes != "working it" {
		t.Errorf("notes = %q", got.ActionPlanNotes)
	}
	if got.ActionPlanUpdated.IsZero() {
		t.Error("ActionPlanUpdated not set")
	}
	if got.Revision != 2 {
		t.Errorf("Revision = %d, want 2", got.Revision)
	}
}

func TestUpdateActionStatus_NotFound(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.UpdateActionStatus(context.Background(), "missing", incident.ActionPlanCompleted, "")
	if !errors.Is(err, incident.ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestQuery_EqualityFilters(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	crit := record("INC-5", "Critical")
	crit.Analysis = &incident.ActionPlan{RiskLevel: "High"}
	if _, err := s.Upsert(ctx, crit); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Upsert(ctx, record("INC-6", "Low")); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		sql  string
		want int
	}{
		{"discriminator only", "SELECT * FROM incidents WHERE document_type = 'security_incident'", 2},
		{"severity match", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity = 'Critical'", 1},
		{"severity miss", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity = 'Medium'", 0},
		{"severity_level comparison", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity_level >= 4", 1},
		{"risk level json path", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND analysis->>'risk_level' = 'High'", 1},
		{"action plan status", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND action_plan_status = 'Pending'", 2},
		{"negation", "SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity != 'Low'", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := s.Query(ctx, spec(tt.sql))
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Query(%q) = %d records, want %d", tt.sql, len(got), tt.want)
			}
		})
	}
}

func TestQuery_OrderByAndLimitTrimmed(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if _, err := s.Upsert(ctx, record("INC-7", "High")); err != nil {
		t.Fatal(err)
	}

	got, err := s.Query(ctx, spec("SELECT * FROM incidents WHERE document_type = 'security_incident' ORDER BY created_time DESC LIMIT 10"))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("records = %d, want 1", len(got))
	}
}

func TestQuery_MaxRowsBoundsResults(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C", "D"} {
		if _, err := s.Upsert(ctx, record("INC-"+id, "Medium")); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Query(ctx, incident.QuerySpec{
		SQL:     "SELECT * FROM incidents WHERE document_type = 'security_incident'",
		MaxRows: 2,
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("records = %d, want MaxRows cap of 2", len(got))
	}
}

func TestQuery_UnsafeSpecRejected(t *testing.T) {
	t.Parallel()

	s := New()
	_, err := s.Query(context.Background(), spec("SELECT * FROM incidents WHERE severity = 'High'"))
	if !errors.Is(err, incident.ErrUnsafeQuery) {
		t.Fatalf("error = %v, want ErrUnsafeQuery", err)
	}
}

func TestQuery_UnsupportedTermIsErrorNotGuess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if _, err := s.Upsert(ctx, record("INC-8", "High")); err != nil {
		t.Fatal(err)
	}

	_, err := s.Query(ctx, spec("SELECT * FROM incidents WHERE document_type = 'security_incident' AND title LIKE 'foo'"))
	if err == nil {
		t.Fatal("Query accepted a term outside the supported subset")
	}
}

func TestSample_SeverityOrderAndClamp(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	for _, sv := range []string{"Low", "Critical", "Medium", "High"} {
		if _, err := s.Upsert(ctx, record("INC-"+sv, sv)); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Sample(ctx, 3)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Sample = %d records, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].SeverityLevel < got[i].SeverityLevel {
			t.Errorf("Sample not sorted by severity desc: %d before %d",
				got[i-1].SeverityLevel, got[i].SeverityLevel)
		}
	}
	if got[0].Severity != "Critical" {
		t.Errorf("highest severity first = %q, want Critical", got[0].Severity)
	}
}

func TestSample_LimitClampedNotFailed(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()
	if _, err := s.Upsert(ctx, record("INC-9", "High")); err != nil {
		t.Fatal(err)
	}

	for _, limit := range []int{0, -5, incident.MaxSampleLimit + 50} {
		got, err := s.Sample(ctx, limit)
		if err != nil {
			t.Fatalf("Sample(%d): %v", limit, err)
		}
		if len(got) != 1 {
			t.Errorf("Sample(%d) = %d records, want 1", limit, len(got))
		}
	}
}

func TestPing(t *testing.T) {
	t.Parallel()

	if err := New().Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
