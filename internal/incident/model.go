package incident

import (
	"encoding/json"
	"time"
)

// DocumentType is the record-type discriminator stamped on every stored
// incident. Every translated query must filter on it.
const DocumentType = "security_incident"

// ActionPlanStatus tracks execution of an incident's action plan.
type ActionPlanStatus string

const (
	ActionPlanPending    ActionPlanStatus = "Pending"
	ActionPlanInProgress ActionPlanStatus = "InProgress"
	ActionPlanCompleted  ActionPlanStatus = "Completed"
)

// Valid reports whether s is one of the defined action plan statuses.
func (s ActionPlanStatus) Valid() bool {
	switch s {
	case ActionPlanPending, ActionPlanInProgress, ActionPlanCompleted:
		return true
	}
	return false
}

// severityLevels maps upstream severity names to their ordinal rank.
// Unrecognized severities rank 0.
var severityLevels = map[string]int{
	"Informational": 1,
	"Low":           2,
	"Medium":        3,
	"High":          4,
	"Critical":      5,
}

// SeverityLevel returns the fixed rank (1-5) for a known severity, 0 otherwise.
func SeverityLevel(severity string) int {
	return severityLevels[severity]
}

// riskLevels is the allowed set for ActionPlan.RiskLevel.
var riskLevels = map[string]bool{
	"Critical": true,
	"High":     true,
	"Medium":   true,
	"Low":      true,
}

// IncidentRecord is the canonical stored unit: one document per upstream
// incident id, carrying the normalized incident plus its generated analysis.
type IncidentRecord struct {
	ID               string            `json:"id"`
	DocumentType     string            `json:"document_type"`
	IncidentID       string            `json:"incident_id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	Severity         string            `json:"severity"`
	SeverityLevel    int               `json:"severity_level"`
	Status           string            `json:"status"`
	CreatedTime      time.Time         `json:"created_time"`
	LastModifiedTime time.Time         `json:"last_modified_time"`
	Tactics          []string          `json:"tactics"`
	Techniques       []string          `json:"techniques"`
	Entities         []json.RawMessage `json:"entities"`
	Alerts           []json.RawMessage `json:"alerts"`
	Analysis         *ActionPlan       `json:"analysis,omitempty"`
	ActionPlanStatus ActionPlanStatus  `json:"action_plan_status"`
	ActionPlanNotes  string            `json:"action_plan_notes,omitempty"`
	ActionPlanUpdated time.Time        `json:"action_plan_updated,omitzero"`
	ProcessedTime    time.Time         `json:"processed_time"`
	RawPayload       json.RawMessage   `json:"raw_payload,omitempty"`

	// Revision is the optimistic concurrency token, bumped on every write.
	Revision int `json:"revision"`
}

// ActionPlan is the structured output of the generator. All eight contract
// fields are always present and type-correct in a stored document; the
// generator enforces this, not the store.
type ActionPlan struct {
	RiskLevel                string   `json:"risk_level"`
	ImmediateActions         []string `json:"immediate_actions"`
	ShortTermActions         []string `json:"short_term_actions"`
	LongTermActions          []string `json:"long_term_actions"`
	RequiredTeams            []string `json:"required_teams"`
	EstimatedResolutionHours float64  `json:"estimated_resolution_hours"`
	BusinessImpact           string   `json:"business_impact"`
	AnalysisSummary          string   `json:"analysis_summary"`

	// Degraded marks plans synthesized by the fallback path.
	Degraded bool `json:"degraded,omitempty"`
}
