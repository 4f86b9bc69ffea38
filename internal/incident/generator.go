package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

const (
	planMaxTokens   = 1000
	planTemperature = 0.1

	// maxPromptEntities bounds prompt size and latency.
	maxPromptEntities = 5
)

// Outcome says how a plan was produced.
type Outcome string

const (
	// OutcomeValidated means the model response passed schema validation.
	OutcomeValidated Outcome = "validated"

	// OutcomeDegraded means the plan was synthesized by the fallback path.
	OutcomeDegraded Outcome = "degraded"
)

// Generator produces an ActionPlan for a normalized incident. Generate
// cannot fail its caller: any provider, parse, or validation failure yields
// a deterministic fallback plan seeded from the incident severity.
type Generator struct {
	provider Provider
	logger   log.Logger
}

// NewGenerator creates a generator backed by the given model provider.
func NewGenerator(provider Provider, logger log.Logger) *Generator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Generator{provider: provider, logger: logger}
}

const planSystemPrompt = `You are a security incident response expert. Analyze the provided security incident and create a detailed action plan.

For each incident, provide:
1. Risk Assessment (Critical/High/Medium/Low)
2. Immediate Actions (steps to take within 1 hour)
3. Short-term Actions (steps to take within 24 hours)
4. Long-term Actions (preventive measures)
5. Required Teams (which teams need to be involved)
6. Estimated Resolution Time
7. Business Impact Assessment

Respond with JSON only, using these exact fields:
{
    "risk_level": "Critical|High|Medium|Low",
    "immediate_actions": ["action1", "action2"],
    "short_term_actions": ["action1", "action2"],
    "long_term_actions": ["action1", "action2"],
    "required_teams": ["team1", "team2"],
    "estimated_resolution_hours": number,
    "business_impact": "description",
    "analysis_summary": "brief summary"
}`

// Generate returns a schema-complete ActionPlan and the outcome of the run.
func (g *Generator) Generate(ctx context.Context, rec *IncidentRecord) (*ActionPlan, Outcome) {
	resp, err := g.provider.Complete(ctx, &CompletionRequest{
		System:      planSystemPrompt,
		Prompt:      buildPlanPrompt(rec),
		MaxTokens:   planMaxTokens,
		Temperature: planTemperature,
	})
	if err != nil {
		g.logger.Error(ctx, err, "action plan generation failed, falling back",
			"incident_id", rec.IncidentID)
		return fallbackPlan(rec, fmt.Sprintf("model call failed: %v", err)), OutcomeDegraded
	}

	plan, err := parsePlan(stripFences(resp.Text))
	if err != nil {
		g.logger.Error(ctx, err, "action plan response rejected, falling back",
			"incident_id", rec.IncidentID)
		return fallbackPlan(rec, fmt.Sprintf("invalid model response: %v", err)), OutcomeDegraded
	}

	g.logger.Info(ctx, "generated action plan",
		"incident_id", rec.IncidentID,
		"risk_level", plan.RiskLevel,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return plan, OutcomeValidated
}

func buildPlanPrompt(rec *IncidentRecord) string {
	tactics := "None identified"
	if len(rec.Tactics) > 0 {
		tactics = strings.Join(rec.Tactics, ", ")
	}

	entities := rec.Entities
	if len(entities) > maxPromptEntities {
		entities = entities[:maxPromptEntities]
	}
	entityDetails := "No entities"
	if len(entities) > 0 {
		if b, err := json.MarshalIndent(entities, "", "  "); err == nil {
			entityDetails = string(b)
		}
	}

	return fmt.Sprintf(`Analyze this security incident:

Title: %s
Severity: %s
Description: %s
Tactics: %s
Entities Involved: %d entities

Entity Details:
%s`,
		rec.Title, rec.Severity, rec.Description, tactics, len(rec.Entities), entityDetails)
}

// parsePlan decodes the model output and validates every contract field.
func parsePlan(data string) (*ActionPlan, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &fields); err != nil {
		return nil, fmt.Errorf("parse plan: %w", err)
	}

	plan := &ActionPlan{}
	var err error
	if plan.RiskLevel, err = stringField(fields, "risk_level"); err != nil {
		return nil, err
	}
	if !riskLevels[plan.RiskLevel] {
		return nil, fmt.Errorf("risk_level %q not in allowed set", plan.RiskLevel)
	}
	if plan.ImmediateActions, err = stringSliceField(fields, "immediate_actions"); err != nil {
		return nil, err
	}
	if plan.ShortTermActions, err = stringSliceField(fields, "short_term_actions"); err != nil {
		return nil, err
	}
	if plan.LongTermActions, err = stringSliceField(fields, "long_term_actions"); err != nil {
		return nil, err
	}
	if plan.RequiredTeams, err = stringSliceField(fields, "required_teams"); err != nil {
		return nil, err
	}
	hoursRaw, ok := fields["estimated_resolution_hours"]
	if !ok {
		return nil, fmt.Errorf("missing field estimated_resolution_hours")
	}
	if err := json.Unmarshal(hoursRaw, &plan.EstimatedResolutionHours); err != nil {
		return nil, fmt.Errorf("estimated_resolution_hours: %w", err)
	}
	if plan.EstimatedResolutionHours < 0 {
		return nil, fmt.Errorf("estimated_resolution_hours is negative")
	}
	if plan.BusinessImpact, err = stringField(fields, "business_impact"); err != nil {
		return nil, err
	}
	if plan.AnalysisSummary, err = stringField(fields, "analysis_summary"); err != nil {
		return nil, err
	}
	return plan, nil
}

func stringField(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing field %s", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%s: %w", key, err)
	}
	return s, nil
}

func stringSliceField(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing field %s", key)
	}
	var ss []string
	if err := json.Unmarshal(raw, &ss); err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if ss == nil {
		ss = []string{}
	}
	return ss, nil
}

// fallbackPlan synthesizes a deterministic plan from the incident severity.
// The summary prefix keeps the degraded path observable in stored documents.
func fallbackPlan(rec *IncidentRecord, reason string) *ActionPlan {
	risk := rec.Severity
	if !riskLevels[risk] {
		risk = "Low"
	}
	return &ActionPlan{
		RiskLevel:                risk,
		ImmediateActions:         []string{"Investigate incident", "Assess impact"},
		ShortTermActions:         []string{"Review logs", "Document findings"},
		LongTermActions:          []string{"Update security policies"},
		RequiredTeams:            []string{"Security Operations"},
		EstimatedResolutionHours: 24,
		BusinessImpact:           "Unable to determine",
		AnalysisSummary:          "Automated fallback analysis: " + reason,
		Degraded:                 true,
	}
}

var fenceRe = regexp.MustCompile("```[a-zA-Z]*\n?")

// stripFences removes markdown code fences the model is told not to emit
// but occasionally does anyway.
func stripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}
