package incident

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

const (
	queryMaxTokens = 500

	// queryTemperature keeps translation output low-variance.
	queryTemperature = 0.0
)

// Translator converts a natural-language question into a QuerySpec.
// Unlike the generator it fails closed: a wrong or unsafe query returned
// silently is worse than an explicit error, so every failure propagates.
type Translator struct {
	provider Provider
	logger   log.Logger
	maxRows  int
}

// NewTranslator creates a translator backed by the given model provider.
// maxRows caps result sets; values outside [1,DefaultQueryRows] fall back
// to DefaultQueryRows.
func NewTranslator(provider Provider, logger log.Logger, maxRows int) *Translator {
	if logger == nil {
		logger = log.Nop()
	}
	if maxRows < 1 || maxRows > DefaultQueryRows {
		maxRows = DefaultQueryRows
	}
	return &Translator{provider: provider, logger: logger, maxRows: maxRows}
}

const querySchema = `Table: incidents
Columns:
- id: unique document id
- document_type: always 'security_incident'
- incident_id: upstream incident id
- title: incident title
- description: incident description
- severity: severity name (Critical/High/Medium/Low/Informational)
- severity_level: numeric severity (1-5)
- status: incident status
- created_time: timestamp when the incident was created
- action_plan_status: action plan execution status (Pending/InProgress/Completed)
- analysis: JSON action plan; analysis->>'risk_level' is the assessed risk level`

const queryRules = `Rules:
1. Always write SELECT * FROM incidents - never project individual columns.
2. Always include WHERE document_type = 'security_incident'.
3. Produce exactly one SELECT statement in standard PostgreSQL syntax.
4. No comments, no semicolons, no code fences - reply with the bare SQL only.

Common query patterns:
- "Show critical incidents" -> SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity = 'Critical'
- "Get high risk incidents" -> SELECT * FROM incidents WHERE document_type = 'security_incident' AND analysis->>'risk_level' = 'High'
- "Show pending action plans" -> SELECT * FROM incidents WHERE document_type = 'security_incident' AND action_plan_status = 'Pending'`

// Translate produces a validated QuerySpec for the question, or an error.
// No fallback query is ever substituted.
func (t *Translator) Translate(ctx context.Context, question string) (QuerySpec, error) {
	resp, err := t.provider.Complete(ctx, &CompletionRequest{
		System: fmt.Sprintf("You are an expert SQL query generator for security incident data.\n\n%s\n\n%s",
			querySchema, queryRules),
		Prompt:      "Convert this question to a PostgreSQL query: " + question,
		MaxTokens:   queryMaxTokens,
		Temperature: queryTemperature,
	})
	if err != nil {
		return QuerySpec{}, fmt.Errorf("translate query: %w", err)
	}

	sql := strings.TrimSuffix(stripFences(resp.Text), ";")
	spec := QuerySpec{SQL: strings.TrimSpace(sql), MaxRows: t.maxRows}
	if err := spec.Validate(); err != nil {
		t.logger.Warn(ctx, "translator produced unsafe query",
			"question", question, "sql", spec.SQL, "reason", err.Error())
		return QuerySpec{}, err
	}

	t.logger.Info(ctx, "translated query",
		"question", question,
		"sql", spec.SQL,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
	)
	return spec, nil
}
