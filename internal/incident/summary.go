package incident

import (
	"fmt"
	"strings"
)

const (
	summaryMaxIncidents = 5
	summaryMaxActions   = 2
)

// Summarize renders a length-bounded conversational digest of query
// results. The data never diverges from the programmatic surface, only
// the presentation does.
func Summarize(query string, records []*IncidentRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)
	fmt.Fprintf(&b, "Results: %d incidents found\n\n", len(records))

	if len(records) == 0 {
		b.WriteString("No incidents matching your query.\n")
		return b.String()
	}

	b.WriteString("Incident Summary:\n")
	shown := records
	if len(shown) > summaryMaxIncidents {
		shown = shown[:summaryMaxIncidents]
	}
	for i, rec := range shown {
		title := rec.Title
		if title == "" {
			title = "Unknown"
		}
		risk := "Not assessed"
		if rec.Analysis != nil && rec.Analysis.RiskLevel != "" {
			risk = rec.Analysis.RiskLevel
		}

		fmt.Fprintf(&b, "\n%d. %s\n", i+1, title)
		fmt.Fprintf(&b, "   - Severity: %s\n", rec.Severity)
		fmt.Fprintf(&b, "   - Risk Level: %s\n", risk)
		fmt.Fprintf(&b, "   - Status: %s\n", rec.ActionPlanStatus)
		fmt.Fprintf(&b, "   - Created: %s\n", rec.CreatedTime.UTC().Format("2006-01-02 15:04 UTC"))

		if rec.Analysis != nil && len(rec.Analysis.ImmediateActions) > 0 {
			actions := rec.Analysis.ImmediateActions
			if len(actions) > summaryMaxActions {
				actions = actions[:summaryMaxActions]
			}
			fmt.Fprintf(&b, "   - Immediate Actions: %s\n", strings.Join(actions, ", "))
		}
	}

	if len(records) > summaryMaxIncidents {
		fmt.Fprintf(&b, "\n... and %d more incidents\n", len(records)-summaryMaxIncidents)
	}
	return b.String()
}
