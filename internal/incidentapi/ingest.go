package incidentapi

import (
	"encoding/json"
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid incident payload: "+err.Error())
		return
	}

	result, err := a.svc.Ingest(r.Context(), payload)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to process incident")
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	rec := result.Record
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(
		attribute.String("incidentd.incident.id", rec.IncidentID),
		attribute.String("incidentd.analysis.outcome", string(result.Outcome)),
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":                    true,
		"incident_id":                rec.IncidentID,
		"document_id":                result.Ref.DocumentID,
		"title":                      rec.Title,
		"severity":                   rec.Severity,
		"risk_level":                 rec.Analysis.RiskLevel,
		"immediate_actions":          rec.Analysis.ImmediateActions,
		"estimated_resolution_hours": rec.Analysis.EstimatedResolutionHours,
		"message":                    "Incident processed and action plan generated",
		"timestamp":                  timestamp(),
	})
}
