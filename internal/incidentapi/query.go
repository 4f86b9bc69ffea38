package incidentapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	question := r.URL.Query().Get("query")

	records, ok := a.runQuery(w, r, question)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"query":     question,
		"incidents": records,
		"count":     len(records),
		"timestamp": timestamp(),
	})
}

// handleToolQuery is the tool-style surface: same data as handleQuery plus
// a conversational digest. The two surfaces never diverge in underlying
// data, only in presentation.
func (a *API) handleToolQuery(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	records, ok := a.runQuery(w, r, body.Query)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"query":     body.Query,
		"summary":   incident.Summarize(body.Query, records),
		"incidents": records,
		"count":     len(records),
		"timestamp": timestamp(),
	})
}

// runQuery executes the translate-and-read path and writes the failure
// envelope itself when the query cannot be served.
func (a *API) runQuery(w http.ResponseWriter, r *http.Request, question string) ([]*incident.IncidentRecord, bool) {
	_, records, err := a.svc.Query(r.Context(), question)
	switch {
	case err == nil:
		return records, true
	case errors.Is(err, incident.ErrEmptyQuery):
		writeFailure(w, http.StatusBadRequest, "Query parameter is required")
	case errors.Is(err, incident.ErrUnsafeQuery):
		a.logger.Error(r.Context(), err, "query rejected", "question", question)
		writeFailure(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error(r.Context(), err, "query failed", "question", question)
		writeFailure(w, http.StatusInternalServerError, err.Error())
	}
	return nil, false
}
