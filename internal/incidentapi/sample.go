package incidentapi

import (
	"net/http"
	"strconv"
)

const defaultSampleLimit = 10

func (a *API) handleSample(w http.ResponseWriter, r *http.Request) {
	limit := defaultSampleLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "invalid limit: "+raw)
			return
		}
		limit = n
	}

	records, err := a.svc.Sample(r.Context(), limit)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to fetch sample incidents")
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sample_incidents": records,
		"count":            len(records),
		"success":          true,
		"timestamp":        timestamp(),
	})
}
