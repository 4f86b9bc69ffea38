package incidentapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

func (a *API) handleUpdateActions(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DocumentID   string `json:"document_id"`
		ActionStatus string `json:"action_status"`
		Notes        string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	// Both fields are mandatory; reject before any store access.
	if body.DocumentID == "" || body.ActionStatus == "" {
		writeFailure(w, http.StatusBadRequest, "Missing required fields: document_id, action_status")
		return
	}

	rec, err := a.svc.UpdateActionStatus(r.Context(), body.DocumentID,
		incident.ActionPlanStatus(body.ActionStatus), body.Notes)
	switch {
	case err == nil:
	case errors.Is(err, incident.ErrValidation):
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, incident.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "document not found: "+body.DocumentID)
		return
	case errors.Is(err, incident.ErrConflict):
		writeFailure(w, http.StatusConflict, "document modified concurrently, retry the update")
		return
	default:
		a.logger.Error(r.Context(), err, "failed to update action status", "document_id", body.DocumentID)
		writeFailure(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"document_id":   rec.ID,
		"action_status": string(rec.ActionPlanStatus),
		"timestamp":     timestamp(),
	})
}
