package incidentapi

import (
	"encoding/json"
	"net/http"
	"time"
)

// timestamp renders the envelope timestamp in UTC RFC3339.
func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeFailure renders the uniform failure envelope.
func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"success":   false,
		"error":     msg,
		"timestamp": timestamp(),
	})
}
