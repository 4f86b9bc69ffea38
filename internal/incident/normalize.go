package incident

import (
	"encoding/json"
	"time"
)

// Normalize reconciles a raw incident payload into a canonical record.
// Payloads may arrive wrapped in a "properties" envelope and use aliased
// field names; nothing is required, absent fields get documented defaults.
// The transform is pure and keeps the original payload for audit.
func Normalize(payload map[string]any, now time.Time) *IncidentRecord {
	raw, _ := json.Marshal(payload)

	if props, ok := payload["properties"].(map[string]any); ok {
		payload = props
	}

	severity := stringValue(payload, "severity")
	if severity == "" {
		severity = "Unknown"
	}
	status := stringValue(payload, "status")
	if status == "" {
		status = "New"
	}

	return &IncidentRecord{
		DocumentType:     DocumentType,
		IncidentID:       firstString(payload, "incidentId", "id"),
		Title:            firstString(payload, "title", "incidentName"),
		Description:      stringValue(payload, "description"),
		Severity:         severity,
		SeverityLevel:    SeverityLevel(severity),
		Status:           status,
		CreatedTime:      timeValue(payload, "createdTimeUtc", now),
		LastModifiedTime: timeValue(payload, "lastModifiedTimeUtc", now),
		Tactics:          stringSlice(payload, "tactics"),
		Techniques:       stringSlice(payload, "techniques"),
		Entities:         rawSlice(payload, "relatedEntities"),
		Alerts:           rawSlice(payload, "relatedAlerts"),
		ActionPlanStatus: ActionPlanPending,
		ProcessedTime:    now,
		RawPayload:       raw,
	}
}

// firstString returns the first non-empty string among the named keys.
func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := stringValue(m, k); v != "" {
			return v
		}
	}
	return ""
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func timeValue(m map[string]any, key string, fallback time.Time) time.Time {
	s, _ := m[key].(string)
	if s == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}

func stringSlice(m map[string]any, key string) []string {
	vs, _ := m[key].([]any)
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// rawSlice re-marshals each element so opaque structured values pass
// through unmodified.
func rawSlice(m map[string]any, key string) []json.RawMessage {
	vs, _ := m[key].([]any)
	out := make([]json.RawMessage, 0, len(vs))
	for _, v := range vs {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out = append(out, json.RawMessage(b))
	}
	return out
}
