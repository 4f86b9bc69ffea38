package incident

import (
	"context"
	"errors"
)

// Sentinel errors reported by Store implementations.
var (
	ErrNotFound = errors.New("incident: document not found")
	ErrConflict = errors.New("incident: document modified concurrently")
)

// Sample limit bounds; callers outside this range are clamped, never failed.
const (
	MinSampleLimit = 1
	MaxSampleLimit = 100
)

// ClampSampleLimit forces limit into [MinSampleLimit, MaxSampleLimit].
func ClampSampleLimit(limit int) int {
	if limit < MinSampleLimit {
		return MinSampleLimit
	}
	if limit > MaxSampleLimit {
		return MaxSampleLimit
	}
	return limit
}

// DocumentRef identifies a stored document by both keys: the store-assigned
// document id and the upstream business id.
type DocumentRef struct {
	DocumentID string `json:"document_id"`
	IncidentID string `json:"incident_id"`
}

// Store is the persistence interface for incident documents. Implementations
// exclusively own persisted state; upserts are keyed on the business id so
// redelivery never duplicates documents.
type Store interface {
	// Upsert writes or overwrites the document keyed by rec.IncidentID,
	// preserving the original document id and created time on overwrite.
	Upsert(ctx context.Context, rec *IncidentRecord) (DocumentRef, error)

	// Get retrieves a document by its store-assigned id.
	Get(ctx context.Context, documentID string) (*IncidentRecord, bool, error)

	// UpdateActionStatus sets the action plan status, notes, and update time
	// in a read-modify-write guarded by the document revision. Returns
	// ErrNotFound for a missing document, ErrConflict when the document
	// changed since it was read.
	UpdateActionStatus(ctx context.Context, documentID string, status ActionPlanStatus, notes string) (*IncidentRecord, error)

	// Query executes a validated QuerySpec, bounded by spec.MaxRows.
	Query(ctx context.Context, spec QuerySpec) ([]*IncidentRecord, error)

	// Sample returns the limit highest-severity documents, limit clamped
	// to [MinSampleLimit, MaxSampleLimit].
	Sample(ctx context.Context, limit int) ([]*IncidentRecord, error)

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
