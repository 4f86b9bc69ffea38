// Package pgstore provides a PostgreSQL implementation of incident.Store.
// Documents live one row per upstream incident id; upserts key on that id
// so redelivery overwrites instead of duplicating.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/incidentd/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists incident documents in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const recordColumns = `id, document_type, incident_id, title, description, severity, severity_level,
	status, created_time, last_modified_time, tactics, techniques, entities, alerts, analysis,
	action_plan_status, action_plan_notes, action_plan_updated, processed_time, raw_payload, revision`

// Upsert writes or overwrites the document keyed by rec.IncidentID. The
// document id and created time of an existing row survive the overwrite;
// the revision always advances.
func (s *Store) Upsert(ctx context.Context, rec *incident.IncidentRecord) (incident.DocumentRef, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Upsert", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	tactics, techniques, entities, alerts, analysis, err := marshalDocFields(rec)
	if err != nil {
		return incident.DocumentRef{}, err
	}

	docID := rec.ID
	if docID == "" {
		docID = ulid.Make().String()
	}

	query := `INSERT INTO incidents (
		id, document_type, incident_id, title, description, severity, severity_level,
		status, created_time, last_modified_time, tactics, techniques, entities, alerts, analysis,
		action_plan_status, action_plan_notes, action_plan_updated, processed_time, raw_payload, revision
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,1)
	ON CONFLICT (incident_id) DO UPDATE SET
		title              = EXCLUDED.title,
		description        = EXCLUDED.description,
		severity           = EXCLUDED.severity,
		severity_level     = EXCLUDED.severity_level,
		status             = EXCLUDED.status,
		last_modified_time = EXCLUDED.last_modified_time,
		tactics            = EXCLUDED.tactics,
		techniques         = EXCLUDED.techniques,
		entities           = EXCLUDED.entities,
		alerts             = EXCLUDED.alerts,
		analysis           = EXCLUDED.analysis,
		action_plan_status = EXCLUDED.action_plan_status,
		action_plan_notes  = EXCLUDED.action_plan_notes,
		processed_time     = EXCLUDED.processed_time,
		raw_payload        = EXCLUDED.raw_payload,
		revision           = incidents.revision + 1
	RETURNING id, incident_id`

	var ref incident.DocumentRef
	err = s.pool.QueryRow(ctx, query,
		docID, incident.DocumentType, rec.IncidentID, rec.Title, rec.Description,
		rec.Severity, rec.SeverityLevel, rec.Status, rec.CreatedTime, rec.LastModifiedTime,
		tactics, techniques, entities, alerts, analysis,
		string(rec.ActionPlanStatus), rec.ActionPlanNotes, nullableTime(rec.ActionPlanUpdated),
		rec.ProcessedTime, []byte(rec.RawPayload),
	).Scan(&ref.DocumentID, &ref.IncidentID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return incident.DocumentRef{}, fmt.Errorf("upsert incident: %w", err)
	}
	return ref, nil
}

// Get retrieves a document by its store-assigned id.
func (s *Store) Get(ctx context.Context, documentID string) (*incident.IncidentRecord, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Get", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + recordColumns + ` FROM incidents WHERE id = $1`
	rec, err := scanRecord(s.pool.QueryRow(ctx, query, documentID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if rec == nil {
		return nil, false, nil
	}
	return rec, true, nil
}

// UpdateActionStatus reads the document, then writes the new action plan
// fields guarded by the revision read. A concurrent write between read and
// write surfaces as ErrConflict instead of silently overwriting.
func (s *Store) UpdateActionStatus(ctx context.Context, documentID string, status incident.ActionPlanStatus, notes string) (*incident.IncidentRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateActionStatus", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	rec, ok, err := s.Get(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, incident.ErrNotFound
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE incidents
		 SET action_plan_status = $1, action_plan_notes = $2, action_plan_updated = $3,
		     revision = revision + 1
		 WHERE id = $4 AND revision = $5`,
		string(status), notes, now, documentID, rec.Revision,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("update action status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, incident.ErrConflict
	}

	rec.ActionPlanStatus = status
	rec.ActionPlanNotes = notes
	rec.ActionPlanUpdated = now
	rec.Revision++
	return rec, nil
}

// Query executes a validated QuerySpec in a read-only transaction. The
// translated SQL is re-validated and wrapped so the row bound and the
// column set come from this package, never from the model.
func (s *Store) Query(ctx context.Context, spec incident.QuerySpec) ([]*incident.IncidentRecord, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "pgstore.Query", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("begin read-only tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is harmless

	wrapped := `SELECT ` + recordColumns + ` FROM (` + spec.SQL + `) AS q LIMIT ` + strconv.Itoa(spec.MaxRows)
	rows, err := tx.Query(ctx, wrapped)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("execute query: %w", err)
	}

	records, err := collectRecords(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("commit: %w", err)
	}
	return records, nil
}

// Sample returns the limit highest-severity documents, limit clamped.
func (s *Store) Sample(ctx context.Context, limit int) ([]*incident.IncidentRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.Sample", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	limit = incident.ClampSampleLimit(limit)
	query := `SELECT ` + recordColumns + ` FROM incidents
		WHERE document_type = $1 ORDER BY severity_level DESC LIMIT $2`

	rows, err := s.pool.Query(ctx, query, incident.DocumentType, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("sample incidents: %w", err)
	}
	return collectRecords(rows)
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func marshalDocFields(rec *incident.IncidentRecord) (tactics, techniques, entities, alerts, analysis []byte, err error) {
	if tactics, err = json.Marshal(sliceOrEmpty(rec.Tactics)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal tactics: %w", err)
	}
	if techniques, err = json.Marshal(sliceOrEmpty(rec.Techniques)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal techniques: %w", err)
	}
	if entities, err = json.Marshal(rawOrEmpty(rec.Entities)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal entities: %w", err)
	}
	if alerts, err = json.Marshal(rawOrEmpty(rec.Alerts)); err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("marshal alerts: %w", err)
	}
	if rec.Analysis != nil {
		if analysis, err = json.Marshal(rec.Analysis); err != nil {
			return nil, nil, nil, nil, nil, fmt.Errorf("marshal analysis: %w", err)
		}
	}
	return tactics, techniques, entities, alerts, analysis, nil
}

func sliceOrEmpty(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

func rawOrEmpty(rs []json.RawMessage) []json.RawMessage {
	if rs == nil {
		return []json.RawMessage{}
	}
	return rs
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func collectRecords(rows pgx.Rows) ([]*incident.IncidentRecord, error) {
	defer rows.Close()

	var out []*incident.IncidentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// scanRecord scans one row into an IncidentRecord. Returns (nil, nil) when
// no row is found.
func scanRecord(row pgx.Row) (*incident.IncidentRecord, error) {
	var (
		rec        incident.IncidentRecord
		status     string
		tactics    []byte
		techniques []byte
		entities   []byte
		alerts     []byte
		analysis   []byte
		rawPayload []byte
		updated    *time.Time
	)

	err := row.Scan(
		&rec.ID, &rec.DocumentType, &rec.IncidentID, &rec.Title, &rec.Description,
		&rec.Severity, &rec.SeverityLevel, &rec.Status, &rec.CreatedTime, &rec.LastModifiedTime,
		&tactics, &techniques, &entities, &alerts, &analysis,
		&status, &rec.ActionPlanNotes, &updated, &rec.ProcessedTime, &rawPayload, &rec.Revision,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}

	rec.ActionPlanStatus = incident.ActionPlanStatus(status)
	if updated != nil {
		rec.ActionPlanUpdated = *updated
	}
	rec.RawPayload = json.RawMessage(rawPayload)

	if err := json.Unmarshal(tactics, &rec.Tactics); err != nil {
		return nil, fmt.Errorf("unmarshal tactics: %w", err)
	}
	if err := json.Unmarshal(techniques, &rec.Techniques); err != nil {
		return nil, fmt.Errorf("unmarshal techniques: %w", err)
	}
	if err := json.Unmarshal(entities, &rec.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := json.Unmarshal(alerts, &rec.Alerts); err != nil {
		return nil, fmt.Errorf("unmarshal alerts: %w", err)
	}
	if len(analysis) > 0 {
		rec.Analysis = &incident.ActionPlan{}
		if err := json.Unmarshal(analysis, rec.Analysis); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
	}
	return &rec, nil
}
