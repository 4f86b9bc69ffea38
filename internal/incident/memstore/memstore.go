// Package memstore provides an in-memory implementation of incident.Store.
// Suitable for dev/testing. Query supports the subset of SQL the translator
// is instructed to produce: SELECT * FROM incidents with a conjunction of
// equality and severity_level comparisons, optional ORDER BY and LIMIT.
package memstore

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

// Store holds incident documents in memory.
type Store struct {
	mu     sync.RWMutex
	byID   map[string]*incident.IncidentRecord // document id -> record
	byKey  map[string]string                   // incident id -> document id
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		byID:  make(map[string]*incident.IncidentRecord),
		byKey: make(map[string]string),
	}
}

// Upsert writes or overwrites the document keyed by rec.IncidentID.
func (s *Store) Upsert(_ context.Context, rec *incident.IncidentRecord) (incident.DocumentRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *rec
	if docID, ok := s.byKey[rec.IncidentID]; ok {
		prev := s.byID[docID]
		cp.ID = prev.ID
		cp.CreatedTime = prev.CreatedTime
		cp.Revision = prev.Revision + 1
	} else {
		cp.ID = ulid.Make().String()
		cp.Revision = 1
	}

	s.byID[cp.ID] = &cp
	s.byKey[cp.IncidentID] = cp.ID
	return incident.DocumentRef{DocumentID: cp.ID, IncidentID: cp.IncidentID}, nil
}

// Get retrieves a document by id. Returns a copy.
func (s *Store) Get(_ context.Context, documentID string) (*incident.IncidentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[documentID]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

// UpdateActionStatus performs the guarded read-modify-write under the lock,
// so conflicts cannot occur here; the revision still advances to match
// pgstore semantics.
func (s *Store) UpdateActionStatus(_ context.Context, documentID string, status incident.ActionPlanStatus, notes string) (*incident.IncidentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[documentID]
	if !ok {
		return nil, incident.ErrNotFound
	}

	rec.ActionPlanStatus = status
	rec.ActionPlanNotes = notes
	rec.ActionPlanUpdated = time.Now().UTC()
	rec.Revision++

	cp := *rec
	return &cp, nil
}

// Query evaluates a validated QuerySpec against the in-memory documents.
func (s *Store) Query(_ context.Context, spec incident.QuerySpec) ([]*incident.IncidentRecord, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	conds, err := parseConditions(spec.SQL)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*incident.IncidentRecord
	for _, rec := range s.byID {
		if matchAll(rec, conds) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SeverityLevel > out[j].SeverityLevel
	})
	if len(out) > spec.MaxRows {
		out = out[:spec.MaxRows]
	}
	return out, nil
}

// Sample returns the limit highest-severity documents.
func (s *Store) Sample(_ context.Context, limit int) ([]*incident.IncidentRecord, error) {
	limit = incident.ClampSampleLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*incident.IncidentRecord, 0, len(s.byID))
	for _, rec := range s.byID {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SeverityLevel > out[j].SeverityLevel
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *Store) Ping(context.Context) error { return nil }

// condition is one parsed WHERE term: column op value.
type condition struct {
	column string
	op     string
	str    string
	num    int
	isNum  bool
}

var condRe = regexp.MustCompile(`^([a-z_]+|analysis->>'risk_level')\s*(=|>=|<=|>|<|!=)\s*(?:'([^']*)'|(\d+))$`)

// parseConditions extracts the conjunctive WHERE terms from the translated
// SQL. Anything outside the supported subset is an error, never a guess.
func parseConditions(sql string) ([]condition, error) {
	lower := strings.ToLower(sql)

	rest := ""
	if idx := strings.Index(lower, " where "); idx >= 0 {
		rest = strings.TrimSpace(sql[idx+len(" where "):])
	} else {
		return nil, fmt.Errorf("memstore: query has no WHERE clause")
	}

	// Trim trailing ORDER BY / LIMIT clauses.
	lowerRest := strings.ToLower(rest)
	for _, marker := range []string{" order by ", " limit "} {
		if idx := strings.Index(lowerRest, marker); idx >= 0 {
			rest = strings.TrimSpace(rest[:idx])
			lowerRest = strings.ToLower(rest)
		}
	}

	var conds []condition
	for _, term := range regexp.MustCompile(`(?i)\s+and\s+`).Split(rest, -1) {
		m := condRe.FindStringSubmatch(strings.TrimSpace(term))
		if m == nil {
			return nil, fmt.Errorf("memstore: unsupported query term %q", term)
		}
		c := condition{column: strings.ToLower(m[1]), op: m[2], str: m[3]}
		if m[4] != "" {
			n, err := strconv.Atoi(m[4])
			if err != nil {
				return nil, fmt.Errorf("memstore: bad numeric term %q", term)
			}
			c.num = n
			c.isNum = true
		}
		conds = append(conds, c)
	}
	return conds, nil
}

func matchAll(rec *incident.IncidentRecord, conds []condition) bool {
	for _, c := range conds {
		if !match(rec, c) {
			return false
		}
	}
	return true
}

func match(rec *incident.IncidentRecord, c condition) bool {
	if c.isNum {
		if c.column != "severity_level" {
			return false
		}
		return compareInt(rec.SeverityLevel, c.op, c.num)
	}

	var v string
	switch c.column {
	case "document_type":
		v = rec.DocumentType
	case "incident_id":
		v = rec.IncidentID
	case "severity":
		v = rec.Severity
	case "status":
		v = rec.Status
	case "action_plan_status":
		v = string(rec.ActionPlanStatus)
	case "analysis->>'risk_level'":
		if rec.Analysis != nil {
			v = rec.Analysis.RiskLevel
		}
	default:
		return false
	}

	switch c.op {
	case "=":
		return v == c.str
	case "!=":
		return v != c.str
	}
	return false
}

func compareInt(v int, op string, n int) bool {
	switch op {
	case "=":
		return v == n
	case "!=":
		return v != n
	case ">":
		return v > n
	case ">=":
		return v >= n
	case "<":
		return v < n
	case "<=":
		return v <= n
	}
	return false
}
