package incident

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultQueryRows caps how many records a translated query may read from
// the store. The generated SQL is never trusted to bound itself.
const DefaultQueryRows = 200

// ErrUnsafeQuery marks a translated query that failed the safety checks.
var ErrUnsafeQuery = errors.New("incident: unsafe query rejected")

// QuerySpec is the safety-checked representation of a translated
// natural-language question: one read-only SELECT over the incidents table,
// mandatorily filtered on the record-type discriminator.
type QuerySpec struct {
	SQL     string `json:"sql"`
	MaxRows int    `json:"max_rows"`
}

var (
	selectRe = regexp.MustCompile(`(?is)^select\s+\*\s+from\s+incidents\b`)

	// forbiddenRe matches anything that could mutate state or break out of
	// a single read expression.
	forbiddenRe = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|create|truncate|grant|revoke|merge|copy|execute|call|do|set|vacuum|listen|notify)\b`)

	discriminatorRe = regexp.MustCompile(`(?i)document_type\s*=\s*'security_incident'`)
)

// Validate enforces the query safety envelope. A spec failing any check is
// rejected rather than executed.
func (q QuerySpec) Validate() error {
	sql := strings.TrimSpace(q.SQL)
	if sql == "" {
		return fmt.Errorf("%w: empty statement", ErrUnsafeQuery)
	}
	if strings.ContainsAny(sql, ";") {
		return fmt.Errorf("%w: multiple statements", ErrUnsafeQuery)
	}
	if strings.Contains(sql, "--") || strings.Contains(sql, "/*") {
		return fmt.Errorf("%w: comments not allowed", ErrUnsafeQuery)
	}
	if !selectRe.MatchString(sql) {
		return fmt.Errorf("%w: must be a single SELECT * FROM incidents", ErrUnsafeQuery)
	}
	if m := forbiddenRe.FindString(sql); m != "" {
		return fmt.Errorf("%w: forbidden keyword %q", ErrUnsafeQuery, m)
	}
	if !discriminatorRe.MatchString(sql) {
		return fmt.Errorf("%w: missing document_type filter", ErrUnsafeQuery)
	}
	if q.MaxRows < 1 || q.MaxRows > DefaultQueryRows {
		return fmt.Errorf("%w: max_rows %d out of range [1,%d]", ErrUnsafeQuery, q.MaxRows, DefaultQueryRows)
	}
	return nil
}
