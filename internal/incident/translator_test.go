package incident

import (
	"context"
	"errors"
	"strings"
	"testing"
)

const safeSQL = "SELECT * FROM incidents WHERE document_type = 'security_incident' AND severity = 'Critical'"

func TestTranslate_ValidQuery(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&mockProvider{texts: []string{safeSQL}}, nil, 50)

	spec, err := tr.Translate(context.Background(), "show critical incidents")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if spec.SQL != safeSQL {
		t.Errorf("SQL = %q, want %q", spec.SQL, safeSQL)
	}
	if spec.MaxRows != 50 {
		t.Errorf("MaxRows = %d, want 50", spec.MaxRows)
	}
}

func TestTranslate_StripsFencesAndSemicolon(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&mockProvider{texts: []string{"```sql\n" + safeSQL + ";\n```"}}, nil, 0)

	spec, err := tr.Translate(context.Background(), "show critical incidents")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if spec.SQL != safeSQL {
		t.Errorf("SQL = %q, want fences and trailing semicolon stripped", spec.SQL)
	}
}

func TestTranslate_ProviderErrorPropagates(t *testing.T) {
	t.Parallel()

	tr := NewTranslator(&mockProvider{errs: []error{errors.New("overloaded")}}, nil, 10)

	if _, err := tr.Translate(context.Background(), "anything"); err == nil {
		t.Fatal("Translate = nil error, want provider error to propagate")
	}
}

func TestTranslate_UnsafeOutputRejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"mutation", "DELETE FROM incidents WHERE document_type = 'security_incident'"},
		{"missing discriminator", "SELECT * FROM incidents WHERE severity = 'High'"},
		{"prose", "I cannot translate that question."},
		{"stacked", safeSQL + "; DROP TABLE incidents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := NewTranslator(&mockProvider{texts: []string{tt.text}}, nil, 10)
			_, err := tr.Translate(context.Background(), "question")
			if !errors.Is(err, ErrUnsafeQuery) {
				t.Fatalf("Translate error = %v, want ErrUnsafeQuery", err)
			}
		})
	}
}

func TestTranslate_RequestShape(t *testing.T) {
	t.Parallel()

	p := &mockProvider{texts: []string{safeSQL}}
	tr := NewTranslator(p, nil, 25)

	if _, err := tr.Translate(context.Background(), "show critical incidents"); err != nil {
		t.Fatalf("Translate: %v", err)
	}

	req := p.requests[0]
	if req.Temperature != queryTemperature {
		t.Errorf("Temperature = %v, want %v", req.Temperature, queryTemperature)
	}
	if !strings.Contains(req.System, "document_type = 'security_incident'") {
		t.Error("system prompt missing discriminator rule")
	}
	if !strings.Contains(req.Prompt, "show critical incidents") {
		t.Error("prompt missing the question")
	}
}

func TestNewTranslator_MaxRowsClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{0, DefaultQueryRows},
		{-1, DefaultQueryRows},
		{DefaultQueryRows + 1, DefaultQueryRows},
		{1, 1},
		{100, 100},
		{DefaultQueryRows, DefaultQueryRows},
	}
	for _, tt := range tests {
		tr := NewTranslator(&mockProvider{}, nil, tt.in)
		if tr.maxRows != tt.want {
			t.Errorf("NewTranslator maxRows %d = %d, want %d", tt.in, tr.maxRows, tt.want)
		}
	}
}
