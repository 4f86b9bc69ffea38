package cfg

import (
	"flag"
	"strings"
	"testing"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

func newConfig(t *testing.T, args ...string) *Config {
	t.Helper()
	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return &c
}

func validConfig(t *testing.T, extra ...string) *Config {
	t.Helper()
	args := append([]string{"-claude-api-key", "test-key"}, extra...)
	return newConfig(t, args...)
}

func TestRegisterFlags_Defaults(t *testing.T) {
	t.Parallel()

	c := newConfig(t)

	if c.DrainSeconds != 60 {
		t.Errorf("DrainSeconds = %d, want 60", c.DrainSeconds)
	}
	if c.ShutdownBudgetSeconds != 90 {
		t.Errorf("ShutdownBudgetSeconds = %d, want 90", c.ShutdownBudgetSeconds)
	}
	if c.APIPort != 8080 {
		t.Errorf("APIPort = %d, want 8080", c.APIPort)
	}
	if c.ClaudeModel == "" {
		t.Error("ClaudeModel default is empty")
	}
	if c.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty (in-memory default)", c.DatabaseURL)
	}
	if c.QueryMaxRows != incident.DefaultQueryRows {
		t.Errorf("QueryMaxRows = %d, want %d", c.QueryMaxRows, incident.DefaultQueryRows)
	}
	if c.SeedSample {
		t.Error("SeedSample default = true, want false")
	}
}

func TestValidate_OK(t *testing.T) {
	t.Parallel()

	if err := validConfig(t).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantSub string
	}{
		{"missing api key", nil, "CLAUDE_API_KEY is required"},
		{"drain too high", []string{"-claude-api-key", "k", "-drain-seconds", "301", "-shutdown-budget-seconds", "302"}, "DRAIN_SECONDS"},
		{"drain zero", []string{"-claude-api-key", "k", "-drain-seconds", "0"}, "DRAIN_SECONDS"},
		{"budget not above drain", []string{"-claude-api-key", "k", "-drain-seconds", "90", "-shutdown-budget-seconds", "90"}, "must be greater than"},
		{"bad port", []string{"-claude-api-key", "k", "-http-port", "70000"}, "HTTP_PORT"},
		{"empty model", []string{"-claude-api-key", "k", "-claude-model", ""}, "CLAUDE_MODEL"},
		{"query rows zero", []string{"-claude-api-key", "k", "-query-max-rows", "0"}, "QUERY_MAX_ROWS"},
		{"query rows over cap", []string{"-claude-api-key", "k", "-query-max-rows", "500"}, "QUERY_MAX_ROWS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c := newConfig(t, tt.args...)
			err := c.Validate()
			if err == nil {
				t.Fatal("Validate = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Validate error = %q, want substring %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestValidate_JoinsMultipleErrors(t *testing.T) {
	t.Parallel()

	c := newConfig(t, "-http-port", "0", "-query-max-rows", "-1")
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate = nil, want error")
	}
	for _, sub := range []string{"CLAUDE_API_KEY", "HTTP_PORT", "QUERY_MAX_ROWS"} {
		if !strings.Contains(err.Error(), sub) {
			t.Errorf("joined error missing %q: %q", sub, err.Error())
		}
	}
}
