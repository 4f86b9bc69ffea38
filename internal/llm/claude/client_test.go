package claude

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNew(t *testing.T) {
	t.Parallel()

	c := New("test-key", "claude-sonnet-4-20250514")
	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.model != "claude-sonnet-4-20250514" {
		t.Errorf("model = %q", c.model)
	}
}

func TestFromSDKMessage_SingleTextBlock(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: `{"risk_level":"High"}`},
		},
		Usage: anthropic.Usage{InputTokens: 120, OutputTokens: 40},
	}

	got := fromSDKMessage(msg)

	if got.Text != `{"risk_level":"High"}` {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Usage.InputTokens != 120 || got.Usage.OutputTokens != 40 {
		t.Errorf("Usage = %+v, want 120/40", got.Usage)
	}
}

func TestFromSDKMessage_ConcatenatesTextBlocks(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "text", Text: "SELECT * FROM incidents "},
			{Type: "text", Text: "WHERE document_type = 'security_incident'"},
		},
	}

	got := fromSDKMessage(msg)

	want := "SELECT * FROM incidents WHERE document_type = 'security_incident'"
	if got.Text != want {
		t.Errorf("Text = %q, want %q", got.Text, want)
	}
}

func TestFromSDKMessage_SkipsNonTextBlocks(t *testing.T) {
	t.Parallel()

	msg := &anthropic.Message{
		Content: []anthropic.ContentBlockUnion{
			{Type: "thinking", Text: ""},
			{Type: "text", Text: "answer"},
		},
	}

	got := fromSDKMessage(msg)

	if got.Text != "answer" {
		t.Errorf("Text = %q, want only text blocks", got.Text)
	}
}

func TestFromSDKMessage_Empty(t *testing.T) {
	t.Parallel()

	got := fromSDKMessage(&anthropic.Message{})

	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
	if got.Usage.InputTokens != 0 || got.Usage.OutputTokens != 0 {
		t.Errorf("Usage = %+v, want zero", got.Usage)
	}
}
