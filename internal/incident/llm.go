package incident

import "context"

// Provider is the interface for any generative model backend.
type Provider interface {
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CompletionRequest is a single-turn request to the model provider.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion is the provider's response text plus token accounting.
type Completion struct {
	Text  string
	Usage Usage
}

// Usage holds token usage reported by the provider.
type Usage struct {
	InputTokens  int
	OutputTokens int
}
