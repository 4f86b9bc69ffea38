// Package claude implements incident.Provider on the Anthropic messages API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/incidentd/internal/incident"
)

// Client sends single-turn completion requests to the Claude API.
type Client struct {
	sdk   anthropic.Client
	model string
}

// New creates a new Claude provider with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		sdk:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		model: model,
	}
}

// Complete sends one system+user turn and returns the concatenated text
// content of the response.
func (c *Client) Complete(ctx context.Context, req *incident.CompletionRequest) (*incident.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude message: %w", err)
	}
	return fromSDKMessage(msg), nil
}

// fromSDKMessage flattens the SDK response into the provider contract.
func fromSDKMessage(msg *anthropic.Message) *incident.Completion {
	out := &incident.Completion{
		Usage: incident.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.Text += block.Text
		}
	}
	return out
}
