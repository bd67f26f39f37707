package provider

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/balncd/assist/core"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// AnthropicProvider generates completions through the Claude API.
type AnthropicProvider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// AnthropicOption configures the provider.
type AnthropicOption func(*AnthropicProvider)

// WithModel overrides the default Claude model.
func WithModel(model string) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.model = model
	}
}

// WithMaxTokens overrides the default response token cap.
func WithMaxTokens(maxTokens int64) AnthropicOption {
	return func(p *AnthropicProvider) {
		p.maxTokens = maxTokens
	}
}

// NewAnthropic creates a provider backed by the given Anthropic client.
func NewAnthropic(client *anthropic.Client, opts ...AnthropicOption) *AnthropicProvider {
	p := &AnthropicProvider{
		client:    client,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Complete sends the request to Claude. When req.Schema is set the call
// forces a single tool matching the schema, so the structured payload comes
// back as that tool's input.
func (p *AnthropicProvider) Complete(ctx context.Context, req *Request) (*Result, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = p.maxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: maxTokens,
		Messages:  buildMessages(req.History, req.UserMessage),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	if req.Schema != nil {
		params.Tools = []anthropic.ToolUnionParam{{
			OfTool: &anthropic.ToolParam{
				Name:        req.Schema.Name,
				Description: anthropic.String(req.Schema.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: req.Schema.Properties,
					Required:   req.Schema.Required,
				},
			},
		}}
		params.ToolChoice = anthropic.ToolChoiceUnionParam{
			OfTool: &anthropic.ToolChoiceToolParam{Name: req.Schema.Name},
		}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude API error: %w", err)
	}

	result := &Result{}
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			result.Text += block.Text
		case "tool_use":
			result.Structured = block.Input
		}
	}

	if req.Schema != nil && len(result.Structured) == 0 {
		return nil, fmt.Errorf("expected structured output %q, got none", req.Schema.Name)
	}
	return result, nil
}

func buildMessages(history []core.Message, userMessage string) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case core.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	if userMessage != "" {
		messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(userMessage)))
	}
	return messages
}
