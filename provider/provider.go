// Package provider abstracts the language model behind the assistant.
// Handlers and the dialogue manager depend only on the Provider interface;
// the Anthropic client and the stub are interchangeable implementations.
package provider

import (
	"context"
	"encoding/json"

	"github.com/balncd/assist/core"
)

// Schema describes a structured-output contract. When a Request carries a
// Schema, the provider must return the structured payload matching it.
type Schema struct {
	// Name identifies the output shape (used as the tool name on the wire).
	Name string

	// Description tells the model what the structured output represents.
	Description string

	// Properties is a JSON Schema properties map; build it with the
	// helpers in schema.go.
	Properties map[string]interface{}

	// Required lists the property names the model must fill.
	Required []string
}

// Request is one completion request.
type Request struct {
	// System is the system prompt.
	System string

	// History contains prior conversation messages, oldest first.
	History []core.Message

	// UserMessage is the current user message.
	UserMessage string

	// Schema, when non-nil, forces a structured response.
	Schema *Schema

	// MaxTokens caps the response length. Zero means the provider default.
	MaxTokens int64
}

// Result is a completion result. Text is always the conversational reply
// (may be empty for pure structured calls); Structured is set only when the
// request carried a Schema.
type Result struct {
	Text       string
	Structured json.RawMessage
}

// Provider generates completions.
type Provider interface {
	Complete(ctx context.Context, req *Request) (*Result, error)
}
