package handlers

import (
	"context"
	"fmt"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/provider"
)

const generalSystemPrompt = `You are a helpful personal-finance assistant for freelancers and the self-employed.

GUIDELINES:
- Be conversational and concise
- Answer general finance questions plainly; do not invent account data
- When a question needs the user's own numbers, say what information would help`

// General answers questions that are neither tax nor income queries. It
// passes the memory-enriched history straight to the completion provider.
type General struct {
	provider provider.Provider
}

// NewGeneral creates the general handler.
func NewGeneral(p provider.Provider) *General {
	return &General{provider: p}
}

// Handle completes the question conversationally.
func (h *General) Handle(ctx context.Context, req core.HandlerRequest) (*core.HandlerResult, error) {
	result, err := h.provider.Complete(ctx, &provider.Request{
		System:      generalSystemPrompt,
		History:     req.History,
		UserMessage: req.Question,
	})
	if err != nil {
		return nil, fmt.Errorf("general completion: %w", err)
	}
	return &core.HandlerResult{Text: result.Text}, nil
}
