package core

import "context"

// WorkspacePayload is structured data a handler attaches to a reply for the
// consumer to visualize (charts, tax breakdowns). The core never interprets
// Data.
type WorkspacePayload struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Data  any    `json:"data"`
}

// HandlerRequest is what a domain handler receives for one routed question.
type HandlerRequest struct {
	UserID   string
	Question string
	Context  Context
	// History is the session dialogue optionally prepended with a slice of a
	// recalled similar conversation.
	History []Message
	// Defaulted names context fields that were filled from defaults rather
	// than the user; handlers must disclose them in their reply payload.
	Defaulted []string
}

// HandlerResult is a domain handler's answer, or its request for a missing
// slot. When RequiredSlot is set the other fields are ignored and the manager
// suspends the turn.
type HandlerResult struct {
	Text         string
	Workspace    *WorkspacePayload
	RequiredSlot Slot
}

// Handler answers questions for one query type. Implementations live outside
// the dialogue core (tax estimation, income analytics); the manager only
// routes to them.
type Handler interface {
	Handle(ctx context.Context, req HandlerRequest) (*HandlerResult, error)
}
