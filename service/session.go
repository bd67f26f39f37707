package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/dialogue"
)

// historyLimit caps the dialogue history a session keeps in memory. Older
// turns remain reachable through semantic memory.
const historyLimit = 20

// Session is one active conversation. Its mutex makes turns strictly
// sequential: a turn's side effects, including slot-fill replay, complete
// before the next input is interpreted.
type Session struct {
	ID     string
	UserID string

	mu      sync.Mutex
	context core.Context
	history []core.Message
}

// ProcessTurn runs one turn through the manager under the session lock and
// threads the returned context into session state.
func (s *Session) ProcessTurn(ctx context.Context, m *dialogue.Manager, text string) (*dialogue.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, err := m.ProcessTurn(ctx, s.UserID, text, s.context, s.history)
	if err != nil {
		return nil, err
	}

	s.context = turn.Context
	s.history = append(s.history,
		core.Message{Role: core.RoleUser, Content: text},
		core.Message{Role: core.RoleAssistant, Content: turn.Reply},
	)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	return turn, nil
}

// Context returns a copy of the session's current dialogue context.
func (s *Session) Context() core.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.context
}

// Registry tracks active sessions. Different sessions process turns fully
// independently; only same-session turns serialize.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() core.Context
}

// NewRegistry creates an empty session registry. newContext produces the
// initial context for a fresh session.
func NewRegistry(newContext func() core.Context) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		now:      newContext,
	}
}

// GetOrCreate returns the session with the given id, creating it when the id
// is empty or unknown. The returned session's ID is always non-empty.
func (r *Registry) GetOrCreate(sessionID, userID string) *Session {
	if sessionID != "" {
		r.mu.RLock()
		s, ok := r.sessions[sessionID]
		r.mu.RUnlock()
		if ok {
			return s
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sessionID != "" {
		if s, ok := r.sessions[sessionID]; ok {
			return s
		}
	} else {
		sessionID = uuid.New().String()
	}

	s := &Session{
		ID:      sessionID,
		UserID:  userID,
		context: r.now(),
	}
	r.sessions[sessionID] = s
	return s
}

// Drop removes a session from the registry.
func (r *Registry) Drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
}
