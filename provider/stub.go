package provider

import (
	"context"
	"encoding/json"
	"sync"
)

// StubResponse is one canned response for the stub provider.
type StubResponse struct {
	Text       string
	Structured json.RawMessage
}

// Stub is a Provider for tests and offline development. It replays canned
// responses in order and records every request it receives.
type Stub struct {
	mu        sync.Mutex
	responses []StubResponse
	requests  []*Request

	// Err, when set, is returned from every Complete call.
	Err error
}

// NewStub creates a stub provider with the given canned responses.
func NewStub(responses ...StubResponse) *Stub {
	return &Stub{responses: responses}
}

// Complete records the request and returns the next canned response. When
// the canned responses run out it returns an empty result; a request with a
// schema gets an empty JSON object so callers can still unmarshal.
func (s *Stub) Complete(ctx context.Context, req *Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, req)
	if s.Err != nil {
		return nil, s.Err
	}

	if len(s.responses) == 0 {
		result := &Result{}
		if req.Schema != nil {
			result.Structured = json.RawMessage(`{}`)
		}
		return result, nil
	}

	resp := s.responses[0]
	s.responses = s.responses[1:]
	return &Result{Text: resp.Text, Structured: resp.Structured}, nil
}

// Requests returns a copy of the recorded requests.
func (s *Stub) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.requests))
	copy(out, s.requests)
	return out
}
