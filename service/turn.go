package service

import (
	"encoding/json"
	"net/http"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/dialogue"
)

// TurnRequest is the body of POST /v1/turn. SessionID is optional; a new
// session is created when it is empty or unknown.
type TurnRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Message   string `json:"message"`
}

// TurnResponse is the reply for one processed turn.
type TurnResponse struct {
	SessionID    string                 `json:"sessionId"`
	Reply        string                 `json:"reply"`
	Workspace    *core.WorkspacePayload `json:"workspace,omitempty"`
	Defaulted    []string               `json:"defaulted,omitempty"`
	AwaitingSlot string                 `json:"awaitingSlot,omitempty"`
}

func (s *Service) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		Error(w, http.StatusBadRequest, "userId and message are required")
		return
	}

	session := s.sessions.GetOrCreate(req.SessionID, req.UserID)
	turn, err := session.ProcessTurn(r.Context(), s.manager, req.Message)
	if err != nil {
		s.logger.Error("turn failed", "session", session.ID, "user", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process turn")
		return
	}

	JSON(w, http.StatusOK, turnResponse(session.ID, turn))
}

func turnResponse(sessionID string, turn *dialogue.Turn) TurnResponse {
	resp := TurnResponse{
		SessionID: sessionID,
		Reply:     turn.Reply,
		Workspace: turn.Workspace,
		Defaulted: turn.Defaulted,
	}
	if slot, _, awaiting := turn.Context.Continuation.Awaiting(); awaiting {
		resp.AwaitingSlot = string(slot)
	}
	return resp
}
