package service

import (
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// chatMessage is one inbound websocket frame.
type chatMessage struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// handleChat runs a chat session over a websocket. Each connection owns one
// session; frames are read and processed one at a time, which gives the
// strictly-sequential turn guarantee for free on this path.
func (s *Service) handleChat(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	session := s.sessions.GetOrCreate("", userID)
	defer s.sessions.Drop(session.ID)

	s.logger.Info("chat session started", "session", session.ID, "user", userID)

	for {
		var msg chatMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("websocket read failed", "session", session.ID, "error", err)
			}
			return
		}
		if msg.Message == "" {
			continue
		}

		turn, err := session.ProcessTurn(r.Context(), s.manager, msg.Message)
		if err != nil {
			s.logger.Error("turn failed", "session", session.ID, "error", err)
			if writeErr := conn.WriteJSON(map[string]string{
				"error": "failed to process turn",
			}); writeErr != nil {
				return
			}
			continue
		}

		if err := conn.WriteJSON(turnResponse(session.ID, turn)); err != nil {
			s.logger.Error("websocket write failed", "session", session.ID, "error", err)
			return
		}
	}
}
