package service

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/prefs"
)

// memoryWriteRequest is the body of POST /v1/memory. Type selects which
// record kind Data holds.
type memoryWriteRequest struct {
	UserID string          `json:"userId"`
	Type   string          `json:"type"`
	Data   json.RawMessage `json:"data"`
}

type conversationData struct {
	Messages []core.Message `json:"messages"`
	Context  core.Snapshot  `json:"context"`
}

type factData struct {
	Category string `json:"category"`
	Key      string `json:"key"`
	Value    any    `json:"value"`
}

func (s *Service) handleMemoryWrite(w http.ResponseWriter, r *http.Request) {
	var req memoryWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	switch req.Type {
	case "conversation":
		var data conversationData
		if err := json.Unmarshal(req.Data, &data); err != nil || len(data.Messages) == 0 {
			Error(w, http.StatusBadRequest, "conversation requires messages")
			return
		}
		id, err := s.memory.StoreConversation(r.Context(), req.UserID, data.Messages, data.Context)
		if err != nil {
			s.logger.Error("store conversation failed", "user", req.UserID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to store conversation")
			return
		}
		JSON(w, http.StatusOK, map[string]string{"id": id})

	case "fact":
		var data factData
		if err := json.Unmarshal(req.Data, &data); err != nil || data.Category == "" || data.Key == "" {
			Error(w, http.StatusBadRequest, "fact requires category and key")
			return
		}
		if err := s.prefs.StoreFact(r.Context(), req.UserID, data.Category, data.Key, data.Value); err != nil {
			s.logger.Error("store fact failed", "user", req.UserID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to store fact")
			return
		}
		JSON(w, http.StatusOK, map[string]bool{"success": true})

	case "tax_preferences":
		var data prefs.TaxPreference
		if err := json.Unmarshal(req.Data, &data); err != nil {
			Error(w, http.StatusBadRequest, "invalid tax preferences")
			return
		}
		if err := s.prefs.SavePreferences(r.Context(), req.UserID, data); err != nil {
			s.logger.Error("save preferences failed", "user", req.UserID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to save preferences")
			return
		}
		JSON(w, http.StatusOK, map[string]bool{"success": true})

	default:
		Error(w, http.StatusBadRequest, "unknown memory type")
	}
}

// similarConversation is one retrieval hit in the GET /v1/memory response.
type similarConversation struct {
	ID         string         `json:"id"`
	Messages   []core.Message `json:"messages"`
	Context    core.Snapshot  `json:"context"`
	Similarity float64        `json:"similarity"`
}

func (s *Service) handleMemoryRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	switch r.URL.Query().Get("type") {
	case "similar_conversations":
		query := r.URL.Query().Get("query")
		if query == "" {
			Error(w, http.StatusBadRequest, "query is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		matches, err := s.memory.FindSimilar(r.Context(), userID, query, limit)
		if err != nil {
			s.logger.Error("find similar failed", "user", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to search conversations")
			return
		}
		out := make([]similarConversation, 0, len(matches))
		for _, m := range matches {
			out = append(out, similarConversation{
				ID:         m.Conversation.ID,
				Messages:   m.Conversation.Messages,
				Context:    m.Conversation.Context,
				Similarity: m.Similarity,
			})
		}
		JSON(w, http.StatusOK, map[string]any{"conversations": out})

	case "fact":
		category := r.URL.Query().Get("category")
		key := r.URL.Query().Get("key")
		if category == "" || key == "" {
			Error(w, http.StatusBadRequest, "category and key are required")
			return
		}
		value, err := s.prefs.GetFact(r.Context(), userID, category, key)
		if err != nil {
			s.logger.Error("get fact failed", "user", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to read fact")
			return
		}
		JSON(w, http.StatusOK, map[string]any{"value": value})

	case "tax_preferences":
		pref, err := s.prefs.GetPreferences(r.Context(), userID)
		if err != nil {
			s.logger.Error("get preferences failed", "user", userID, "error", err)
			Error(w, http.StatusInternalServerError, "failed to read preferences")
			return
		}
		JSON(w, http.StatusOK, map[string]any{"preferences": pref})

	default:
		Error(w, http.StatusBadRequest, "unknown memory type")
	}
}
