package service

import (
	"encoding/json"
	"net/http"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/prefs"
)

// preferencesWriteRequest is the body of POST /v1/preferences. Omitted
// fields are left untouched in the stored record.
type preferencesWriteRequest struct {
	UserID       string `json:"userId"`
	State        string `json:"state,omitempty"`
	FilingStatus string `json:"filingStatus,omitempty"`
}

func (s *Service) handlePreferencesWrite(w http.ResponseWriter, r *http.Request) {
	var req preferencesWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	err := s.prefs.SavePreferences(r.Context(), req.UserID, prefs.TaxPreference{
		State:        req.State,
		FilingStatus: core.FilingStatus(req.FilingStatus),
	})
	if err != nil {
		s.logger.Error("save preferences failed", "user", req.UserID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to save preferences")
		return
	}
	JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Service) handlePreferencesRead(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	pref, err := s.prefs.GetPreferences(r.Context(), userID)
	if err != nil {
		s.logger.Error("get preferences failed", "user", userID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to read preferences")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"preferences": pref})
}
