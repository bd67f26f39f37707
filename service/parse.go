package service

import (
	"encoding/json"
	"net/http"

	"github.com/balncd/assist/dialogue"
	"github.com/balncd/assist/extract"
)

// parseEntityRequest is the body of POST /v1/parse-entity.
type parseEntityRequest struct {
	Text       string `json:"text"`
	EntityType string `json:"entityType"` // state | filingStatus | quarter
}

// parseEntityResponse reports the parsed value and which path produced it.
// Value is empty when nothing could be parsed.
type parseEntityResponse struct {
	Value  string `json:"value"`
	Source string `json:"source,omitempty"` // rules | provider
}

func (s *Service) handleParseEntity(w http.ResponseWriter, r *http.Request) {
	var req parseEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	var resp parseEntityResponse
	switch req.EntityType {
	case "state":
		if states := extract.States(req.Text); len(states) > 0 {
			resp = parseEntityResponse{Value: states[0], Source: "rules"}
		} else if state := dialogue.ResolveState(r.Context(), s.provider, req.Text); state != "" {
			resp = parseEntityResponse{Value: state, Source: "provider"}
		}

	case "filingStatus":
		if statuses := extract.FilingStatuses(req.Text); len(statuses) > 0 {
			resp = parseEntityResponse{Value: string(statuses[0]), Source: "rules"}
		} else if status := dialogue.ResolveFilingStatus(r.Context(), s.provider, req.Text); status != "" {
			resp = parseEntityResponse{Value: string(status), Source: "provider"}
		}

	case "quarter":
		// Quarters are rules-only; there is no useful provider fallback.
		if quarters := extract.Quarters(req.Text); len(quarters) > 0 {
			resp = parseEntityResponse{Value: string(quarters[0]), Source: "rules"}
		}

	default:
		Error(w, http.StatusBadRequest, "unknown entity type")
		return
	}

	JSON(w, http.StatusOK, resp)
}
