// Package service exposes the assistant over HTTP: the turn endpoint, the
// websocket chat, and the memory, preference, and entity-parsing routes.
package service

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/dialogue"
	"github.com/balncd/assist/memory"
	"github.com/balncd/assist/prefs"
	"github.com/balncd/assist/provider"
)

// Service wires the dialogue core to the HTTP surface.
type Service struct {
	manager  *dialogue.Manager
	memory   *memory.Store
	prefs    *prefs.Store
	provider provider.Provider
	sessions *Registry
	logger   *slog.Logger
}

// New creates the service.
func New(manager *dialogue.Manager, mem *memory.Store, pref *prefs.Store, p provider.Provider, logger *slog.Logger) *Service {
	return &Service{
		manager:  manager,
		memory:   mem,
		prefs:    pref,
		provider: p,
		sessions: NewRegistry(func() core.Context { return core.NewContext(time.Now()) }),
		logger:   logger,
	}
}

// Router builds the HTTP routes.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turn", s.handleTurn)
		r.Get("/chat", s.handleChat)
		r.Post("/memory", s.handleMemoryWrite)
		r.Get("/memory", s.handleMemoryRead)
		r.Post("/preferences", s.handlePreferencesWrite)
		r.Get("/preferences", s.handlePreferencesRead)
		r.Post("/parse-entity", s.handleParseEntity)
	})
	return r
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
