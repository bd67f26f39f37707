// Package prefs stores durable per-user preferences and long-lived facts on
// top of the document store, with a small read cache in front.
package prefs

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/docstore"
)

const (
	prefsCollection    = "user_preferences"
	profilesCollection = "user_profiles"
)

// TaxPreference is the per-user tax preference record. Writes are merged:
// a save only overwrites the fields it supplies.
type TaxPreference struct {
	State        string            `json:"state,omitempty"`
	FilingStatus core.FilingStatus `json:"filingStatus,omitempty"`
}

// Store persists preferences and user facts. Writes are durable when the
// call returns; each write is independent, with no cross-write transaction.
type Store struct {
	docs  docstore.Store
	cache *ristretto.Cache
}

// New creates a preference store over docs.
func New(docs docstore.Store) (*Store, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create preference cache: %w", err)
	}
	return &Store{docs: docs, cache: cache}, nil
}

// SavePreferences shallow-merges partial into the user's tax preference
// record. Empty fields in partial are left untouched in the stored record.
func (s *Store) SavePreferences(ctx context.Context, userID string, partial TaxPreference) error {
	if userID == "" {
		return fmt.Errorf("save preferences: missing user id")
	}

	tax := make(map[string]any)
	if partial.State != "" {
		tax["state"] = partial.State
	}
	if partial.FilingStatus != "" {
		tax["filingStatus"] = string(partial.FilingStatus)
	}
	if len(tax) == 0 {
		return nil
	}

	data := map[string]any{
		"tax":       tax,
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.docs.Set(ctx, prefsCollection, userID, data, true); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	s.cache.Del(prefsKey(userID))
	return nil
}

// GetPreferences returns the user's tax preferences, or nil when none are
// stored.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*TaxPreference, error) {
	if userID == "" {
		return nil, nil
	}
	if v, ok := s.cache.Get(prefsKey(userID)); ok {
		pref := v.(TaxPreference)
		return &pref, nil
	}

	doc, err := s.docs.Get(ctx, prefsCollection, userID)
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	tax, ok := doc["tax"].(map[string]any)
	if !ok {
		return nil, nil
	}

	pref := TaxPreference{}
	if state, ok := tax["state"].(string); ok {
		pref.State = state
	}
	if fs, ok := tax["filingStatus"].(string); ok {
		pref.FilingStatus = core.FilingStatus(fs)
	}
	s.cache.Set(prefsKey(userID), pref, 1)
	return &pref, nil
}

// StoreFact records a durable fact under (category, key) in the user's
// profile document. Facts are last-write-wins.
func (s *Store) StoreFact(ctx context.Context, userID, category, key string, value any) error {
	if userID == "" || category == "" || key == "" {
		return fmt.Errorf("store fact: missing user id, category, or key")
	}
	data := map[string]any{
		"facts": map[string]any{
			category: map[string]any{key: value},
		},
		"updatedAt": time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.docs.Set(ctx, profilesCollection, userID, data, true); err != nil {
		return fmt.Errorf("store fact: %w", err)
	}
	return nil
}

// GetFact returns the fact stored under (category, key), or nil when absent.
func (s *Store) GetFact(ctx context.Context, userID, category, key string) (any, error) {
	profile, err := s.docs.Get(ctx, profilesCollection, userID)
	if err != nil {
		return nil, fmt.Errorf("get fact: %w", err)
	}
	if profile == nil {
		return nil, nil
	}
	facts, ok := profile["facts"].(map[string]any)
	if !ok {
		return nil, nil
	}
	cat, ok := facts[category].(map[string]any)
	if !ok {
		return nil, nil
	}
	return cat[key], nil
}

func prefsKey(userID string) string {
	return "prefs:" + userID
}
