package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
	order       map[string][]string // insertion order per collection
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		order:       make(map[string][]string),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, nil
	}
	return clone(doc), nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error {
	// Round-trip through JSON so stored documents look exactly like what a
	// durable backend would return (float64 numbers, plain maps).
	normalized, err := normalize(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}
	if existing, ok := col[id]; ok {
		if merge {
			col[id] = mergeMaps(existing, normalized)
		} else {
			col[id] = normalized
		}
		return nil
	}
	col[id] = normalized
	s.order[collection] = append(s.order[collection], id)
	return nil
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.New().String()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, preds []Predicate) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var docs []Document
	for _, id := range s.order[collection] {
		doc := s.collections[collection][id]
		if matches(doc, preds) {
			docs = append(docs, Document{ID: id, Data: clone(doc)})
		}
	}
	return docs, nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections[collection], id)
	ids := s.order[collection]
	for i, got := range ids {
		if got == id {
			s.order[collection] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func normalize(data map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

func clone(doc map[string]any) map[string]any {
	out, err := normalize(doc)
	if err != nil {
		// Stored documents always round-trip; this cannot happen for data
		// that made it past Set.
		return doc
	}
	return out
}
