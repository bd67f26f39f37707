// Package chromem provides a vector index backed by chromem-go, a pure Go
// embedded vector database. Conversations live in the document store; the
// index holds only ids and embeddings for fast similarity lookup.
package chromem

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/balncd/assist/memory"
)

// Index keeps one chromem collection per user for namespace isolation.
type Index struct {
	db          *chromem.DB
	collections map[string]*chromem.Collection
	mu          sync.RWMutex
}

// New creates an in-memory chromem index.
func New() *Index {
	return &Index{
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
	}
}

func (x *Index) getOrCreateCollection(userID string) (*chromem.Collection, error) {
	x.mu.RLock()
	col, exists := x.collections[userID]
	x.mu.RUnlock()
	if exists {
		return col, nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	// Double-check after acquiring the write lock.
	if col, exists := x.collections[userID]; exists {
		return col, nil
	}

	name := fmt.Sprintf("user_%s", userID)
	col, err := x.db.CreateCollection(
		name,
		nil, // embeddings are provided by the caller
		nil, // default cosine distance
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	x.collections[userID] = col
	return col, nil
}

// Add registers a conversation embedding under the user's collection.
func (x *Index) Add(ctx context.Context, userID, id string, embedding []float32) error {
	col, err := x.getOrCreateCollection(userID)
	if err != nil {
		return err
	}
	err = col.AddDocument(ctx, chromem.Document{
		ID:        id,
		Content:   id, // chromem requires non-empty content
		Embedding: embedding,
	})
	if err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Search returns up to k hits for the user, highest similarity first.
func (x *Index) Search(ctx context.Context, userID string, embedding []float32, k int) ([]memory.IndexHit, error) {
	col, err := x.getOrCreateCollection(userID)
	if err != nil {
		return nil, err
	}

	// chromem requires nResults <= collection size; back off until it fits.
	var results []chromem.Result
	for limit := k; limit >= 1; limit-- {
		results, err = col.QueryEmbedding(ctx, embedding, limit, nil, nil)
		if err == nil {
			break
		}
		if isInsufficientDocsError(err) {
			if limit == 1 {
				log.Printf("[CHROMEM] Collection for user %s is empty", userID)
				return nil, nil
			}
			continue
		}
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.IndexHit, 0, len(results))
	for _, result := range results {
		hits = append(hits, memory.IndexHit{
			ID:         result.ID,
			Similarity: float64(result.Similarity),
		})
	}
	return hits, nil
}

func isInsufficientDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults must be") || strings.Contains(msg, "number of documents")
}
