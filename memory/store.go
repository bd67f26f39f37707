package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/docstore"
)

const conversationCollection = "conversation_memory"

// Config holds Store configuration.
type Config struct {
	// MinSimilarity is the threshold for usable matches [0.0-1.0].
	// Default: UsableSimilarity. Matches below it are still returned;
	// callers decide whether to use them.
	MinSimilarity float64

	// DefaultLimit is the k used when FindSimilar is called with k <= 0.
	DefaultLimit int
}

// DefaultConfig returns the standard configuration.
var DefaultConfig = &Config{
	MinSimilarity: UsableSimilarity,
	DefaultLimit:  3,
}

// Store persists conversations with embeddings and retrieves them by
// semantic similarity.
type Store struct {
	docs     docstore.Store
	embedder Embedder
	index    Index // optional
	config   *Config
}

// Option configures the store.
type Option func(*Store)

// WithIndex attaches a vector index; FindSimilar consults it instead of
// scanning the document store.
func WithIndex(idx Index) Option {
	return func(s *Store) {
		s.index = idx
	}
}

// NewStore creates a conversation memory store.
func NewStore(docs docstore.Store, embedder Embedder, config *Config, opts ...Option) *Store {
	if config == nil {
		config = DefaultConfig
	}
	s := &Store{docs: docs, embedder: embedder, config: config}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MinSimilarity returns the configured usable-match threshold.
func (s *Store) MinSimilarity() float64 {
	return s.config.MinSimilarity
}

// StoreConversation embeds the transcript and persists the record. On
// embedding failure nothing is persisted and an empty id is returned with
// the error; callers treat this as soft and continue without the record.
func (s *Store) StoreConversation(ctx context.Context, userID string, messages []core.Message, snapshot core.Snapshot) (string, error) {
	if userID == "" || len(messages) == 0 {
		return "", nil
	}

	embedding, err := s.embedder.Embed(ctx, Transcript(messages))
	if err != nil {
		// Never persist a record with a partial or missing embedding.
		return "", fmt.Errorf("embed transcript: %w", err)
	}

	conv := Conversation{
		UserID:    userID,
		Messages:  messages,
		Context:   snapshot,
		Embedding: embedding,
		Timestamp: time.Now(),
	}
	id, err := s.docs.Add(ctx, conversationCollection, conv.toDoc())
	if err != nil {
		return "", fmt.Errorf("store conversation: %w", err)
	}

	if s.index != nil {
		if err := s.index.Add(ctx, userID, id, embedding); err != nil {
			// The record is durable; the index is an accelerator. A miss
			// here only means the linear path would have found it.
			log.Printf("[MEMORY] Failed to index conversation %s: %v", id, err)
		}
	}

	log.Printf("[MEMORY] Stored conversation %s for user %s (%d messages)", id, userID, len(messages))
	return id, nil
}

// FindSimilar embeds queryText and returns up to k stored conversations for
// the user, highest similarity first. A user with no stored conversations
// yields an empty result, not an error.
func (s *Store) FindSimilar(ctx context.Context, userID, queryText string, k int) ([]Match, error) {
	if userID == "" || queryText == "" {
		return nil, nil
	}
	if k <= 0 {
		k = s.config.DefaultLimit
	}

	queryEmbedding, err := s.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if s.index != nil {
		return s.findViaIndex(ctx, userID, queryEmbedding, k)
	}
	return s.scan(ctx, userID, queryEmbedding, k)
}

// scan is the default linear pass over the user's conversations.
func (s *Store) scan(ctx context.Context, userID string, queryEmbedding []float32, k int) ([]Match, error) {
	docs, err := s.docs.Query(ctx, conversationCollection, []docstore.Predicate{
		docstore.Eq("userId", userID),
	})
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}

	matches := make([]Match, 0, len(docs))
	for _, doc := range docs {
		conv := conversationFromDoc(doc.ID, doc.Data)
		if len(conv.Embedding) == 0 {
			continue
		}
		matches = append(matches, Match{
			Conversation: conv,
			Similarity:   Cosine(queryEmbedding, conv.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	log.Printf("[MEMORY] Retrieved %d of %d conversations for user %s", len(matches), len(docs), userID)
	return matches, nil
}

func (s *Store) findViaIndex(ctx context.Context, userID string, queryEmbedding []float32, k int) ([]Match, error) {
	hits, err := s.index.Search(ctx, userID, queryEmbedding, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		doc, err := s.docs.Get(ctx, conversationCollection, hit.ID)
		if err != nil {
			return nil, fmt.Errorf("load conversation %s: %w", hit.ID, err)
		}
		if doc == nil {
			continue
		}
		matches = append(matches, Match{
			Conversation: conversationFromDoc(hit.ID, doc),
			Similarity:   hit.Similarity,
		})
	}
	return matches, nil
}
