package memory

import (
	"context"
	"math"
)

// UsableSimilarity is the threshold above which a retrieved conversation is
// considered usable context. FindSimilar returns lower-scoring matches too;
// callers are expected to ignore them.
const UsableSimilarity = 0.7

// Embedder converts text to a fixed-length vector. Repeated calls on
// identical text must produce vectors whose self-similarity is 1.0 (within
// floating point tolerance).
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// IndexHit is one result from a vector index lookup.
type IndexHit struct {
	ID         string
	Similarity float64
}

// Index is an optional vector index accelerating similarity search.
// Implementations must keep per-user namespacing.
type Index interface {
	// Add registers a stored conversation's embedding.
	Add(ctx context.Context, userID, id string, embedding []float32) error

	// Search returns up to k hits for the user, highest similarity first.
	Search(ctx context.Context, userID string, embedding []float32, k int) ([]IndexHit, error)
}

// Cosine returns the cosine similarity of two vectors, or 0 when either is
// empty, mismatched in length, or zero-magnitude.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
