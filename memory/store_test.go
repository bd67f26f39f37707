package memory

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/balncd/assist/core"
	"github.com/balncd/assist/docstore"
	"github.com/balncd/assist/memory/embedder/mock"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(docstore.NewMemory(), mock.New(), nil)
}

func messagesFor(question, answer string) []core.Message {
	return []core.Message{
		{Role: core.RoleUser, Content: question},
		{Role: core.RoleAssistant, Content: answer},
	}
}

func TestStoreAndFindSimilar(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	id, err := store.StoreConversation(ctx, "user-1",
		messagesFor("What are California taxes like?", "California has a progressive income tax."),
		core.Snapshot{State: "California"})
	if err != nil {
		t.Fatalf("StoreConversation: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty conversation id")
	}

	// Querying with the exact transcript must score ~1.0: the mock embedder
	// is deterministic and its vectors are unit length.
	query := Transcript(messagesFor("What are California taxes like?", "California has a progressive income tax."))
	matches, err := store.FindSimilar(ctx, "user-1", query, 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if math.Abs(matches[0].Similarity-1.0) > 1e-5 {
		t.Errorf("self-similarity = %f, want ~1.0", matches[0].Similarity)
	}
	if matches[0].Conversation.ID != id {
		t.Errorf("match id = %q, want %q", matches[0].Conversation.ID, id)
	}
	if matches[0].Conversation.Context.State != "California" {
		t.Errorf("context state = %q, want California", matches[0].Conversation.Context.State)
	}
	if len(matches[0].Conversation.Messages) != 2 {
		t.Errorf("expected 2 messages, got %d", len(matches[0].Conversation.Messages))
	}
}

func TestFindSimilarOrdering(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	transcripts := []string{
		"What are Oregon taxes?",
		"How much did I earn in Q2?",
		"Tell me about filing statuses",
	}
	for _, q := range transcripts {
		if _, err := store.StoreConversation(ctx, "user-1",
			messagesFor(q, "answer"), core.Snapshot{}); err != nil {
			t.Fatalf("StoreConversation: %v", err)
		}
	}

	// Query with one of the exact transcripts: it must come back first.
	query := Transcript(messagesFor("How much did I earn in Q2?", "answer"))
	matches, err := store.FindSimilar(ctx, "user-1", query, 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Similarity > matches[i-1].Similarity {
			t.Errorf("matches not in descending order: %f before %f",
				matches[i-1].Similarity, matches[i].Similarity)
		}
	}
	if math.Abs(matches[0].Similarity-1.0) > 1e-5 {
		t.Errorf("best match similarity = %f, want ~1.0", matches[0].Similarity)
	}
}

func TestFindSimilarRespectsLimit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i := 0; i < 5; i++ {
		if _, err := store.StoreConversation(ctx, "user-1",
			messagesFor("question", "answer"), core.Snapshot{}); err != nil {
			t.Fatalf("StoreConversation: %v", err)
		}
	}

	matches, err := store.FindSimilar(ctx, "user-1", "question", 2)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("expected 2 matches, got %d", len(matches))
	}

	// k <= 0 falls back to the configured default limit.
	matches, err = store.FindSimilar(ctx, "user-1", "question", 0)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != DefaultConfig.DefaultLimit {
		t.Errorf("expected %d matches, got %d", DefaultConfig.DefaultLimit, len(matches))
	}
}

func TestFindSimilarNoHistory(t *testing.T) {
	store := newTestStore(t)

	matches, err := store.FindSimilar(context.Background(), "nobody", "anything", 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("expected no matches for unknown user, got %d", len(matches))
	}
}

func TestFindSimilarUserIsolation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.StoreConversation(ctx, "alice",
		messagesFor("my question", "my answer"), core.Snapshot{}); err != nil {
		t.Fatalf("StoreConversation: %v", err)
	}

	matches, err := store.FindSimilar(ctx, "bob", "my question", 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("bob should not see alice's conversations, got %d matches", len(matches))
	}
}

type failingEmbedder struct{}

func (failingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, errors.New("embedding service down")
}

func (failingEmbedder) Dimensions() int { return 384 }

func TestStoreConversationEmbedFailure(t *testing.T) {
	ctx := context.Background()
	docs := docstore.NewMemory()
	store := NewStore(docs, failingEmbedder{}, nil)

	id, err := store.StoreConversation(ctx, "user-1",
		messagesFor("question", "answer"), core.Snapshot{})
	if err == nil {
		t.Fatal("expected error from failing embedder")
	}
	if id != "" {
		t.Errorf("expected empty id on failure, got %q", id)
	}

	// Nothing may be persisted when embedding fails.
	docsFound, err := docs.Query(ctx, "conversation_memory", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docsFound) != 0 {
		t.Errorf("expected no persisted records, got %d", len(docsFound))
	}
}

func TestStoreConversationEmptyInputs(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if id, err := store.StoreConversation(ctx, "", messagesFor("q", "a"), core.Snapshot{}); err != nil || id != "" {
		t.Errorf("empty user: id=%q err=%v, want both empty", id, err)
	}
	if id, err := store.StoreConversation(ctx, "user-1", nil, core.Snapshot{}); err != nil || id != "" {
		t.Errorf("no messages: id=%q err=%v, want both empty", id, err)
	}
}

func TestTranscript(t *testing.T) {
	got := Transcript([]core.Message{
		{Role: core.RoleUser, Content: "What are my taxes?"},
		{Role: core.RoleAssistant, Content: "Here is an estimate."},
	})
	want := "user: What are my taxes?\nassistant: Here is an estimate."
	if got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cosine(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("Cosine = %f, want %f", got, tt.want)
			}
		})
	}
}
