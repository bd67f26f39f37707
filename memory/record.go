package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/balncd/assist/core"
)

// Conversation is one stored conversation record. Records are append-only:
// created once when a conversation is saved, never mutated afterwards.
type Conversation struct {
	ID        string
	UserID    string
	Messages  []core.Message
	Context   core.Snapshot
	Embedding []float32
	Timestamp time.Time
}

// Match is a retrieved conversation with its similarity to the query.
type Match struct {
	Conversation
	Similarity float64
}

// Transcript renders messages for embedding: each message as
// "role: content", joined by newlines.
func Transcript(messages []core.Message) string {
	parts := make([]string, len(messages))
	for i, m := range messages {
		parts[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	return strings.Join(parts, "\n")
}

func (c *Conversation) toDoc() map[string]any {
	msgs := make([]any, len(c.Messages))
	for i, m := range c.Messages {
		msgs[i] = map[string]any{"role": string(m.Role), "content": m.Content}
	}
	embedding := make([]any, len(c.Embedding))
	for i, v := range c.Embedding {
		embedding[i] = float64(v)
	}
	ctxDoc := map[string]any{}
	if c.Context.State != "" {
		ctxDoc["state"] = c.Context.State
	}
	if c.Context.FilingStatus != "" {
		ctxDoc["filingStatus"] = string(c.Context.FilingStatus)
	}
	if c.Context.Quarter != "" {
		ctxDoc["quarter"] = string(c.Context.Quarter)
	}
	if c.Context.TaxYear != 0 {
		ctxDoc["taxYear"] = c.Context.TaxYear
	}
	if c.Context.LastQuery != "" {
		ctxDoc["lastQueryType"] = string(c.Context.LastQuery)
	}
	return map[string]any{
		"userId":    c.UserID,
		"messages":  msgs,
		"context":   ctxDoc,
		"embedding": embedding,
		"timestamp": c.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func conversationFromDoc(id string, doc map[string]any) Conversation {
	c := Conversation{ID: id}
	c.UserID, _ = doc["userId"].(string)

	if msgs, ok := doc["messages"].([]any); ok {
		for _, raw := range msgs {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			c.Messages = append(c.Messages, core.Message{Role: core.Role(role), Content: content})
		}
	}

	if ctxDoc, ok := doc["context"].(map[string]any); ok {
		if s, ok := ctxDoc["state"].(string); ok {
			c.Context.State = s
		}
		if s, ok := ctxDoc["filingStatus"].(string); ok {
			c.Context.FilingStatus = core.FilingStatus(s)
		}
		if s, ok := ctxDoc["quarter"].(string); ok {
			c.Context.Quarter = core.Quarter(s)
		}
		if y, ok := ctxDoc["taxYear"].(float64); ok {
			c.Context.TaxYear = int(y)
		}
		if s, ok := ctxDoc["lastQueryType"].(string); ok {
			c.Context.LastQuery = core.QueryType(s)
		}
	}

	if emb, ok := doc["embedding"].([]any); ok {
		c.Embedding = make([]float32, 0, len(emb))
		for _, v := range emb {
			if f, ok := v.(float64); ok {
				c.Embedding = append(c.Embedding, float32(f))
			}
		}
	}

	if ts, ok := doc["timestamp"].(string); ok {
		c.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
	}
	return c
}
