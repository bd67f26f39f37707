// Package docstore provides the document persistence contract used by the
// preference and memory stores: JSON documents grouped into collections with
// get/set/merge semantics and simple predicate queries.
package docstore

import "context"

// Op is a query predicate operator.
type Op string

const (
	OpEq  Op = "=="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Predicate filters documents on a top-level field.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality predicate.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Document is a stored document with its identifier.
type Document struct {
	ID   string
	Data map[string]any
}

// Store is the document store contract. Implementations must be safe for
// concurrent use; per-document writes are last-write-wins.
type Store interface {
	// Get returns the document data, or nil with no error when absent.
	Get(ctx context.Context, collection, id string) (map[string]any, error)

	// Set writes a document. With merge true, data is merged recursively
	// into the existing document: maps merge per key, everything else is
	// replaced, and absent fields are untouched.
	Set(ctx context.Context, collection, id string, data map[string]any, merge bool) error

	// Add writes a document under a generated id and returns the id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)

	// Query returns documents in a collection matching every predicate.
	Query(ctx context.Context, collection string, preds []Predicate) ([]Document, error)

	// Delete removes a document. Deleting an absent document is not an error.
	Delete(ctx context.Context, collection, id string) error

	Close() error
}

// mergeMaps merges src into dst recursively and returns dst. Nested maps
// merge key by key; any other value in src replaces the value in dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				dst[k] = mergeMaps(cur, sub)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// matches reports whether doc satisfies every predicate. Comparisons follow
// JSON types: numbers compare as float64, strings lexically.
func matches(doc map[string]any, preds []Predicate) bool {
	for _, p := range preds {
		v, ok := doc[p.Field]
		if !ok {
			return false
		}
		if !compare(v, p.Op, p.Value) {
			return false
		}
	}
	return true
}

func compare(have any, op Op, want any) bool {
	if hf, wf, ok := asFloats(have, want); ok {
		switch op {
		case OpEq:
			return hf == wf
		case OpGte:
			return hf >= wf
		case OpLte:
			return hf <= wf
		}
		return false
	}
	hs, hok := have.(string)
	ws, wok := want.(string)
	if hok && wok {
		switch op {
		case OpEq:
			return hs == ws
		case OpGte:
			return hs >= ws
		case OpLte:
			return hs <= ws
		}
		return false
	}
	return op == OpEq && have == want
}

func asFloats(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
