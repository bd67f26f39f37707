// Package memory provides semantic conversation memory.
//
// Each finished conversation is stored with an embedding of its transcript;
// retrieval embeds the incoming query and ranks the user's past conversations
// by cosine similarity. Records are namespaced by user.
//
// Architecture:
//   - Store: conversation persistence and similarity search over the
//     document store
//   - Embedder: text-to-vector conversion (mock for tests, OpenAI API,
//     local ONNX model behind the onnx build tag)
//   - Index: optional vector index (chromem-go) behind the same FindSimilar
//     contract as the default linear scan
//
// The default retrieval path is an O(n) scan over one user's conversations,
// which is fine at per-user volumes; swapping in the chromem index changes
// no callers.
package memory
