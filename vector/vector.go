// Package vector defines the document and similarity-search primitives shared
// by all index backends, plus an in-memory reference implementation.
package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// Document is a single embeddable unit stored in a collection.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// SearchResult pairs a document with its similarity score. Scores are cosine
// similarity, so higher means closer.
type SearchResult struct {
	Document Document
	Score    float64
}

// Stats describes the current contents of a store.
type Stats struct {
	TotalDocuments int
	Dimension      int
}

// Store is a single vector collection. Documents must arrive with their
// embeddings already computed; embedding happens above the store so document
// batches can share one provider round trip.
type Store interface {
	Add(ctx context.Context, docs []Document) error
	Search(ctx context.Context, query []float32, k int) ([]SearchResult, error)
	SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]any) ([]SearchResult, error)
	All(ctx context.Context) ([]Document, error)
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Embedder turns text into vectors.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// TopK ranks docs by cosine similarity to query and returns the k most
// similar, best first. k is clamped to the number of documents.
func TopK(query []float32, docs []Document, k int) []SearchResult {
	if len(docs) == 0 {
		return []SearchResult{}
	}

	results := make([]SearchResult, len(docs))
	for i, doc := range docs {
		results[i] = SearchResult{
			Document: doc,
			Score:    cosineSimilarity(query, doc.Embedding),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k]
}

// MatchesFilter reports whether every filter key is present in the document
// metadata with an equal value. Numeric values compare numerically, so an int
// written before a JSON round trip still matches the float64 that comes back.
func MatchesFilter(doc Document, filter map[string]any) bool {
	for key, want := range filter {
		got, exists := doc.Metadata[key]
		if !exists || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	af, aNum := toFloat64(a)
	bf, bNum := toFloat64(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// cosineSimilarity accumulates in float64. Mismatched lengths and zero-norm
// vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EncodeVector serializes an embedding as little-endian float32 bytes.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector reverses EncodeVector.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(data))
	}
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return v, nil
}
