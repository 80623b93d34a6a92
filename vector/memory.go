package vector

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a slice-backed Store, safe for concurrent use. It backs the
// memory vector backend and every test that needs a real collection without a
// database file.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory collection.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make([]Document, 0)}
}

// Add appends documents. Every document must carry an embedding.
func (s *MemoryStore) Add(ctx context.Context, docs []Document) error {
	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	return nil
}

// Search performs similarity search over the whole collection.
func (s *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]SearchResult, error) {
	return s.SearchWithFilter(ctx, query, k, nil)
}

// SearchWithFilter filters by metadata equality first, then ranks by cosine
// similarity.
func (s *MemoryStore) SearchWithFilter(ctx context.Context, query []float32, k int, filter map[string]any) ([]SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []Document
	if len(filter) == 0 {
		candidates = s.docs
	} else {
		for _, doc := range s.docs {
			if MatchesFilter(doc, filter) {
				candidates = append(candidates, doc)
			}
		}
	}

	return TopK(query, candidates, k), nil
}

// All returns a copy of every document in the collection.
func (s *MemoryStore) All(ctx context.Context) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out, nil
}

// Clear removes all documents.
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = s.docs[:0]
	return nil
}

// Stats returns document count and embedding dimension.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{TotalDocuments: len(s.docs)}
	if len(s.docs) > 0 {
		stats.Dimension = len(s.docs[0].Embedding)
	}
	return stats, nil
}

// Close drops the collection contents.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = nil
	return nil
}
