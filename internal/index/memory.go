package index

import (
	"context"
	"sort"
	"sync"

	"guardrag/internal/embedding"
	"guardrag/internal/logging"
)

// MemoryIndex is an in-memory vector index. Search is a linear cosine scan,
// fine for corpora up to a few tens of thousands of documents.
type MemoryIndex struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Add stores a document with its embedding.
func (m *MemoryIndex) Add(ctx context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, doc)
	logging.IndexDebug("Memory index: added document (len=%d, doc_type=%s), total=%d",
		len(doc.Content), doc.Metadata.DocType, len(m.docs))
	return nil
}

// Search returns up to n candidates ordered by ascending cosine distance.
func (m *MemoryIndex) Search(ctx context.Context, vector []float32, n int) ([]Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n <= 0 || len(m.docs) == 0 {
		return nil, nil
	}

	candidates := make([]Candidate, 0, len(m.docs))
	for _, doc := range m.docs {
		dist, err := embedding.CosineDistance(vector, doc.Vector)
		if err != nil {
			// Dimension mismatch: skip rather than fail the whole search.
			continue
		}
		candidates = append(candidates, Candidate{
			Content:  doc.Content,
			Distance: dist,
			Metadata: doc.Metadata,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

// Count returns the number of stored documents.
func (m *MemoryIndex) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs), nil
}

// Close is a no-op for the in-memory index.
func (m *MemoryIndex) Close() error {
	return nil
}
