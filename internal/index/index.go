// Package index stores document embeddings and answers nearest-neighbor
// queries. Two backends are provided: an in-memory index for tests and small
// corpora, and a SQLite index for persistence.
package index

import (
	"context"

	"guardrag/internal/types"
)

// Document is a unit of content stored in the index.
type Document struct {
	Content  string
	Vector   []float32
	Metadata types.DocumentMetadata
}

// Candidate is a raw nearest-neighbor hit before ranking.
// Distance is cosine distance: 0 means identical, larger means less similar.
type Candidate struct {
	Content  string
	Distance float64
	Metadata types.DocumentMetadata
}

// Index is the storage interface the retrieval engine searches against.
type Index interface {
	// Add stores a document with its embedding.
	Add(ctx context.Context, doc Document) error

	// Search returns up to n candidates ordered by ascending distance.
	Search(ctx context.Context, vector []float32, n int) ([]Candidate, error)

	// Count returns the number of stored documents.
	Count(ctx context.Context) (int, error)

	// Close releases backing resources.
	Close() error
}
