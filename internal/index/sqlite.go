package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"

	"guardrag/internal/embedding"
	"guardrag/internal/logging"
	"guardrag/internal/types"
)

// SQLiteIndex persists documents and embeddings in SQLite. Embeddings are
// stored as JSON arrays and scanned with cosine distance in Go, which keeps
// the index pure-Go (no cgo extension required).
type SQLiteIndex struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteIndex opens (or creates) a SQLite index at the given path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Index("SQLite index opened at %s", path)
	return idx, nil
}

// initialize creates the documents table.
func (s *SQLiteIndex) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		embedding TEXT NOT NULL,
		doc_type TEXT NOT NULL DEFAULT 'system',
		user_id TEXT,
		ingested_at TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type);
	CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents(user_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Add stores a document with its embedding.
func (s *SQLiteIndex) Add(ctx context.Context, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	vecJSON, err := json.Marshal(doc.Vector)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	var userID sql.NullString
	if doc.Metadata.UserID != "" {
		userID = sql.NullString{String: doc.Metadata.UserID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (content, embedding, doc_type, user_id, ingested_at) VALUES (?, ?, ?, ?, ?)",
		doc.Content, string(vecJSON), doc.Metadata.DocType, userID, doc.Metadata.IngestedAt,
	)
	if err != nil {
		logging.Get(logging.CategoryIndex).Error("Failed to store document: %v", err)
		return fmt.Errorf("failed to store document: %w", err)
	}

	logging.IndexDebug("SQLite index: stored document (len=%d, doc_type=%s)", len(doc.Content), doc.Metadata.DocType)
	return nil
}

// Search scans all stored embeddings and returns up to n candidates ordered
// by ascending cosine distance.
func (s *SQLiteIndex) Search(ctx context.Context, vector []float32, n int) ([]Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT content, embedding, doc_type, user_id, ingested_at FROM documents")
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	skipped := 0
	for rows.Next() {
		var content, vecJSON, docType string
		var userID, ingestedAt sql.NullString
		if err := rows.Scan(&content, &vecJSON, &docType, &userID, &ingestedAt); err != nil {
			skipped++
			continue
		}

		var vec []float32
		if err := json.Unmarshal([]byte(vecJSON), &vec); err != nil {
			skipped++
			continue
		}

		dist, err := embedding.CosineDistance(vector, vec)
		if err != nil {
			skipped++
			continue
		}

		candidates = append(candidates, Candidate{
			Content:  content,
			Distance: dist,
			Metadata: types.DocumentMetadata{
				DocType:    docType,
				UserID:     userID.String,
				IngestedAt: ingestedAt.String,
			},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search scan failed: %w", err)
	}
	if skipped > 0 {
		logging.Get(logging.CategoryIndex).Warn("Search skipped %d unreadable rows", skipped)
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
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&count); err != nil {
		return 0, fmt.Errorf("count query failed: %w", err)
	}
	return count, nil
}

// Close closes the database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}
