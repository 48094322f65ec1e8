// Package ingest loads documents from disk into the vector index. It offers
// a one-shot directory scan and an fsnotify watcher for continuous ingest.
// Files are split into paragraph-aligned chunks before embedding so a single
// long document does not dominate retrieval.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"guardrag/internal/embedding"
	"guardrag/internal/index"
	"guardrag/internal/logging"
	"guardrag/internal/types"
)

// maxChunkChars bounds a single indexed chunk. Paragraphs are packed into
// chunks up to this size; an oversized paragraph becomes its own chunk.
const maxChunkChars = 1000

// Stats summarizes one ingest run.
type Stats struct {
	Files   int
	Chunks  int
	Skipped int
	Errors  int
}

// Ingestor embeds file contents and stores them in the index.
type Ingestor struct {
	embedder   embedding.Engine
	idx        index.Index
	extensions map[string]bool
	docType    string
	now        func() time.Time
}

// NewIngestor creates an ingestor. extensions lists accepted file suffixes
// (".txt", ".md"); an empty list accepts those two defaults. docType is
// stamped on every document's metadata, defaulting to system.
func NewIngestor(embedder embedding.Engine, idx index.Index, extensions []string, docType string) *Ingestor {
	if len(extensions) == 0 {
		extensions = []string{".txt", ".md"}
	}
	extSet := make(map[string]bool, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = true
	}
	if docType == "" {
		docType = types.DocTypeSystem
	}
	return &Ingestor{
		embedder:   embedder,
		idx:        idx,
		extensions: extSet,
		docType:    docType,
		now:        time.Now,
	}
}

// Accepts reports whether the path has an ingestable extension.
func (g *Ingestor) Accepts(path string) bool {
	return g.extensions[strings.ToLower(filepath.Ext(path))]
}

// IngestDir scans dir non-recursively and ingests every accepted file.
// Per-file failures are counted, not fatal; the returned error covers only
// the directory read itself.
func (g *Ingestor) IngestDir(ctx context.Context, dir string) (Stats, error) {
	var stats Stats
	entries, err := os.ReadDir(dir)
	if err != nil {
		return stats, fmt.Errorf("reading ingest dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if !g.Accepts(path) {
			stats.Skipped++
			continue
		}
		chunks, err := g.IngestFile(ctx, path)
		if err != nil {
			logging.Ingest("failed to ingest %s: %v", path, err)
			stats.Errors++
			continue
		}
		stats.Files++
		stats.Chunks += chunks
	}
	logging.Ingest("ingested dir %s: %d files, %d chunks, %d skipped, %d errors",
		dir, stats.Files, stats.Chunks, stats.Skipped, stats.Errors)
	return stats, nil
}

// IngestFile chunks, embeds, and indexes one file, returning the number of
// chunks stored.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	chunks := Chunk(string(data))
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := g.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embedding %s: %w", path, err)
	}

	meta := types.DocumentMetadata{
		DocType:    g.docType,
		IngestedAt: g.now().UTC().Format(time.RFC3339),
	}
	for i, chunk := range chunks {
		doc := index.Document{Content: chunk, Vector: vectors[i], Metadata: meta}
		if err := g.idx.Add(ctx, doc); err != nil {
			return i, fmt.Errorf("indexing chunk %d of %s: %w", i, path, err)
		}
	}
	logging.IngestDebug("ingested %s: %d chunks", path, len(chunks))
	return len(chunks), nil
}

// Chunk splits text on blank lines and packs consecutive paragraphs into
// chunks of at most maxChunkChars. Whitespace-only input yields no chunks.
func Chunk(text string) []string {
	var chunks []string
	var current strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxChunkChars {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
