// Package retrieval embeds queries, searches the vector index, and re-ranks
// candidates with a weighted multi-factor score before returning the top
// results. Failures degrade to an empty, explained result set rather than
// errors so the pipeline can keep moving.
package retrieval

import (
	"context"
	"sort"
	"time"

	"guardrag/internal/embedding"
	"guardrag/internal/index"
	"guardrag/internal/logging"
	"guardrag/internal/types"
)

// defaultMaxResults bounds the over-fetch from the index.
const defaultMaxResults = 10

// Options narrows one retrieval call.
type Options struct {
	// NResults is the number of documents to return.
	NResults int

	// UserID, when set, keeps only system documents and this user's own.
	UserID string

	// DocType, when set, keeps only exact doc_type matches.
	DocType string

	// SessionID tags logs for request tracing.
	SessionID string
}

// Engine retrieves and re-ranks documents.
type Engine struct {
	embedder   embedding.Engine
	idx        index.Index
	maxResults int
	now        func() time.Time
}

// NewEngine creates a retrieval engine over an embedder and an index.
func NewEngine(embedder embedding.Engine, idx index.Index) *Engine {
	return &Engine{
		embedder:   embedder,
		idx:        idx,
		maxResults: defaultMaxResults,
		now:        time.Now,
	}
}

// RetrieveAndRank embeds the query, over-fetches nearest neighbors, scores
// and filters them, and returns the top NResults with dense 1-based ranks.
// On embedding or index failure it returns success=false with an empty set.
func (e *Engine) RetrieveAndRank(ctx context.Context, query string, opts Options) types.RetrievalResult {
	log := logging.WithSession(logging.CategoryRetrieval, opts.SessionID)

	n := opts.NResults
	if n <= 0 {
		n = 5
	}

	// Step 1: embed the query.
	vector, err := e.embedder.Embed(ctx, query)
	if err != nil {
		log.Error("Query embedding failed: %v", err)
		return failedResult(query, opts.SessionID, "embedding failed: "+err.Error())
	}

	// Step 2: over-fetch for re-ranking headroom.
	fetchN := 2 * n
	if fetchN > e.maxResults {
		fetchN = e.maxResults
	}
	candidates, err := e.idx.Search(ctx, vector, fetchN)
	if err != nil {
		log.Error("Index search failed: %v", err)
		return failedResult(query, opts.SessionID, "index search failed: "+err.Error())
	}
	retrieved := len(candidates)
	log.Debug("Fetched %d candidates for %q", retrieved, query)

	// Steps 3-5: convert distance to similarity, drop weak candidates,
	// compute ranking factors at the original index position.
	now := e.now()
	scored := make([]types.RankedDocument, 0, len(candidates))
	for i, c := range candidates {
		similarity := 1 - c.Distance
		if similarity < minSimilarity {
			continue
		}
		factors := computeFactors(similarity, i, c.Content, c.Metadata, now)
		scored = append(scored, types.RankedDocument{
			Content:         c.Content,
			SimilarityScore: similarity,
			CombinedScore:   combinedScore(factors),
			Metadata:        c.Metadata,
			Factors:         factors,
		})
	}

	// Step 6: filter strictly after scoring so ranks reflect the final set.
	filtered := scored[:0]
	for _, doc := range scored {
		if opts.UserID != "" {
			if doc.Metadata.DocType != types.DocTypeSystem && doc.Metadata.UserID != opts.UserID {
				continue
			}
		}
		if opts.DocType != "" && doc.Metadata.DocType != opts.DocType {
			continue
		}
		filtered = append(filtered, doc)
	}
	afterFiltering := len(filtered)

	// Step 7: order, truncate, assign dense ranks.
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CombinedScore > filtered[j].CombinedScore
	})
	if len(filtered) > n {
		filtered = filtered[:n]
	}
	for i := range filtered {
		filtered[i].Rank = i + 1
	}

	// Step 8: confidence is the mean similarity of what was returned.
	confidence := 0.0
	avgSimilarity := 0.0
	if len(filtered) > 0 {
		total := 0.0
		for _, doc := range filtered {
			total += doc.SimilarityScore
		}
		avgSimilarity = total / float64(len(filtered))
		confidence = avgSimilarity
	}

	log.Info("Retrieval complete: retrieved=%d, after_filtering=%d, returned=%d, avg_similarity=%.3f",
		retrieved, afterFiltering, len(filtered), avgSimilarity)

	return types.RetrievalResult{
		Success:    true,
		Query:      query,
		Documents:  filtered,
		Confidence: confidence,
		Stats: types.RetrievalStats{
			Retrieved:      retrieved,
			AfterFiltering: afterFiltering,
			Returned:       len(filtered),
			AvgSimilarity:  avgSimilarity,
		},
		SessionID: opts.SessionID,
	}
}

func failedResult(query, sessionID, errText string) types.RetrievalResult {
	return types.RetrievalResult{
		Success:   false,
		Query:     query,
		Documents: []types.RankedDocument{},
		SessionID: sessionID,
		Err:       errText,
	}
}
