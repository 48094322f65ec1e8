package retrieval

import (
	"time"

	"guardrag/internal/types"
)

// Combined-score weights. Similarity dominates; the rest break ties.
const (
	weightSimilarity = 0.50
	weightPosition   = 0.20
	weightRecency    = 0.15
	weightDocType    = 0.10
	weightLength     = 0.05
)

// minSimilarity is the floor below which candidates are dropped outright.
const minSimilarity = 0.5

// computeFactors derives the ranking factors for a candidate at 0-based
// pre-filter position i.
func computeFactors(similarity float64, position int, content string, meta types.DocumentMetadata, now time.Time) types.RankingFactors {
	positionBonus := 1.0 - 0.05*float64(position)
	if positionBonus < 0 {
		positionBonus = 0
	}

	lengthFactor := float64(len(content)) / 1000
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}

	docTypeScore := 0.8
	if meta.DocType == types.DocTypeSystem {
		docTypeScore = 1.0
	}

	// Unparseable or missing timestamps count as fresh.
	recency := 1.0
	if ingested, ok := meta.IngestedTime(); ok {
		days := now.Sub(ingested).Hours() / 24
		recency = 1.0 - 0.01*days
		if recency < 0.5 {
			recency = 0.5
		}
	}

	return types.RankingFactors{
		SemanticSimilarity: similarity,
		PositionBonus:      positionBonus,
		LengthFactor:       lengthFactor,
		DocTypeScore:       docTypeScore,
		Recency:            recency,
	}
}

// combinedScore collapses the ranking factors into the final ordering score.
func combinedScore(f types.RankingFactors) float64 {
	return weightSimilarity*f.SemanticSimilarity +
		weightPosition*f.PositionBonus +
		weightRecency*f.Recency +
		weightDocType*f.DocTypeScore +
		weightLength*f.LengthFactor
}
