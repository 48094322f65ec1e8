package synthesis

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"guardrag/internal/embedding"
	"guardrag/internal/types"
)

// =============================================================================
// QUALITY METRICS
// =============================================================================

// contentWordPattern matches words of four or more characters. Shorter words
// are almost all stopwords and only add noise to overlap ratios.
var contentWordPattern = regexp.MustCompile(`\b\w{4,}\b`)

// Evaluator computes post-hoc quality heuristics over a generated response.
// The embedder is optional; without one the relevance metrics fall back to
// word-overlap ratios.
type Evaluator struct {
	embedder embedding.Engine
}

// NewEvaluator creates an evaluator. embedder may be nil.
func NewEvaluator(embedder embedding.Engine) *Evaluator {
	return &Evaluator{embedder: embedder}
}

// Evaluate scores a response against the query and the context it was
// grounded on. All metric values are in [0,1].
func (e *Evaluator) Evaluate(ctx context.Context, query, response, contextText string) types.QualityMetrics {
	m := types.QualityMetrics{
		Groundedness:     groundedness(response, contextText),
		AnswerRelevance:  e.relevance(ctx, query, response),
		ContextRelevance: e.relevance(ctx, query, contextText),
		Faithfulness:     faithfulness(response, contextText),
		Formatting:       formatting(response),
	}
	m.Overall = 0.25*m.Groundedness + 0.25*m.AnswerRelevance +
		0.15*m.ContextRelevance + 0.25*m.Faithfulness + 0.10*m.Formatting
	return m
}

// contentWords extracts the lowercased content-word set of a text.
func contentWords(text string) map[string]struct{} {
	words := contentWordPattern.FindAllString(strings.ToLower(text), -1)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// overlapRatio is |a∩b| / |a|, or 0 when a is empty.
func overlapRatio(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	shared := 0
	for w := range a {
		if _, ok := b[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a))
}

// groundedness measures how much of the response vocabulary appears in the
// context. The 1.3 boost compensates for legitimate connective words the
// context never contains.
func groundedness(response, contextText string) float64 {
	score := overlapRatio(contentWords(response), contentWords(contextText)) * 1.3
	return min(score, 1.0)
}

// relevance is the embedding cosine similarity between two texts, with a
// word-overlap fallback when no embedder is available or embedding fails.
func (e *Evaluator) relevance(ctx context.Context, query, text string) float64 {
	if e.embedder != nil {
		qv, qerr := e.embedder.Embed(ctx, query)
		tv, terr := e.embedder.Embed(ctx, text)
		if qerr == nil && terr == nil {
			if sim, err := embedding.CosineSimilarity(qv, tv); err == nil {
				return clamp01(sim)
			}
		}
	}
	score := overlapRatio(contentWords(query), contentWords(text)) * 1.5
	return min(score, 1.0)
}

// faithfulness is the fraction of response sentences with at least 30%
// content-word overlap with the context. Unsupported claims show up as
// sentences whose vocabulary the context never saw.
func faithfulness(response, contextText string) float64 {
	ctxWords := contentWords(contextText)
	if len(ctxWords) == 0 {
		return 0.5
	}
	var sentences []string
	for _, s := range strings.Split(response, ".") {
		if s = strings.TrimSpace(s); len(s) > 10 {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return 0
	}
	supported := 0
	for _, s := range sentences {
		if overlapRatio(contentWords(s), ctxWords) >= 0.3 {
			supported++
		}
	}
	return float64(supported) / float64(len(sentences))
}

// formatting runs five binary presentation checks, each worth 0.2.
func formatting(response string) float64 {
	score := 0.0
	runes := []rune(response)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		score += 0.2
	}
	if strings.HasSuffix(response, ".") || strings.HasSuffix(response, "!") || strings.HasSuffix(response, "?") {
		score += 0.2
	}
	if len(response) > 30 && len(response) < 2000 {
		score += 0.2
	}
	if strings.Contains(response, " ") {
		score += 0.2
	}
	if response != "" && response != strings.ToUpper(response) {
		score += 0.2
	}
	return score
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
