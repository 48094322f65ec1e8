package synthesis

import (
	"context"
	"fmt"
	"strings"

	"guardrag/internal/llm"
	"guardrag/internal/logging"
	"guardrag/internal/types"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// generationTemperature keeps answers close to the supplied context.
	generationTemperature = 0.3
	generationMaxTokens   = 1000

	// contextDocLimit caps how much of each document enters the prompt.
	contextDocLimit = 500

	apologyGeneration = "I apologize, but I was unable to generate a response at this time."
	apologySynthesis  = "I apologize, but I encountered an error generating a response. Please try again."
)

const baseSystemPrompt = "You are a helpful support assistant."

// provenance labels for context documents.
const (
	sourceGuidance  = "GUIDANCE"
	sourceRetrieved = "RETRIEVED"
)

// =============================================================================
// SYNTHESIZER
// =============================================================================

// Input carries everything the upstream stages produced for one query.
// Risk and Documents may be nil/empty; the strategy table handles both.
type Input struct {
	Query     types.Query
	Intent    types.IntentResult
	Risk      *types.RiskAssessment
	Documents []types.RankedDocument
}

// Synthesizer generates the final response.
type Synthesizer struct {
	client  llm.Client
	quality *Evaluator
}

// NewSynthesizer creates a synthesizer over a generation client and a
// quality evaluator. The evaluator may be nil, in which case quality
// metrics stay at zero.
func NewSynthesizer(client llm.Client, quality *Evaluator) *Synthesizer {
	return &Synthesizer{client: client, quality: quality}
}

// contextDoc is one prompt context entry with its provenance tag.
type contextDoc struct {
	source  string
	content string
	score   float64
}

// Synthesize produces the final answer. It never returns an error: generation
// failures yield an apology response with all quality metrics at zero, and a
// recovered panic does the same.
func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (result types.SynthesisResult) {
	log := logging.WithSession(logging.CategorySynthesis, in.Query.SessionID)

	strategy, includesGuidance := DetermineStrategy(in.Risk, in.Documents)
	result = types.SynthesisResult{
		Strategy:  strategy,
		SessionID: in.Query.SessionID,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("synthesis panic: %v", r)
			result.Response = apologySynthesis
			result.Quality = types.QualityMetrics{}
		}
	}()

	docs := s.contextDocuments(in, includesGuidance)
	result.ContextUsed = types.ContextUsage{
		AnomalyDetection: in.Risk != nil && in.Risk.IsAnomalous,
		Documents:        len(docs),
		IncludesGuidance: includesGuidance,
	}

	contextText := formatContext(docs)
	systemPrompt := systemPromptFor(strategy)
	userPrompt := fmt.Sprintf(
		"User Query: %s\n\n%s\n\nPlease provide a helpful and accurate response based on the query and context above. Do not include retrieval scores in your answer.",
		in.Query.Text, contextText)

	log.Info("synthesizing strategy=%s context_docs=%d", strategy, len(docs))

	if s.client == nil {
		log.Warn("no generation client configured")
		result.Response = apologyGeneration
		return result
	}

	response, err := s.client.CompleteWithOptions(ctx, systemPrompt, userPrompt, llm.Options{
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
	})
	if err != nil || strings.TrimSpace(response) == "" {
		log.Error("generation failed: %v", err)
		result.Response = apologyGeneration
		return result
	}

	result.Response = response
	if s.quality != nil {
		result.Quality = s.quality.Evaluate(ctx, in.Query.Text, response, rawContext(docs))
	}
	log.Info("synthesized %d chars, overall_quality=%.2f", len(response), result.Quality.Overall)
	return result
}

// contextDocuments orders guidance documents ahead of retrieval documents,
// each tagged with its provenance.
func (s *Synthesizer) contextDocuments(in Input, includesGuidance bool) []contextDoc {
	var docs []contextDoc
	if includesGuidance && in.Risk != nil {
		for _, d := range in.Risk.GuidanceDocuments {
			docs = append(docs, contextDoc{
				source:  sourceGuidance,
				content: d.Content,
				score:   d.CombinedScore,
			})
		}
	}
	for _, d := range in.Documents {
		docs = append(docs, contextDoc{
			source:  sourceRetrieved,
			content: d.Content,
			score:   d.CombinedScore,
		})
	}
	return docs
}

// formatContext renders the context block of the user prompt. Each document
// is truncated so a single oversized document cannot crowd out the rest.
func formatContext(docs []contextDoc) string {
	if len(docs) == 0 {
		return "No context documents available."
	}
	var b strings.Builder
	b.WriteString("Context Documents:\n")
	for _, d := range docs {
		content := d.content
		if len(content) > contextDocLimit {
			content = content[:contextDocLimit] + "..."
		}
		fmt.Fprintf(&b, "\n[%s - Score: %.2f]\n%s\n", d.source, d.score, content)
	}
	return b.String()
}

// rawContext joins document contents for quality evaluation. Unlike the
// prompt block it carries no provenance headers and stays empty when there
// are no documents, so the evaluator sees only what the corpus said.
func rawContext(docs []contextDoc) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		parts = append(parts, d.content)
	}
	return strings.Join(parts, "\n\n")
}

// systemPromptFor selects the strategy-specific system preamble.
func systemPromptFor(strategy types.Strategy) string {
	switch strategy {
	case types.StrategyAnomalyReview:
		return baseSystemPrompt + " The user has raised a security or account concern. " +
			"Acknowledge their concern with an empathetic tone, provide guidance from the " +
			"context documents, and recommend contacting the support team for verification."
	case types.StrategyEscalation:
		return baseSystemPrompt + " This query has been flagged as a potential security risk. " +
			"Express appropriate concern, recommend immediate escalation to the security team, " +
			"and provide only temporary guidance. Do not include sensitive technical details."
	default:
		return baseSystemPrompt + " Answer using only the provided context documents. " +
			"Cite the relevant information, and if the context does not contain the answer, say so."
	}
}
