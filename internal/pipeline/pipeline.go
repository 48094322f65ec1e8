// Package pipeline orchestrates the four processing stages into a single
// Process call: intent classification, risk assessment, retrieval, and
// synthesis. The orchestrator is a small state machine with two early exits,
// a blocked terminal state for risky queries and an error terminal state for
// anything a stage failed to contain. Process never returns an error and
// never panics; the caller always receives a well-formed envelope.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"guardrag/internal/logging"
	"guardrag/internal/retrieval"
	"guardrag/internal/session"
	"guardrag/internal/synthesis"
	"guardrag/internal/types"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// defaultRetrievalResults is the document count for the main retrieval
	// call; defaultGuidanceResults for the anomaly guidance call.
	defaultRetrievalResults = 5
	defaultGuidanceResults  = 3

	// anomalyGuidancePrefix rewrites an anomaly-concern query toward the
	// security guidance corpus.
	anomalyGuidancePrefix = "fraud detection account security prevention unauthorized access"

	// anomalyRiskScore is the canned score for user-voiced security
	// concerns. Medium risk: worth a review, never a block.
	anomalyRiskScore = 0.5

	refusalResponse = "Your query has been flagged for security concerns and cannot be processed. Please contact support for assistance."
	errorResponse   = "I apologize, but an error occurred while processing your query. Please try again."
)

// =============================================================================
// STAGE INTERFACES
// =============================================================================

// IntentClassifier labels a query with an intent.
type IntentClassifier interface {
	Classify(ctx context.Context, query types.Query) types.IntentResult
}

// RiskScorer assesses a query against the session's history.
type RiskScorer interface {
	Assess(ctx context.Context, query types.Query, history []string) types.RiskAssessment
}

// Retriever fetches and ranks documents for a query.
type Retriever interface {
	RetrieveAndRank(ctx context.Context, query string, opts retrieval.Options) types.RetrievalResult
}

// Synthesizer produces the final response.
type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesis.Input) types.SynthesisResult
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Options tunes the orchestrator. Zero values fall back to defaults.
type Options struct {
	RetrievalResults int
	GuidanceResults  int
}

// Orchestrator wires the stages together.
type Orchestrator struct {
	classifier  IntentClassifier
	scorer      RiskScorer
	retriever   Retriever
	synthesizer Synthesizer
	sessions    *session.Store
	opts        Options
}

// New creates an orchestrator. sessions may be nil, which disables the
// behavioral history (every assessment sees an empty history).
func New(classifier IntentClassifier, scorer RiskScorer, retriever Retriever, synthesizer Synthesizer, sessions *session.Store, opts Options) *Orchestrator {
	if opts.RetrievalResults <= 0 {
		opts.RetrievalResults = defaultRetrievalResults
	}
	if opts.GuidanceResults <= 0 {
		opts.GuidanceResults = defaultGuidanceResults
	}
	return &Orchestrator{
		classifier:  classifier,
		scorer:      scorer,
		retriever:   retriever,
		synthesizer: synthesizer,
		sessions:    sessions,
		opts:        opts,
	}
}

// Process runs one query through the pipeline. A blank sessionID mints a
// fresh one. The returned envelope is always well-formed: stage failures
// degrade inside their stage, and anything that still escapes lands in the
// ERROR state with a generic response.
func (o *Orchestrator) Process(ctx context.Context, queryText, sessionID, userID string) (result types.PipelineResult) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	log := logging.WithSession(logging.CategoryPipeline, sessionID)

	result = types.PipelineResult{
		Query:     queryText,
		SessionID: sessionID,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline panic: %v", r)
			result.State = types.StateError
			result.Response = errorResponse
			result.Err = fmt.Sprintf("%v", r)
			result.Intent = degradedIntent(sessionID)
		}
	}()

	if strings.TrimSpace(queryText) == "" {
		log.Warn("rejecting empty query")
		result.State = types.StateError
		result.Response = errorResponse
		result.Err = "empty query"
		result.Intent = degradedIntent(sessionID)
		return result
	}

	query := types.Query{Text: queryText, SessionID: sessionID, UserID: userID}

	// START -> CLASSIFIED
	result.Intent = o.classifier.Classify(ctx, query)
	log.Info("classified intent=%s confidence=%.2f method=%s",
		result.Intent.Intent, result.Intent.Confidence, result.Intent.Method)

	// CLASSIFIED -> RISK_ASSESSED. A user voicing a security concern is not
	// itself an attack, so the detector battery is bypassed for a canned
	// review with guidance fetched up front.
	var history []string
	if o.sessions != nil {
		history = o.sessions.History(sessionID)
	}
	if result.Intent.Intent == types.IntentAnomalyConcern {
		result.Risk = o.anomalyConcernAssessment(ctx, query, result.Intent)
	} else {
		result.Risk = o.scorer.Assess(ctx, query, history)
	}
	log.Info("risk score=%.2f level=%s decision=%s factors=%d",
		result.Risk.RiskScore, result.Risk.RiskLevel, result.Risk.Decision, result.Risk.FactorCount)

	if o.sessions != nil {
		o.sessions.Record(sessionID, queryText)
	}

	// RISK_ASSESSED -> BLOCKED: no retrieval, no model call.
	if result.Risk.Decision == types.DecisionBlock {
		log.Warn("query blocked")
		result.State = types.StateBlocked
		result.Response = refusalResponse
		result.Err = "blocked"
		return result
	}

	// RISK_ASSESSED -> RETRIEVED. Anomaly concerns reuse the guidance
	// documents already fetched instead of a second index round-trip.
	if result.Intent.Intent == types.IntentAnomalyConcern {
		result.Retrieval = guidanceAsRetrieval(query, result.Risk.GuidanceDocuments)
	} else {
		result.Retrieval = o.retriever.RetrieveAndRank(ctx, queryText, retrieval.Options{
			NResults:  o.opts.RetrievalResults,
			DocType:   types.DocTypeSystem,
			UserID:    userID,
			SessionID: sessionID,
		})
	}
	log.Info("retrieved %d documents confidence=%.2f",
		len(result.Retrieval.Documents), result.Retrieval.Confidence)

	// RETRIEVED -> SYNTHESIZED
	risk := result.Risk
	result.Synthesis = o.synthesizer.Synthesize(ctx, synthesis.Input{
		Query:     query,
		Intent:    result.Intent,
		Risk:      &risk,
		Documents: result.Retrieval.Documents,
	})
	result.Response = result.Synthesis.Response
	result.State = types.StateComplete
	log.Info("complete strategy=%s quality=%.2f",
		result.Synthesis.Strategy, result.Synthesis.Quality.Overall)
	return result
}

// degradedIntent is the placeholder intent carried by ERROR envelopes, so
// callers always see a populated intent block.
func degradedIntent(sessionID string) types.IntentResult {
	return types.IntentResult{
		Intent:     types.IntentGeneral,
		Confidence: 0.0,
		Specialist: "general_agent",
		Method:     types.MethodError,
		SessionID:  sessionID,
	}
}

// anomalyConcernAssessment builds the canned review assessment for
// anomaly-concern intents, with guidance documents from a dedicated
// security-oriented retrieval.
func (o *Orchestrator) anomalyConcernAssessment(ctx context.Context, query types.Query, intent types.IntentResult) types.RiskAssessment {
	guidanceQuery := anomalyGuidancePrefix + " " + query.Text
	guidance := o.retriever.RetrieveAndRank(ctx, guidanceQuery, retrieval.Options{
		NResults:  o.opts.GuidanceResults,
		DocType:   types.DocTypeSystem,
		SessionID: query.SessionID,
	})

	score := anomalyRiskScore
	return types.RiskAssessment{
		IsAnomalous:       true,
		RiskScore:         score,
		ConfidenceScore:   intent.Confidence,
		RiskLevel:         types.LevelForScore(score),
		Factors:           []string{"CONCERN: anomaly_concern"},
		FactorCount:       1,
		RiskComponents:    map[string]float64{"user_concern": score},
		Decision:          types.DecisionReview,
		GuidanceDocuments: guidance.Documents,
		SessionID:         query.SessionID,
	}
}

// guidanceAsRetrieval repackages already-fetched guidance documents as the
// retrieval stage output.
func guidanceAsRetrieval(query types.Query, docs []types.RankedDocument) types.RetrievalResult {
	var avg float64
	for _, d := range docs {
		avg += d.SimilarityScore
	}
	if len(docs) > 0 {
		avg /= float64(len(docs))
	}
	return types.RetrievalResult{
		Success:    true,
		Query:      query.Text,
		Documents:  docs,
		Confidence: avg,
		Stats: types.RetrievalStats{
			Retrieved:      len(docs),
			AfterFiltering: len(docs),
			Returned:       len(docs),
			AvgSimilarity:  avg,
		},
		SessionID: query.SessionID,
	}
}
