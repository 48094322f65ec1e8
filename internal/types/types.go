// Package types provides shared type definitions used across guardrag packages.
// This package exists to break import cycles between the pipeline stages: every
// stage consumes the previous stage's result type and produces its own, and all
// of those results meet again in the PipelineResult envelope.
// Types in this package are plain data with no behavior beyond derivation helpers.
package types

import "time"

// =============================================================================
// ENUMS
// =============================================================================

// Intent is a coarse category label for a query driving downstream routing.
type Intent string

const (
	IntentProductInquiry   Intent = "product_inquiry"
	IntentTechnicalSupport Intent = "technical_support"
	IntentMaintenance      Intent = "maintenance"
	IntentWarranty         Intent = "warranty"
	IntentAnomalyConcern   Intent = "anomaly_concern"
	IntentGeneral          Intent = "general"
)

// ClassificationMethod records which path produced an IntentResult.
type ClassificationMethod string

const (
	MethodRules  ClassificationMethod = "rules"
	MethodHybrid ClassificationMethod = "hybrid"
	MethodError  ClassificationMethod = "error"
)

// RiskLevel is a four-value severity bucket derived from the risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Decision is the risk gate outcome controlling whether a query proceeds.
type Decision string

const (
	DecisionAllow           Decision = "ALLOW"
	DecisionReview          Decision = "REVIEW"
	DecisionReviewCarefully Decision = "REVIEW_CAREFULLY"
	DecisionBlock           Decision = "BLOCK"
)

// Strategy selects the response synthesis approach.
type Strategy string

const (
	StrategyNormal        Strategy = "NORMAL"
	StrategyAnomalyReview Strategy = "ANOMALY_REVIEW"
	StrategyEscalation    Strategy = "ESCALATION"
	StrategyGeneral       Strategy = "GENERAL"
)

// PipelineState is the terminal state recorded in the PipelineResult envelope.
type PipelineState string

const (
	StateBlocked  PipelineState = "BLOCKED"
	StateComplete PipelineState = "COMPLETE"
	StateError    PipelineState = "ERROR"
)

// =============================================================================
// QUERY
// =============================================================================

// Query is the inbound user text plus session identity. It is created at
// ingress, consumed read-only by every stage, and discarded after the
// PipelineResult is produced.
type Query struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
}

// =============================================================================
// INTENT CLASSIFICATION
// =============================================================================

// IntentFactors captures the signals that went into a classification.
type IntentFactors struct {
	// KeywordScores maps each candidate intent to its keyword-density score.
	KeywordScores map[Intent]float64 `json:"keyword_scores,omitempty"`

	// SecurityKeywords lists the security/fraud lexicon hits, when the
	// fast-path fired.
	SecurityKeywords []string `json:"security_keywords,omitempty"`

	QueryLength      int  `json:"query_length"`
	HasQuestion      bool `json:"has_question"`
	HasInterrogative bool `json:"has_interrogative"`

	// ModelReasoning and RulesSuggestion are populated on the hybrid path.
	ModelReasoning  string `json:"model_reasoning,omitempty"`
	RulesSuggestion Intent `json:"rules_suggestion,omitempty"`

	// Err holds the recovered error text when Method is MethodError.
	Err string `json:"error,omitempty"`
}

// IntentResult is the classifier output.
type IntentResult struct {
	Intent     Intent               `json:"intent"`
	Confidence float64              `json:"confidence"`
	Specialist string               `json:"specialist"`
	Method     ClassificationMethod `json:"method"`
	Factors    IntentFactors        `json:"factors"`
	SessionID  string               `json:"session_id,omitempty"`
}

// =============================================================================
// RISK ASSESSMENT
// =============================================================================

// RiskAssessment is the risk scorer output.
type RiskAssessment struct {
	IsAnomalous     bool      `json:"is_anomalous"`
	RiskScore       float64   `json:"risk_score"`
	ConfidenceScore float64   `json:"confidence_score"`
	RiskLevel       RiskLevel `json:"risk_level"`

	// Factors lists every triggered detector finding, e.g.
	// "INJECTION_KEYWORDS: drop" or "SQL_INJECTION".
	Factors     []string `json:"factors"`
	FactorCount int      `json:"factor_count"`

	// RiskComponents maps detector name to its fixed weight; a detector
	// appears at most once.
	RiskComponents map[string]float64 `json:"risk_components"`

	Decision          Decision         `json:"decision"`
	GuidanceDocuments []RankedDocument `json:"guidance_documents,omitempty"`
	SessionID         string           `json:"session_id,omitempty"`

	// Err holds the recovered error text on the fail-safe path.
	Err string `json:"error,omitempty"`
}

// LevelForScore derives the risk level from a score via fixed thresholds.
// It is a pure function: same score, same level.
func LevelForScore(score float64) RiskLevel {
	switch {
	case score < 0.3:
		return RiskLow
	case score < 0.6:
		return RiskMedium
	case score < 0.8:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// DecisionFor derives the gate decision from level and factor count.
// Pure, table-driven: high risk blocks only when more than two independent
// factors fired, otherwise it escalates to a careful review.
func DecisionFor(level RiskLevel, factorCount int) Decision {
	switch level {
	case RiskCritical:
		return DecisionBlock
	case RiskHigh:
		if factorCount > 2 {
			return DecisionBlock
		}
		return DecisionReviewCarefully
	case RiskMedium:
		return DecisionReview
	default:
		return DecisionAllow
	}
}

// =============================================================================
// RETRIEVAL
// =============================================================================

// DocumentMetadata is the metadata schema consumed from the vector index.
// IngestedAt is an ISO-8601 timestamp string; an empty or unparseable value
// leaves the recency factor at its default.
type DocumentMetadata struct {
	DocType    string `json:"doc_type"`
	UserID     string `json:"user_id"`
	IngestedAt string `json:"ingested_at"`
}

// DocTypeSystem marks system-authored documents, visible to every user.
const DocTypeSystem = "system"

// IngestedTime parses the ingestion timestamp. ok is false when the field is
// missing or malformed.
func (m DocumentMetadata) IngestedTime() (t time.Time, ok bool) {
	if m.IngestedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, m.IngestedAt)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RankingFactors are the secondary signals combined into a document's
// combined score.
type RankingFactors struct {
	SemanticSimilarity float64 `json:"semantic_similarity"`
	PositionBonus      float64 `json:"position_bonus"`
	LengthFactor       float64 `json:"length_factor"`
	DocTypeScore       float64 `json:"doc_type_score"`
	Recency            float64 `json:"recency"`
}

// RankedDocument is a single retrieval result. Rank is 1-based, dense within
// a result set, and assigned only after filtering and sorting.
type RankedDocument struct {
	Rank            int              `json:"rank"`
	Content         string           `json:"content"`
	SimilarityScore float64          `json:"similarity_score"`
	CombinedScore   float64          `json:"combined_score"`
	Metadata        DocumentMetadata `json:"metadata"`
	Factors         RankingFactors   `json:"ranking_factors"`
}

// RetrievalStats records the funnel counts of one retrieval call.
type RetrievalStats struct {
	Retrieved      int     `json:"retrieved"`
	AfterFiltering int     `json:"after_filtering"`
	Returned       int     `json:"returned"`
	AvgSimilarity  float64 `json:"avg_similarity"`
}

// RetrievalResult is the retrieval engine output. On embedding or index
// failure Success is false, Documents is empty, and Err explains; the
// pipeline continues regardless.
type RetrievalResult struct {
	Success    bool             `json:"success"`
	Query      string           `json:"query"`
	Documents  []RankedDocument `json:"documents"`
	Confidence float64          `json:"confidence"`
	Stats      RetrievalStats   `json:"retrieval_stats"`
	SessionID  string           `json:"session_id,omitempty"`
	Err        string           `json:"error,omitempty"`
}

// =============================================================================
// SYNTHESIS
// =============================================================================

// QualityMetrics are post-hoc self-assessment heuristics over the generated
// text. All values are in [0,1]; they are computed from text overlap and
// embedding similarity, not ground truth.
type QualityMetrics struct {
	Groundedness     float64 `json:"groundedness"`
	AnswerRelevance  float64 `json:"answer_relevance"`
	ContextRelevance float64 `json:"context_relevance"`
	Faithfulness     float64 `json:"faithfulness"`
	Formatting       float64 `json:"formatting"`
	Overall          float64 `json:"overall_quality"`
}

// ContextUsage records which inputs fed the generation prompt.
type ContextUsage struct {
	AnomalyDetection bool `json:"anomaly_detection"`
	Documents        int  `json:"documents"`
	IncludesGuidance bool `json:"includes_guidance"`
}

// SynthesisResult is the final answer plus metadata.
type SynthesisResult struct {
	Response    string         `json:"response"`
	Strategy    Strategy       `json:"strategy"`
	Quality     QualityMetrics `json:"quality_metrics"`
	ContextUsed ContextUsage   `json:"context_used"`
	SessionID   string         `json:"session_id,omitempty"`
}

// =============================================================================
// PIPELINE ENVELOPE
// =============================================================================

// PipelineResult is the end-to-end envelope returned to the caller. It is
// always well-formed: the orchestrator never lets an error escape as a
// panic or returned error.
type PipelineResult struct {
	Query     string        `json:"query"`
	Response  string        `json:"response"`
	SessionID string        `json:"session_id"`
	State     PipelineState `json:"pipeline_state"`

	Intent    IntentResult    `json:"intent"`
	Risk      RiskAssessment  `json:"risk"`
	Retrieval RetrievalResult `json:"retrieval"`
	Synthesis SynthesisResult `json:"synthesis"`

	// Err holds diagnostic text for the ERROR and BLOCKED states. It is
	// never the raw internal error echoed to an end user.
	Err string `json:"error,omitempty"`
}
