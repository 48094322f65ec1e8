// Package risk scores queries for abuse signals and gates them with an
// allow/review/block decision. Detectors are independent and each contributes
// a fixed weight at most once; the score is the mean of triggered weights so
// one severe signal is not diluted and many signals do not stack past 1.0.
package risk

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"guardrag/internal/logging"
	"guardrag/internal/retrieval"
	"guardrag/internal/types"
)

// Guidance search queries substituted for the raw query when a lexicon
// category fires. Flagged queries should retrieve policy documents, not
// documents resembling the attack text itself.
const (
	fraudGuidanceQuery    = "fraud detection account security prevention unauthorized access"
	securityGuidanceQuery = "security breach hacking attack prevention recovery"
)

// GuidanceRetriever fetches policy documents for flagged queries.
// *retrieval.Engine satisfies it.
type GuidanceRetriever interface {
	RetrieveAndRank(ctx context.Context, query string, opts retrieval.Options) types.RetrievalResult
}

// Scorer runs the risk detectors and derives level, decision, and guidance.
type Scorer struct {
	rules     *Ruleset
	retriever GuidanceRetriever
}

// NewScorer creates a scorer. retriever may be nil, in which case flagged
// queries simply carry no guidance documents.
func NewScorer(rules *Ruleset, retriever GuidanceRetriever) *Scorer {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &Scorer{rules: rules, retriever: retriever}
}

// Assess analyzes a query for abuse signals. It never fails outward: any
// internal error produces a fail-safe assessment with decision REVIEW,
// never ALLOW.
func (s *Scorer) Assess(ctx context.Context, query types.Query, history []string) (result types.RiskAssessment) {
	log := logging.WithSession(logging.CategoryRisk, query.SessionID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Risk assessment panicked: %v", r)
			result = failSafeAssessment(query.SessionID, fmt.Sprint(r))
		}
	}()

	log.Info("Analyzing query for risk signals")

	// Detectors are independent; run them concurrently.
	var keywords, patterns, encoding, length, behavior detectorResult
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { keywords = s.rules.checkMaliciousKeywords(query.Text); return nil })
	g.Go(func() error { patterns = s.rules.checkSuspiciousPatterns(query.Text); return nil })
	g.Go(func() error { encoding = s.rules.checkEncodingAttacks(query.Text); return nil })
	g.Go(func() error { length = s.rules.checkQueryLength(query.Text); return nil })
	g.Go(func() error { behavior = s.rules.checkBehaviorAnomaly(query.Text, history); return nil })
	if err := g.Wait(); err != nil {
		log.Error("Detector run failed: %v", err)
		return failSafeAssessment(query.SessionID, err.Error())
	}

	var factors []string
	components := make(map[string]float64)

	if keywords.fired() {
		factors = append(factors, keywords.factors...)
		components[ComponentMaliciousKeywords] = s.rules.KeywordWeight
		log.Warn("Malicious keywords found: %v", keywords.factors)
	}
	if patterns.fired() {
		factors = append(factors, patterns.factors...)
		components[ComponentSuspiciousPatterns] = s.rules.PatternWeight
		log.Warn("Suspicious patterns found: %v", patterns.factors)
	}
	if encoding.fired() {
		factors = append(factors, encoding.factors...)
		components[ComponentEncodingAttack] = s.rules.EncodingWeight
		log.Warn("Encoding attack detected: %v", encoding.factors)
	}
	if length.fired() {
		factors = append(factors, length.factors...)
		components[ComponentQueryLength] = s.rules.LengthWeight
		log.Warn("Query length anomaly: %v", length.factors)
	}
	if behavior.fired() {
		factors = append(factors, behavior.factors...)
		components[ComponentBehaviorAnomaly] = s.rules.BehaviorWeight
		log.Warn("Behavior anomaly: %v", behavior.factors)
	}

	// Mean of triggered weights, not the sum.
	riskScore := 0.0
	if len(components) > 0 {
		total := 0.0
		for _, w := range components {
			total += w
		}
		riskScore = total / float64(len(components))
	}

	factorCount := len(factors)
	confidence := 0.5 + float64(factorCount)*0.15
	if confidence > 1.0 {
		confidence = 1.0
	}

	level := types.LevelForScore(riskScore)
	decision := types.DecisionFor(level, factorCount)

	var guidance []types.RankedDocument
	if decision == types.DecisionReview {
		guidance = s.searchGuidance(ctx, query, factors)
	}

	log.Info("Risk assessment complete: risk=%.2f, confidence=%.2f, decision=%s",
		riskScore, confidence, decision)

	return types.RiskAssessment{
		IsAnomalous:       factorCount > 0,
		RiskScore:         riskScore,
		ConfidenceScore:   confidence,
		RiskLevel:         level,
		Factors:           factors,
		FactorCount:       factorCount,
		RiskComponents:    components,
		Decision:          decision,
		GuidanceDocuments: guidance,
		SessionID:         query.SessionID,
	}
}

// searchGuidance retrieves policy documents for a flagged query. The search
// query is rewritten according to which lexicon category fired.
func (s *Scorer) searchGuidance(ctx context.Context, query types.Query, factors []string) []types.RankedDocument {
	if s.retriever == nil {
		return nil
	}

	log := logging.WithSession(logging.CategoryRisk, query.SessionID)
	searchQuery := GuidanceQueryFor(query.Text, factors)
	log.Info("Searching guidance documents with query: %q", searchQuery)

	result := s.retriever.RetrieveAndRank(ctx, searchQuery, retrieval.Options{
		NResults:  3,
		DocType:   types.DocTypeSystem,
		SessionID: query.SessionID,
	})
	if !result.Success {
		log.Warn("Guidance retrieval failed: %s", result.Err)
		return nil
	}
	log.Info("Found %d guidance documents", len(result.Documents))
	return result.Documents
}

// GuidanceQueryFor rewrites the search query based on detected factors.
// Exported so the orchestrator can reuse the same rewrite for concern-path
// guidance lookups.
func GuidanceQueryFor(original string, factors []string) string {
	if containsFold(factors, "fraud") {
		return fraudGuidanceQuery
	}
	if containsFold(factors, "hack") || containsFold(factors, "breach") {
		return securityGuidanceQuery
	}
	return original
}

func containsFold(factors []string, substr string) bool {
	for _, f := range factors {
		if strings.Contains(strings.ToLower(f), substr) {
			return true
		}
	}
	return false
}

// failSafeAssessment is returned when assessment itself breaks: unable to
// judge the query, the gate falls back to REVIEW rather than ALLOW.
func failSafeAssessment(sessionID, errText string) types.RiskAssessment {
	return types.RiskAssessment{
		IsAnomalous:     false,
		RiskScore:       0.0,
		ConfidenceScore: 0.0,
		RiskLevel:       types.RiskLow,
		Decision:        types.DecisionReview,
		SessionID:       sessionID,
		Err:             errText,
	}
}
