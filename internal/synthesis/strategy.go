// Package synthesis turns the upstream pipeline outputs into a final answer.
// It selects a response strategy, assembles a grounded prompt from guidance
// and retrieved documents, invokes generation once, and scores the result
// with post-hoc quality heuristics. Synthesize never fails: every error path
// degrades to an apology with zeroed quality metrics.
package synthesis

import (
	"guardrag/internal/types"
)

// DetermineStrategy picks the response strategy from the risk gate outcome
// and the retrieval outcome, in priority order. The boolean reports whether
// the strategy wants guidance documents in its context.
func DetermineStrategy(risk *types.RiskAssessment, docs []types.RankedDocument) (types.Strategy, bool) {
	if risk != nil {
		if risk.Decision == types.DecisionBlock {
			return types.StrategyEscalation, true
		}
		if risk.IsAnomalous &&
			(risk.Decision == types.DecisionReview || risk.Decision == types.DecisionReviewCarefully) {
			return types.StrategyAnomalyReview, true
		}
	}
	if len(docs) > 0 {
		return types.StrategyNormal, false
	}
	return types.StrategyGeneral, false
}
