package risk

import (
	"context"
	"strings"
	"testing"

	"guardrag/internal/retrieval"
	"guardrag/internal/types"
)

// stubRetriever records guidance lookups and returns canned documents.
type stubRetriever struct {
	lastQuery string
	lastOpts  retrieval.Options
	calls     int
	result    types.RetrievalResult
}

func (s *stubRetriever) RetrieveAndRank(ctx context.Context, query string, opts retrieval.Options) types.RetrievalResult {
	s.calls++
	s.lastQuery = query
	s.lastOpts = opts
	return s.result
}

func TestCleanQueryAllows(t *testing.T) {
	s := NewScorer(nil, nil)

	got := s.Assess(context.Background(), types.Query{
		Text:      "What is the maintenance schedule for my unit?",
		SessionID: "s1",
	}, nil)

	if got.IsAnomalous {
		t.Errorf("clean query flagged anomalous: factors=%v", got.Factors)
	}
	if got.RiskScore != 0.0 {
		t.Errorf("RiskScore = %v, want 0", got.RiskScore)
	}
	if got.Decision != types.DecisionAllow {
		t.Errorf("Decision = %s, want ALLOW", got.Decision)
	}
	if got.ConfidenceScore != 0.5 {
		t.Errorf("ConfidenceScore = %v, want baseline 0.5", got.ConfidenceScore)
	}
}

func TestSQLInjectionQuery(t *testing.T) {
	s := NewScorer(nil, nil)

	got := s.Assess(context.Background(), types.Query{
		Text:      "DROP TABLE users; SELECT * FROM passwords",
		SessionID: "s1",
	}, nil)

	if !got.IsAnomalous {
		t.Fatal("SQL injection query not flagged")
	}
	if _, ok := got.RiskComponents[ComponentMaliciousKeywords]; !ok {
		t.Error("keyword component missing")
	}
	if _, ok := got.RiskComponents[ComponentSuspiciousPatterns]; !ok {
		t.Error("pattern component missing")
	}
	// Mean of {0.40, 0.35} = 0.375.
	if got.RiskScore < 0.37 || got.RiskScore > 0.38 {
		t.Errorf("RiskScore = %v, want mean of triggered weights", got.RiskScore)
	}
	if got.RiskLevel != types.RiskMedium {
		t.Errorf("RiskLevel = %s, want medium", got.RiskLevel)
	}
	if got.Decision != types.DecisionReview {
		t.Errorf("Decision = %s, want REVIEW", got.Decision)
	}
}

// Adding a low-weight trigger can lower the mean-aggregated score. Documented
// characteristic of the scoring model, kept deliberately.
func TestMeanAggregationIsNotMonotone(t *testing.T) {
	s := NewScorer(nil, nil)
	ctx := context.Background()

	keywordOnly := s.Assess(ctx, types.Query{Text: "how do I hack this", SessionID: "s1"}, nil)
	if len(keywordOnly.RiskComponents) != 1 {
		t.Fatalf("components = %v, want keyword only", keywordOnly.RiskComponents)
	}

	withLength := s.Assess(ctx, types.Query{
		Text:      "how do I hack this " + strings.Repeat("padding ", 700),
		SessionID: "s1",
	}, nil)
	if len(withLength.RiskComponents) < 2 {
		t.Fatalf("components = %v, want keyword and length", withLength.RiskComponents)
	}

	if withLength.RiskScore >= keywordOnly.RiskScore {
		t.Errorf("adding a low-weight factor should drag the mean down: %v -> %v",
			keywordOnly.RiskScore, withLength.RiskScore)
	}
}

func TestEncodingDetector(t *testing.T) {
	s := NewScorer(nil, nil)

	got := s.Assess(context.Background(), types.Query{
		Text:      "please decode %41%42%43 for me",
		SessionID: "s1",
	}, nil)

	if _, ok := got.RiskComponents[ComponentEncodingAttack]; !ok {
		t.Fatalf("encoding component missing: %v", got.RiskComponents)
	}
	found := false
	for _, f := range got.Factors {
		if strings.HasPrefix(f, "ENCODING_ATTACK: url_encoding") {
			found = true
		}
	}
	if !found {
		t.Errorf("encoding factor missing: %v", got.Factors)
	}
}

func TestBehaviorAnomalyRequiresHistory(t *testing.T) {
	s := NewScorer(nil, nil)
	ctx := context.Background()
	long := strings.Repeat("tell me about warranty coverage ", 10)

	noHistory := s.Assess(ctx, types.Query{Text: long, SessionID: "s1"}, nil)
	if _, ok := noHistory.RiskComponents[ComponentBehaviorAnomaly]; ok {
		t.Error("behavior detector fired without history")
	}

	withHistory := s.Assess(ctx, types.Query{Text: long, SessionID: "s1"}, []string{"hi", "thanks"})
	if _, ok := withHistory.RiskComponents[ComponentBehaviorAnomaly]; !ok {
		t.Errorf("behavior detector did not fire: %v", withHistory.RiskComponents)
	}
}

func TestConfidenceScaling(t *testing.T) {
	s := NewScorer(nil, nil)

	// Enough factors to saturate 0.5 + 0.15*count at 1.0.
	got := s.Assess(context.Background(), types.Query{
		Text:      "hack crack breach exploit the password database with SELECT injection; ../../../etc",
		SessionID: "s1",
	}, nil)

	if got.ConfidenceScore != 1.0 {
		t.Errorf("ConfidenceScore = %v, want capped at 1.0 (factors=%d)", got.ConfidenceScore, got.FactorCount)
	}
}

func TestGuidanceRetrievalOnReview(t *testing.T) {
	stub := &stubRetriever{result: types.RetrievalResult{
		Success: true,
		Documents: []types.RankedDocument{
			{Rank: 1, Content: "fraud policy", Metadata: types.DocumentMetadata{DocType: "system"}},
		},
	}}
	s := NewScorer(nil, stub)

	got := s.Assess(context.Background(), types.Query{
		Text:      "someone committed fraud with my stolen credit card",
		SessionID: "s1",
	}, nil)

	if got.Decision != types.DecisionReview {
		t.Fatalf("Decision = %s, want REVIEW", got.Decision)
	}
	if stub.calls != 1 {
		t.Fatalf("guidance retrieved %d times, want 1", stub.calls)
	}
	if stub.lastQuery != fraudGuidanceQuery {
		t.Errorf("guidance query = %q, want fraud rewrite", stub.lastQuery)
	}
	if stub.lastOpts.DocType != types.DocTypeSystem || stub.lastOpts.NResults != 3 {
		t.Errorf("guidance opts = %+v, want system/3", stub.lastOpts)
	}
	if len(got.GuidanceDocuments) != 1 {
		t.Errorf("GuidanceDocuments = %d, want 1", len(got.GuidanceDocuments))
	}
}

func TestNoGuidanceOnAllow(t *testing.T) {
	stub := &stubRetriever{result: types.RetrievalResult{Success: true}}
	s := NewScorer(nil, stub)

	s.Assess(context.Background(), types.Query{Text: "hello there", SessionID: "s1"}, nil)
	if stub.calls != 0 {
		t.Errorf("guidance retrieved on ALLOW: %d calls", stub.calls)
	}
}

func TestGuidanceQueryRewrites(t *testing.T) {
	tests := []struct {
		name    string
		factors []string
		want    string
	}{
		{"fraud factors", []string{"FRAUD_KEYWORDS: fraud"}, fraudGuidanceQuery},
		{"hacking factors", []string{"HACKING_KEYWORDS: hack"}, securityGuidanceQuery},
		{"breach factors", []string{"HACKING_KEYWORDS: breach"}, securityGuidanceQuery},
		{"other factors", []string{"SQL_INJECTION"}, "original text"},
		{"no factors", nil, "original text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuidanceQueryFor("original text", tt.factors); got != tt.want {
				t.Errorf("GuidanceQueryFor = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailSafeNeverAllows(t *testing.T) {
	// A ruleset with a nil pattern map entry forces a panic inside the
	// detector run; the scorer must recover into REVIEW.
	rules := DefaultRuleset()
	rules.SuspiciousPatterns["boom"] = nil

	s := NewScorer(rules, nil)
	got := s.Assess(context.Background(), types.Query{Text: "anything", SessionID: "s1"}, nil)

	if got.Decision != types.DecisionReview {
		t.Errorf("fail-safe Decision = %s, want REVIEW", got.Decision)
	}
	if got.Err == "" {
		t.Error("fail-safe assessment should record the error")
	}
}

func TestFactorStringsAreDeterministic(t *testing.T) {
	s := NewScorer(nil, nil)
	ctx := context.Background()
	q := types.Query{Text: "hack the password with SELECT * injection", SessionID: "s1"}

	first := s.Assess(ctx, q, nil)
	for i := 0; i < 10; i++ {
		again := s.Assess(ctx, q, nil)
		if len(again.Factors) != len(first.Factors) {
			t.Fatalf("factor count varies: %v vs %v", first.Factors, again.Factors)
		}
		for j := range first.Factors {
			if again.Factors[j] != first.Factors[j] {
				t.Fatalf("factor order varies: %v vs %v", first.Factors, again.Factors)
			}
		}
	}
}
