package synthesis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"guardrag/internal/llm"
	"guardrag/internal/types"
)

// fakeClient is a scripted generation client recording the prompts it saw.
type fakeClient struct {
	response  string
	err       error
	panicWith string

	gotSystem string
	gotUser   string
	gotOpts   llm.Options
}

func (f *fakeClient) Complete(ctx context.Context, prompt string) (string, error) {
	return f.CompleteWithOptions(ctx, "", prompt, llm.Options{})
}

func (f *fakeClient) CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.CompleteWithOptions(ctx, systemPrompt, userPrompt, llm.Options{})
}

func (f *fakeClient) CompleteWithOptions(ctx context.Context, systemPrompt, userPrompt string, opts llm.Options) (string, error) {
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	f.gotSystem = systemPrompt
	f.gotUser = userPrompt
	f.gotOpts = opts
	return f.response, f.err
}

func (f *fakeClient) Name() string { return "fake" }

func rankedDoc(content string, score float64) types.RankedDocument {
	return types.RankedDocument{Content: content, CombinedScore: score}
}

func TestDetermineStrategy(t *testing.T) {
	docs := []types.RankedDocument{rankedDoc("doc", 0.9)}
	tests := []struct {
		name         string
		risk         *types.RiskAssessment
		docs         []types.RankedDocument
		want         types.Strategy
		wantGuidance bool
	}{
		{
			name: "block wins over documents",
			risk: &types.RiskAssessment{Decision: types.DecisionBlock},
			docs: docs,
			want: types.StrategyEscalation, wantGuidance: true,
		},
		{
			name: "anomalous review",
			risk: &types.RiskAssessment{IsAnomalous: true, Decision: types.DecisionReview},
			docs: docs,
			want: types.StrategyAnomalyReview, wantGuidance: true,
		},
		{
			name: "anomalous review carefully",
			risk: &types.RiskAssessment{IsAnomalous: true, Decision: types.DecisionReviewCarefully},
			want: types.StrategyAnomalyReview, wantGuidance: true,
		},
		{
			name: "review without anomaly falls through to documents",
			risk: &types.RiskAssessment{Decision: types.DecisionReview},
			docs: docs,
			want: types.StrategyNormal,
		},
		{
			name: "documents without risk",
			docs: docs,
			want: types.StrategyNormal,
		},
		{
			name: "nothing at all",
			want: types.StrategyGeneral,
		},
		{
			name: "allow decision with empty documents",
			risk: &types.RiskAssessment{Decision: types.DecisionAllow},
			want: types.StrategyGeneral,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, guidance := DetermineStrategy(tt.risk, tt.docs)
			if got != tt.want {
				t.Errorf("strategy = %s, want %s", got, tt.want)
			}
			if guidance != tt.wantGuidance {
				t.Errorf("includesGuidance = %v, want %v", guidance, tt.wantGuidance)
			}
		})
	}
}

func TestSynthesizeNormal(t *testing.T) {
	client := &fakeClient{response: "The maintenance schedule is every six months."}
	s := NewSynthesizer(client, NewEvaluator(nil))

	got := s.Synthesize(context.Background(), Input{
		Query:     types.Query{Text: "What is the maintenance schedule?", SessionID: "s1"},
		Documents: []types.RankedDocument{rankedDoc("Maintenance is due every six months.", 0.91)},
	})

	if got.Strategy != types.StrategyNormal {
		t.Fatalf("strategy = %s, want NORMAL", got.Strategy)
	}
	if got.Response != client.response {
		t.Errorf("response = %q", got.Response)
	}
	if got.SessionID != "s1" {
		t.Errorf("session id = %q", got.SessionID)
	}
	if got.ContextUsed.Documents != 1 || got.ContextUsed.IncludesGuidance || got.ContextUsed.AnomalyDetection {
		t.Errorf("context usage = %+v", got.ContextUsed)
	}
	if !strings.Contains(client.gotSystem, "only the provided context") {
		t.Errorf("system prompt = %q", client.gotSystem)
	}
	if !strings.Contains(client.gotUser, "User Query: What is the maintenance schedule?") {
		t.Errorf("user prompt missing query: %q", client.gotUser)
	}
	if !strings.Contains(client.gotUser, "[RETRIEVED - Score: 0.91]") {
		t.Errorf("user prompt missing provenance tag: %q", client.gotUser)
	}
	if client.gotOpts.Temperature != generationTemperature || client.gotOpts.MaxTokens != generationMaxTokens {
		t.Errorf("generation options = %+v", client.gotOpts)
	}
	if got.Quality.Overall <= 0 {
		t.Errorf("expected nonzero overall quality, got %v", got.Quality.Overall)
	}
}

func TestSynthesizeGuidancePrepended(t *testing.T) {
	client := &fakeClient{response: "Please contact support to secure your account."}
	s := NewSynthesizer(client, nil)

	risk := &types.RiskAssessment{
		IsAnomalous: true,
		Decision:    types.DecisionReview,
		GuidanceDocuments: []types.RankedDocument{
			rankedDoc("Fraud prevention steps.", 0.85),
		},
	}
	got := s.Synthesize(context.Background(), Input{
		Query:     types.Query{Text: "My account is flagged for fraud"},
		Risk:      risk,
		Documents: []types.RankedDocument{rankedDoc("General account help.", 0.70)},
	})

	if got.Strategy != types.StrategyAnomalyReview {
		t.Fatalf("strategy = %s, want ANOMALY_REVIEW", got.Strategy)
	}
	if !got.ContextUsed.IncludesGuidance || !got.ContextUsed.AnomalyDetection {
		t.Errorf("context usage = %+v", got.ContextUsed)
	}
	if got.ContextUsed.Documents != 2 {
		t.Errorf("documents = %d, want 2", got.ContextUsed.Documents)
	}
	gi := strings.Index(client.gotUser, "[GUIDANCE - Score: 0.85]")
	ri := strings.Index(client.gotUser, "[RETRIEVED - Score: 0.70]")
	if gi < 0 || ri < 0 || gi > ri {
		t.Errorf("guidance not prepended: guidance@%d retrieved@%d", gi, ri)
	}
	if !strings.Contains(client.gotSystem, "empathetic") {
		t.Errorf("system prompt = %q", client.gotSystem)
	}
}

func TestSynthesizeContextTruncation(t *testing.T) {
	client := &fakeClient{response: "Short answer that covers the basics."}
	s := NewSynthesizer(client, nil)

	long := strings.Repeat("x", 600)
	s.Synthesize(context.Background(), Input{
		Query:     types.Query{Text: "q"},
		Documents: []types.RankedDocument{rankedDoc(long, 0.9)},
	})

	if strings.Contains(client.gotUser, long) {
		t.Error("oversized document was not truncated")
	}
	if !strings.Contains(client.gotUser, strings.Repeat("x", contextDocLimit)+"...") {
		t.Error("truncation marker missing")
	}
}

func TestSynthesizeEmptyContext(t *testing.T) {
	client := &fakeClient{response: "I do not have specific documentation, but in general terms this works as follows."}
	s := NewSynthesizer(client, nil)

	got := s.Synthesize(context.Background(), Input{
		Query: types.Query{Text: "What is the maintenance schedule?"},
	})

	if got.Strategy != types.StrategyGeneral {
		t.Fatalf("strategy = %s, want GENERAL", got.Strategy)
	}
	if !strings.Contains(client.gotUser, "No context documents available.") {
		t.Errorf("user prompt = %q", client.gotUser)
	}
	if got.Response == "" {
		t.Error("expected an answer even without context")
	}
}

func TestSynthesizeEmptyContextNeutralFaithfulness(t *testing.T) {
	client := &fakeClient{response: "I do not have specific documentation for that question. Reaching out to support is the safest option."}
	s := NewSynthesizer(client, NewEvaluator(nil))

	got := s.Synthesize(context.Background(), Input{
		Query: types.Query{Text: "What is the maintenance schedule?"},
	})

	// The prompt placeholder must not leak into evaluation: with no
	// documents the evaluator sees an empty context and stays neutral.
	if got.Quality.Faithfulness != 0.5 {
		t.Errorf("faithfulness = %v, want 0.5 neutral", got.Quality.Faithfulness)
	}
	if got.Quality.Groundedness != 0 {
		t.Errorf("groundedness = %v, want 0 with no context", got.Quality.Groundedness)
	}
}

func TestSynthesizeRawContextOmitsProvenanceHeaders(t *testing.T) {
	docs := []contextDoc{
		{source: sourceGuidance, content: "Fraud prevention steps.", score: 0.85},
		{source: sourceRetrieved, content: "General account help.", score: 0.70},
	}

	raw := rawContext(docs)
	if strings.Contains(raw, "Score:") || strings.Contains(raw, sourceGuidance) || strings.Contains(raw, sourceRetrieved) {
		t.Errorf("raw context carries prompt headers: %q", raw)
	}
	if !strings.Contains(raw, "Fraud prevention steps.") || !strings.Contains(raw, "General account help.") {
		t.Errorf("raw context missing document content: %q", raw)
	}
	if rawContext(nil) != "" {
		t.Errorf("raw context for no documents = %q, want empty", rawContext(nil))
	}
}

func TestSynthesizeGenerationFailure(t *testing.T) {
	client := &fakeClient{err: errors.New("upstream 500")}
	s := NewSynthesizer(client, NewEvaluator(nil))

	got := s.Synthesize(context.Background(), Input{Query: types.Query{Text: "q"}})

	if got.Response != apologyGeneration {
		t.Errorf("response = %q", got.Response)
	}
	if got.Quality != (types.QualityMetrics{}) {
		t.Errorf("quality should be zeroed, got %+v", got.Quality)
	}
}

func TestSynthesizePanicRecovery(t *testing.T) {
	client := &fakeClient{panicWith: "boom"}
	s := NewSynthesizer(client, NewEvaluator(nil))

	got := s.Synthesize(context.Background(), Input{Query: types.Query{Text: "q"}})

	if got.Response != apologySynthesis {
		t.Errorf("response = %q", got.Response)
	}
	if got.Quality != (types.QualityMetrics{}) {
		t.Errorf("quality should be zeroed, got %+v", got.Quality)
	}
}

func TestSynthesizeNilClient(t *testing.T) {
	s := NewSynthesizer(nil, nil)
	got := s.Synthesize(context.Background(), Input{Query: types.Query{Text: "q"}})
	if got.Response != apologyGeneration {
		t.Errorf("response = %q", got.Response)
	}
}
