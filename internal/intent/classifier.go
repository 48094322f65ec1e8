// Package intent classifies incoming queries into a fixed catalog of
// intents using keyword rules, escalating to the model only when the rule
// confidence is too low to trust.
package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"guardrag/internal/llm"
	"guardrag/internal/logging"
	"guardrag/internal/types"
)

// confidenceHigh is the rules confidence above which the model fallback
// is skipped.
const confidenceHigh = 0.8

var interrogatives = []string{"how", "what", "why", "when", "where", "who"}

// Classifier performs hybrid rule/model intent classification.
type Classifier struct {
	catalog *Catalog
	client  llm.Client
}

// NewClassifier creates a classifier. client may be nil, in which case
// low-confidence rule results are kept as-is instead of escalating.
func NewClassifier(catalog *Catalog, client llm.Client) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Classifier{catalog: catalog, client: client}
}

// Classify determines the intent of a query. It never fails outward: on
// internal failure it produces a general/0.0 result tagged with the error
// method.
func (c *Classifier) Classify(ctx context.Context, query types.Query) (result types.IntentResult) {
	log := logging.WithSession(logging.CategoryIntent, query.SessionID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("Classification panicked: %v", r)
			result = types.IntentResult{
				Intent:     types.IntentGeneral,
				Confidence: 0.0,
				Specialist: c.catalog.Specialist(types.IntentGeneral),
				Method:     types.MethodError,
				Factors:    types.IntentFactors{Err: fmt.Sprint(r)},
				SessionID:  query.SessionID,
			}
		}
	}()

	log.Info("Classifying intent for: %.100s", query.Text)

	// Step 1: rules-based classification.
	rules := c.rulesClassify(query.Text)
	log.Info("Rules confidence: %.2f", rules.Confidence)

	// Security fast-path results are always accepted.
	if len(rules.Factors.SecurityKeywords) > 0 {
		rules.SessionID = query.SessionID
		return rules
	}

	// Step 2: escalate to the model when rules are uncertain.
	if rules.Confidence < confidenceHigh && c.client != nil {
		log.Info("Confidence below %.2f, calling model", confidenceHigh)
		model := c.modelClassify(ctx, query.Text, rules.Intent)

		final := rules
		final.Method = types.MethodHybrid
		final.Factors.ModelReasoning = model.reasoning
		final.Factors.RulesSuggestion = rules.Intent

		if model.confidence > rules.Confidence {
			log.Info("Model confidence higher: %.2f", model.confidence)
			final.Intent = model.intent
			final.Confidence = model.confidence
		} else {
			log.Info("Keeping rules confidence: %.2f", rules.Confidence)
		}
		final.Specialist = c.catalog.Specialist(final.Intent)
		final.SessionID = query.SessionID
		log.Info("Classification complete: intent=%s, confidence=%.2f", final.Intent, final.Confidence)
		return final
	}

	rules.SessionID = query.SessionID
	log.Info("Classification complete: intent=%s, confidence=%.2f", rules.Intent, rules.Confidence)
	return rules
}

// rulesClassify scores the query against every intent's keyword lexicon.
func (c *Classifier) rulesClassify(text string) types.IntentResult {
	lower := strings.ToLower(text)

	// Keyword density per intent.
	scores := make(map[types.Intent]float64, len(c.catalog.defs))
	for _, def := range c.catalog.defs {
		if len(def.Keywords) == 0 {
			scores[def.Intent] = 0
			continue
		}
		matches := 0
		for _, kw := range def.Keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		scores[def.Intent] = float64(matches) / float64(len(def.Keywords))
	}

	// Security fast-path takes precedence over everything else: a false
	// negative here costs more than a false positive elsewhere, so a single
	// lexicon hit is enough.
	var hits []string
	for _, kw := range c.catalog.Keywords(types.IntentAnomalyConcern) {
		if strings.Contains(lower, kw) {
			hits = append(hits, kw)
		}
	}
	if len(hits) > 0 {
		density := scores[types.IntentAnomalyConcern]
		confidence := 0.9 + density*0.1
		if confidence > 1.0 {
			confidence = 1.0
		}
		logging.Intent("Security keywords detected: density=%.2f hits=%v", density, hits)
		return types.IntentResult{
			Intent:     types.IntentAnomalyConcern,
			Confidence: confidence,
			Specialist: c.catalog.Specialist(types.IntentAnomalyConcern),
			Method:     types.MethodRules,
			Factors: types.IntentFactors{
				KeywordScores:    scores,
				SecurityKeywords: hits,
				QueryLength:      len(text),
			},
		}
	}

	lengthFactor := float64(len(text)) / 100
	if lengthFactor > 1.0 {
		lengthFactor = 1.0
	}

	hasQuestion := strings.Contains(text, "?")
	hasInterrogative := false
	for _, w := range interrogatives {
		if strings.HasPrefix(lower, w) {
			hasInterrogative = true
			break
		}
	}
	structureBonus := 0.0
	if hasQuestion || hasInterrogative {
		structureBonus = 0.1
	}

	bestIntent := types.IntentGeneral
	bestConfidence := 0.0
	for _, def := range c.catalog.defs {
		combined := scores[def.Intent]*0.7 + lengthFactor*0.2 + structureBonus
		if combined > bestConfidence {
			bestConfidence = combined
			bestIntent = def.Intent
		}
	}

	// Weak signals collapse to general with a confidence floor.
	if bestConfidence < 0.3 {
		bestIntent = types.IntentGeneral
		bestConfidence = 0.5
	}

	return types.IntentResult{
		Intent:     bestIntent,
		Confidence: bestConfidence,
		Specialist: c.catalog.Specialist(bestIntent),
		Method:     types.MethodRules,
		Factors: types.IntentFactors{
			KeywordScores:    scores,
			QueryLength:      len(text),
			HasQuestion:      hasQuestion,
			HasInterrogative: hasInterrogative,
		},
	}
}

// modelResult is a parsed model classification.
type modelResult struct {
	intent     types.Intent
	confidence float64
	reasoning  string
}

// modelClassify asks the generation service to pick an intent. Malformed
// responses degrade to general/0.5 rather than erroring.
func (c *Classifier) modelClassify(ctx context.Context, text string, rulesIntent types.Intent) modelResult {
	var descriptions strings.Builder
	for _, def := range c.catalog.defs {
		fmt.Fprintf(&descriptions, "- %s: %s\n", def.Intent, def.Description)
	}

	prompt := fmt.Sprintf(`Analyze the user query and classify it into ONE of these intents:

%s
The rules-based classifier suggested: %s

User Query: %q

Respond with ONLY a JSON object (no markdown, no explanation):
{
  "intent": "[intent_name]",
  "confidence": [0.0-1.0],
  "reasoning": "[brief reason]"
}`, descriptions.String(), rulesIntent, text)

	response, err := c.client.CompleteWithOptions(ctx, "", prompt, llm.Options{
		Temperature: 0.3,
		MaxTokens:   100,
	})
	if err != nil {
		logging.Get(logging.CategoryIntent).Error("Model classification failed: %v", err)
		return modelResult{intent: types.IntentGeneral, confidence: 0.5}
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(extractJSON(response)), &parsed); err != nil {
		logging.Get(logging.CategoryIntent).Warn("Model returned malformed JSON: %v", err)
		return modelResult{intent: types.IntentGeneral, confidence: 0.5}
	}

	intent := types.Intent(parsed.Intent)
	if !c.catalog.Contains(intent) {
		intent = types.IntentGeneral
	}

	return modelResult{
		intent:     intent,
		confidence: parsed.Confidence,
		reasoning:  parsed.Reasoning,
	}
}

// extractJSON strips markdown code fences models sometimes wrap around JSON.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
