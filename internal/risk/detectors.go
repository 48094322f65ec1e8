package risk

import (
	"fmt"
	"sort"
	"strings"
)

// detectorResult is the outcome of one detector: the factor strings it
// produced, or none if it did not fire.
type detectorResult struct {
	factors []string
}

func (d detectorResult) fired() bool { return len(d.factors) > 0 }

// checkMaliciousKeywords scans the lowercased query against every lexicon
// category. Factor format: "CATEGORY: keyword".
func (r *Ruleset) checkMaliciousKeywords(query string) detectorResult {
	lower := strings.ToLower(query)
	var found []string

	// Sorted category order keeps factor lists deterministic.
	categories := make([]string, 0, len(r.MaliciousKeywords))
	for category := range r.MaliciousKeywords {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		for _, keyword := range r.MaliciousKeywords[category] {
			if strings.Contains(lower, keyword) {
				found = append(found, fmt.Sprintf("%s: %s", strings.ToUpper(category), keyword))
			}
		}
	}
	return detectorResult{factors: found}
}

// checkSuspiciousPatterns matches the attack-shape regexes.
// Factor format: "PATTERN_NAME".
func (r *Ruleset) checkSuspiciousPatterns(query string) detectorResult {
	names := make([]string, 0, len(r.SuspiciousPatterns))
	for name := range r.SuspiciousPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	var found []string
	for _, name := range names {
		if r.SuspiciousPatterns[name].MatchString(query) {
			found = append(found, strings.ToUpper(name))
		}
	}
	return detectorResult{factors: found}
}

// checkEncodingAttacks looks for obfuscated payloads. Only the first matching
// encoding is reported. Factor format: "ENCODING_ATTACK: encoding_name".
func (r *Ruleset) checkEncodingAttacks(query string) detectorResult {
	names := make([]string, 0, len(r.EncodingPatterns))
	for name := range r.EncodingPatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if r.EncodingPatterns[name].MatchString(query) {
			return detectorResult{factors: []string{fmt.Sprintf("ENCODING_ATTACK: %s", name)}}
		}
	}
	return detectorResult{}
}

// checkQueryLength flags abnormally long queries.
func (r *Ruleset) checkQueryLength(query string) detectorResult {
	length := len(query)
	words := len(strings.Fields(query))

	if length > r.MaxQueryLength {
		return detectorResult{factors: []string{
			fmt.Sprintf("QUERY_TOO_LONG: %d chars (max: %d)", length, r.MaxQueryLength),
		}}
	}
	if words > r.MaxWords {
		return detectorResult{factors: []string{
			fmt.Sprintf("TOO_MANY_WORDS: %d words (max: %d)", words, r.MaxWords),
		}}
	}
	return detectorResult{}
}

// checkBehaviorAnomaly compares the query length against the session's mean
// historical query length. Fires only when history is present.
func (r *Ruleset) checkBehaviorAnomaly(query string, history []string) detectorResult {
	if len(history) == 0 {
		return detectorResult{}
	}

	total := 0
	for _, q := range history {
		total += len(q)
	}
	mean := float64(total) / float64(len(history))

	if float64(len(query)) > mean*r.BehaviorLengthRatio {
		return detectorResult{factors: []string{
			"BEHAVIOR_CHANGE: Query significantly longer than history average",
		}}
	}
	return detectorResult{}
}
