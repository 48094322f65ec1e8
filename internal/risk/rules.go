package risk

import "regexp"

// Component names used as keys in RiskAssessment.RiskComponents.
const (
	ComponentMaliciousKeywords  = "malicious_keywords"
	ComponentSuspiciousPatterns = "suspicious_patterns"
	ComponentEncodingAttack     = "encoding_attack"
	ComponentQueryLength        = "query_length"
	ComponentBehaviorAnomaly    = "behavior_anomaly"
)

// Ruleset is the immutable set of lexicons, patterns, weights, and limits the
// detectors evaluate. It is built once and injected into the scorer so
// deployments can tune it and tests can construct minimal variants.
type Ruleset struct {
	// MaliciousKeywords maps a category name to its lexicon.
	// Entries must be lowercase; matching is done on the lowercased query.
	MaliciousKeywords map[string][]string

	// SuspiciousPatterns maps a pattern name to a compiled case-insensitive
	// regex describing an attack shape.
	SuspiciousPatterns map[string]*regexp.Regexp

	// EncodingPatterns maps an encoding name to a regex detecting obfuscated
	// payloads.
	EncodingPatterns map[string]*regexp.Regexp

	// Detector weights. Each detector contributes its weight at most once.
	KeywordWeight  float64
	PatternWeight  float64
	EncodingWeight float64
	LengthWeight   float64
	BehaviorWeight float64

	// Length limits.
	MaxQueryLength int
	MaxWords       int

	// BehaviorLengthRatio flags a query whose length exceeds this multiple
	// of the session's mean historical query length.
	BehaviorLengthRatio float64
}

// DefaultRuleset returns the standard detection rules.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		MaliciousKeywords: map[string][]string{
			"injection_keywords": {
				"drop", "delete", "exec", "execute", "sql injection",
				"union", "select", "insert", "update",
			},
			"hacking_keywords": {
				"hack", "crack", "breach", "exploit", "vulnerability",
				"backdoor", "payload", "shellcode",
			},
			"fraud_keywords": {
				"fraud", "money laundering", "stolen", "credit card",
				"ssn", "password", "private key",
			},
			"xss_keywords": {
				"script", "javascript", "onerror", "onclick", "alert",
			},
		},

		SuspiciousPatterns: map[string]*regexp.Regexp{
			"sql_injection":      regexp.MustCompile(`(?i)(union|select|insert|update|delete)[\s+]+`),
			"xss_attack":         regexp.MustCompile(`(?i)<script|javascript:|onerror=|onclick=`),
			"template_injection": regexp.MustCompile(`\$\{.*\}`),
			"path_traversal":     regexp.MustCompile(`\.\.[\\/]`),
			"command_injection":  regexp.MustCompile("[;&|`$()]"),
		},

		EncodingPatterns: map[string]*regexp.Regexp{
			"url_encoding":     regexp.MustCompile(`(?i)%[0-9a-f]{2}`),
			"html_entities":    regexp.MustCompile(`&#\d+;`),
			"hex_encoding":     regexp.MustCompile(`(?i)\\x[0-9a-f]{2}`),
			"unicode_encoding": regexp.MustCompile(`(?i)\\u[0-9a-f]{4}`),
		},

		KeywordWeight:  0.40,
		PatternWeight:  0.35,
		EncodingWeight: 0.30,
		LengthWeight:   0.15,
		BehaviorWeight: 0.25,

		MaxQueryLength: 5000,
		MaxWords:       500,

		BehaviorLengthRatio: 3.0,
	}
}
